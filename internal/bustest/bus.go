// Package bustest provides a recording I2C bus and sleeper sharing one
// timeline, so tests can assert on transaction order and requested delays
// without touching hardware or waiting.
package bustest

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/mklimuk/tofpanel"
)

type Kind int

const (
	KindWrite Kind = iota
	KindRead
	KindTx
	KindSleep
)

func (k Kind) String() string {
	switch k {
	case KindWrite:
		return "write"
	case KindRead:
		return "read"
	case KindTx:
		return "tx"
	case KindSleep:
		return "sleep"
	default:
		return "unknown"
	}
}

// Op is a single recorded event. For writes Data holds the bytes put on the
// wire; for reads and transactions it holds the register pointer that was
// active and Len the number of bytes requested.
type Op struct {
	Kind    Kind
	Address byte
	Data    []byte
	Len     int
	Delay   time.Duration
}

func (o Op) String() string {
	if o.Kind == KindSleep {
		return fmt.Sprintf("sleep %s", o.Delay)
	}
	return fmt.Sprintf("%s %#02x [% x] len=%d", o.Kind, o.Address, o.Data, o.Len)
}

var (
	_ tofpanel.I2CBus  = &Bus{}
	_ tofpanel.Sleeper = &Bus{}
)

// Bus is a fake register-pointer device map. Writes set the pointer of the
// addressed device to the written bytes; reads answer with the response
// registered for that pointer.
type Bus struct {
	mx        sync.Mutex
	ops       []Op
	pointer   map[byte][]byte
	responses map[string][]byte

	// FailWhen, if set, is consulted before every bus operation; a non-nil
	// return is handed back to the caller and the operation is still recorded.
	FailWhen func(op Op) error
}

func NewBus() *Bus {
	return &Bus{
		pointer:   make(map[byte][]byte),
		responses: make(map[string][]byte),
	}
}

func responseKey(address byte, pointer []byte) string {
	return fmt.Sprintf("%02x/%s", address, hex.EncodeToString(pointer))
}

// Respond registers the bytes returned when the device at address is read
// with the register pointer set to pointer.
func (b *Bus) Respond(address byte, pointer []byte, data []byte) {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.responses[responseKey(address, pointer)] = append([]byte(nil), data...)
}

func (b *Bus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	op := Op{Kind: KindWrite, Address: address, Data: append([]byte(nil), buffer...)}
	b.ops = append(b.ops, op)
	if err := b.fail(op); err != nil {
		return err
	}
	b.pointer[address] = op.Data
	return nil
}

func (b *Bus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	op := Op{Kind: KindRead, Address: address, Data: b.pointer[address], Len: len(buffer)}
	b.ops = append(b.ops, op)
	if err := b.fail(op); err != nil {
		return err
	}
	return b.answer(address, op.Data, buffer)
}

func (b *Bus) Release(ctx context.Context) error {
	return nil
}

func (b *Bus) Sleep(ctx context.Context, d time.Duration) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	op := Op{Kind: KindSleep, Delay: d}
	b.ops = append(b.ops, op)
	return b.fail(op)
}

func (b *Bus) fail(op Op) error {
	if b.FailWhen == nil {
		return nil
	}
	return b.FailWhen(op)
}

func (b *Bus) answer(address byte, pointer []byte, buffer []byte) error {
	data, ok := b.responses[responseKey(address, pointer)]
	if !ok {
		return fmt.Errorf("bustest: no response for %#02x pointer [% x]", address, pointer)
	}
	n := copy(buffer, data)
	if n < len(buffer) {
		return tofpanel.ErrShortRead
	}
	return nil
}

// Ops returns a copy of the recorded timeline.
func (b *Bus) Ops() []Op {
	b.mx.Lock()
	defer b.mx.Unlock()
	return append([]Op(nil), b.ops...)
}

// Writes returns the payloads written to address, in order.
func (b *Bus) Writes(address byte) [][]byte {
	var res [][]byte
	for _, op := range b.Ops() {
		if op.Kind == KindWrite && op.Address == address {
			res = append(res, op.Data)
		}
	}
	return res
}

// Sleeps returns every requested delay, in order.
func (b *Bus) Sleeps() []time.Duration {
	var res []time.Duration
	for _, op := range b.Ops() {
		if op.Kind == KindSleep {
			res = append(res, op.Delay)
		}
	}
	return res
}

// Reset forgets recorded operations but keeps registered responses.
func (b *Bus) Reset() {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.ops = nil
	b.pointer = make(map[byte][]byte)
}

var _ tofpanel.AddressableTx = &TxBus{}

// TxBus is a Bus that also supports combined write/read transactions.
type TxBus struct {
	*Bus
}

func NewTxBus() *TxBus {
	return &TxBus{Bus: NewBus()}
}

func (b *TxBus) TxAddr(ctx context.Context, address byte, w, r []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	op := Op{Kind: KindTx, Address: address, Data: append([]byte(nil), w...), Len: len(r)}
	b.ops = append(b.ops, op)
	if err := b.fail(op); err != nil {
		return err
	}
	if len(w) > 0 {
		b.pointer[address] = op.Data
	}
	if len(r) == 0 {
		return nil
	}
	return b.answer(address, b.pointer[address], r)
}
