package tofpanel

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// ErrShortRead is returned when a transport delivers fewer bytes than requested.
var ErrShortRead = fmt.Errorf("short read")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// AddressableTx is implemented by buses able to write a register pointer and
// read back with a repeated start, without releasing the bus in between.
type AddressableTx interface {
	TxAddr(ctx context.Context, address byte, w, r []byte) error
}

type I2CBus interface {
	AddressableReader
	AddressableWriter
}
