package i2c

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goi2c "github.com/swdee/go-i2c"

	"github.com/mklimuk/tofpanel"
)

var _ tofpanel.I2CBus = &DevBus{}

// DevBus talks to /dev/i2c-N through one i2c-dev handle per slave address.
// Unlike GenericBus it reports short reads.
type DevBus struct {
	mx      sync.Mutex
	dev     string
	handles map[byte]*goi2c.Options
}

func NewDevBus(dev string) *DevBus {
	return &DevBus{
		dev:     dev,
		handles: make(map[byte]*goi2c.Options),
	}
}

func (b *DevBus) handle(address byte) (*goi2c.Options, error) {
	if h, ok := b.handles[address]; ok {
		return h, nil
	}
	h, err := goi2c.New(address, b.dev)
	if err != nil {
		return nil, fmt.Errorf("could not open %s for %#02x: %w", b.dev, address, err)
	}
	b.handles[address] = h
	return h, nil
}

func (b *DevBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	h, err := b.handle(address)
	if err != nil {
		return err
	}
	n, err := h.WriteBytes(buffer)
	if err != nil {
		return fmt.Errorf("could not write to i2c device %#02x: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("short write to %#02x: %d of %d bytes", address, n, len(buffer))
	}
	return nil
}

func (b *DevBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	h, err := b.handle(address)
	if err != nil {
		return err
	}
	n, err := h.ReadBytes(buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c device %#02x: %w", address, err)
	}
	if n < len(buffer) {
		return fmt.Errorf("read %d of %d bytes from %#02x: %w", n, len(buffer), address, tofpanel.ErrShortRead)
	}
	return nil
}

func (b *DevBus) Release(ctx context.Context) error {
	return nil
}

func (b *DevBus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var errs []error
	for address, h := range b.handles {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("could not close handle for %#02x: %w", address, err))
		}
		delete(b.handles, address)
	}
	return errors.Join(errs...)
}
