package tofpanel

import "context"

// First and last non-reserved 7-bit addresses.
const (
	scanFirst = 0x08
	scanLast  = 0x77
)

// Scan probes every non-reserved address with a one byte read and returns
// the ones that acknowledged.
func Scan(ctx context.Context, bus AddressableReader) ([]byte, error) {
	var found []byte
	buf := make([]byte, 1)
	for addr := scanFirst; addr <= scanLast; addr++ {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		if err := bus.ReadFromAddr(ctx, byte(addr), buf); err != nil {
			continue
		}
		found = append(found, byte(addr))
	}
	return found, nil
}
