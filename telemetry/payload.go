// Package telemetry publishes range readings to an MQTT broker.
package telemetry

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Reading is one distance sample. The CBOR form uses integer keys to keep
// messages small on constrained links.
type Reading struct {
	DistanceMM uint16 `cbor:"1,keyasint"`
	Timestamp  int64  `cbor:"2,keyasint"`
}

func NewReading(mm uint16, at time.Time) Reading {
	return Reading{DistanceMM: mm, Timestamp: at.UnixMilli()}
}

// Encoder turns a reading into a message payload.
type Encoder interface {
	Encode(r Reading) ([]byte, error)
	ContentType() string
}

// TextEncoder produces the decimal millimetre value, e.g. "300".
type TextEncoder struct{}

func (TextEncoder) Encode(r Reading) ([]byte, error) {
	return strconv.AppendUint(nil, uint64(r.DistanceMM), 10), nil
}

func (TextEncoder) ContentType() string { return "text/plain" }

type CBOREncoder struct {
	mode cbor.EncMode
}

func NewCBOREncoder() (*CBOREncoder, error) {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("could not create cbor encoder: %w", err)
	}
	return &CBOREncoder{mode: mode}, nil
}

func (e *CBOREncoder) Encode(r Reading) ([]byte, error) {
	return e.mode.Marshal(r)
}

func (e *CBOREncoder) ContentType() string { return "application/cbor" }

// DecodeCBOR is the inverse of CBOREncoder.Encode and rejects unknown keys.
func DecodeCBOR(data []byte) (Reading, error) {
	var r Reading
	mode, err := cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		return r, err
	}
	if err := mode.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("could not decode reading: %w", err)
	}
	return r, nil
}

// EncoderFor returns the encoder registered under format ("text" or "cbor").
func EncoderFor(format string) (Encoder, error) {
	switch format {
	case "", "text":
		return TextEncoder{}, nil
	case "cbor":
		return NewCBOREncoder()
	}
	return nil, fmt.Errorf("unknown payload format %q", format)
}
