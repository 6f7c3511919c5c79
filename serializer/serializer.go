// Package serializer converts cache values to and from storage-ready byte
// sequences. Three formats are provided — JSON (text), gob (Go-native, full
// fidelity) and msgpack (compact binary) — plus a compression wrapper that
// frames payloads with a 2-byte marker so readers and writers with different
// compression settings interoperate on the same store.
package serializer

import (
	"errors"
	"fmt"
)

// Format names understood by New.
const (
	FormatText   = "text"
	FormatNative = "native"
	FormatBinary = "binary"
)

// Serialization errors. Decode failures wrap one of these so callers can
// classify without string matching.
var (
	ErrSerialize     = errors.New("serialize failed")
	ErrDeserialize   = errors.New("deserialize failed")
	ErrUnknownMarker = errors.New("unknown compression marker")
	ErrShortPayload  = errors.New("compressed payload too short")
	ErrUnknownFormat = errors.New("unknown serialization format")
)

// Serializer is the encoding contract used by every backend.
type Serializer interface {
	// Serialize encodes a value to bytes.
	Serialize(v any) ([]byte, error)

	// Deserialize decodes bytes produced by Serialize.
	Deserialize(data []byte) (any, error)

	// Format returns the format name, e.g. "text" or "binary+zlib".
	Format() string
}

// New builds the serializer for a format name, optionally wrapped with
// compression. threshold is the minimum encoded size, in bytes, at which
// payloads are compressed.
func New(format string, enableCompression bool, threshold int) (Serializer, error) {
	var base Serializer
	switch format {
	case FormatText:
		base = JSON{}
	case FormatNative:
		base = Gob{}
	case FormatBinary:
		base = Msgpack{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if enableCompression {
		return NewCompressed(base, threshold), nil
	}
	return base, nil
}
