package serializer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Wire markers. These two bytes prefix every payload written by Compressed
// and must never change: readers with different compression settings rely on
// them to pick the decode branch.
var (
	markerCompressed   = []byte{0x1f, 0x8b}
	markerUncompressed = []byte{0x00, 0x00}
)

// Compressed decorates any Serializer with threshold-based zlib compression.
// Encoded payloads at or above the threshold are compressed and framed with
// the "compressed" marker; smaller payloads are framed uncompressed. Unknown
// markers are a hard decode error.
type Compressed struct {
	base      Serializer
	threshold int
}

// NewCompressed wraps base. threshold is the minimum encoded length, in
// bytes, at which compression kicks in.
func NewCompressed(base Serializer, threshold int) *Compressed {
	return &Compressed{base: base, threshold: threshold}
}

func (c *Compressed) Serialize(v any) ([]byte, error) {
	encoded, err := c.base.Serialize(v)
	if err != nil {
		return nil, err
	}

	if len(encoded) < c.threshold {
		out := make([]byte, 0, 2+len(encoded))
		out = append(out, markerUncompressed...)
		return append(out, encoded...), nil
	}

	var buf bytes.Buffer
	buf.Write(markerCompressed)
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(encoded); err != nil {
		return nil, fmt.Errorf("%w: compress: %v", ErrSerialize, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: compress: %v", ErrSerialize, err)
	}
	return buf.Bytes(), nil
}

func (c *Compressed) Deserialize(data []byte) (any, error) {
	if len(data) < 2 {
		return nil, ErrShortPayload
	}
	marker, payload := data[:2], data[2:]

	switch {
	case bytes.Equal(marker, markerUncompressed):
		return c.base.Deserialize(payload)

	case bytes.Equal(marker, markerCompressed):
		zr, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: decompress: %v", ErrDeserialize, err)
		}
		defer zr.Close()
		decoded, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress: %v", ErrDeserialize, err)
		}
		return c.base.Deserialize(decoded)

	default:
		return nil, fmt.Errorf("%w: %02x%02x", ErrUnknownMarker, marker[0], marker[1])
	}
}

func (c *Compressed) Format() string {
	return c.base.Format() + "+zlib"
}
