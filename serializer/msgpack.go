package serializer

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack is the compact binary format: map/array oriented and binary-safe.
// Integers decode as int64 (uint64 beyond the int64 range) and maps as
// map[string]any when keys are strings.
type Msgpack struct{}

func (Msgpack) Serialize(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: msgpack: %v", ErrSerialize, err)
	}
	return data, nil
}

func (Msgpack) Deserialize(data []byte) (any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	// Collapse the integer zoo to int64/uint64 so round trips are stable.
	dec.UseLooseInterfaceDecoding(true)

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: msgpack: %v", ErrDeserialize, err)
	}
	return v, nil
}

func (Msgpack) Format() string { return FormatBinary }
