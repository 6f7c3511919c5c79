package serializer

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

func init() {
	// Container types that commonly cross the cache boundary as any.
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// Gob is the native format: full fidelity for Go values, including concrete
// struct types registered by the caller via gob.Register. Payloads are not
// portable to non-Go clients.
type Gob struct{}

func (Gob) Serialize(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, fmt.Errorf("%w: gob: %v", ErrSerialize, err)
	}
	return buf.Bytes(), nil
}

func (Gob) Deserialize(data []byte) (any, error) {
	var v any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: gob: %v", ErrDeserialize, err)
	}
	return v, nil
}

func (Gob) Format() string { return FormatNative }
