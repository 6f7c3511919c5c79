package serializer

import (
	"encoding/json"
	"fmt"
)

// JSON is the text format: primitives, sequences and string-keyed mappings
// survive a round trip with JSON semantics (numbers come back as float64,
// maps as map[string]any). Values JSON cannot represent degrade to a
// best-effort string rendering rather than failing the whole write.
type JSON struct{}

func (JSON) Serialize(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err == nil {
		return data, nil
	}
	// Fallback: stringify values outside JSON's model (channels, funcs,
	// cyclic structs rendered via %+v).
	data, ferr := json.Marshal(fmt.Sprintf("%+v", v))
	if ferr != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrSerialize, err)
	}
	return data, nil
}

func (JSON) Deserialize(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrDeserialize, err)
	}
	return v, nil
}

func (JSON) Format() string { return FormatText }
