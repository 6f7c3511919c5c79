package serializer

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestJSONRoundTrip(t *testing.T) {
	s := JSON{}

	// JSON semantics: numbers decode as float64, maps as map[string]any.
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"string", "hello", "hello"},
		{"integer", 42, float64(42)},
		{"float", 3.5, 3.5},
		{"bool", true, true},
		{"list", []any{"a", float64(1)}, []any{"a", float64(1)}},
		{"nested map", map[string]any{"a": map[string]any{"b": float64(2)}},
			map[string]any{"a": map[string]any{"b": float64(2)}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := s.Serialize(tc.in)
			if err != nil {
				t.Fatalf("Serialize: %v", err)
			}
			got, err := s.Deserialize(data)
			if err != nil {
				t.Fatalf("Deserialize: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestJSONStringifyFallback(t *testing.T) {
	s := JSON{}

	// A channel is not representable in JSON; the fallback stores a string
	// rendering instead of failing.
	data, err := s.Serialize(map[string]chan int{"c": make(chan int)})
	if err != nil {
		t.Fatalf("Serialize fallback: %v", err)
	}
	got, err := s.Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if _, ok := got.(string); !ok {
		t.Fatalf("fallback should decode as string, got %T", got)
	}
}

func TestGobRoundTrip(t *testing.T) {
	s := Gob{}

	cases := []any{
		"hello",
		42,
		3.5,
		true,
		[]any{"a", 1},
		map[string]any{"a": map[string]any{"b": 2}},
	}
	for _, in := range cases {
		data, err := s.Serialize(in)
		if err != nil {
			t.Fatalf("Serialize(%#v): %v", in, err)
		}
		got, err := s.Deserialize(data)
		if err != nil {
			t.Fatalf("Deserialize(%#v): %v", in, err)
		}
		if !reflect.DeepEqual(got, in) {
			t.Fatalf("got %#v, want %#v", got, in)
		}
	}
}

func TestMsgpackRoundTrip(t *testing.T) {
	s := Msgpack{}

	cases := []struct {
		name string
		in   any
		want any
	}{
		{"string", "hello", "hello"},
		{"integer", int64(42), int64(42)},
		{"float", 3.5, 3.5},
		{"bool", true, true},
		{"bytes", []byte{0x00, 0xff, 0x1f}, []byte{0x00, 0xff, 0x1f}},
		{"map", map[string]any{"n": int64(7)}, map[string]any{"n": int64(7)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := s.Serialize(tc.in)
			if err != nil {
				t.Fatalf("Serialize: %v", err)
			}
			got, err := s.Deserialize(data)
			if err != nil {
				t.Fatalf("Deserialize: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestNewFactory(t *testing.T) {
	for _, format := range []string{FormatText, FormatNative, FormatBinary} {
		s, err := New(format, false, 0)
		if err != nil {
			t.Fatalf("New(%q): %v", format, err)
		}
		if s.Format() != format {
			t.Fatalf("Format() = %q, want %q", s.Format(), format)
		}
	}

	if _, err := New("xml", false, 0); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("New(xml) error = %v, want ErrUnknownFormat", err)
	}

	s, err := New(FormatText, true, 64)
	if err != nil {
		t.Fatalf("New compressed: %v", err)
	}
	if s.Format() != "text+zlib" {
		t.Fatalf("Format() = %q, want text+zlib", s.Format())
	}
}

func TestCompressionFraming(t *testing.T) {
	s := NewCompressed(JSON{}, 64)

	small := "tiny"
	big := string(bytes.Repeat([]byte("abcdefgh"), 64)) // compresses well

	smallData, err := s.Serialize(small)
	if err != nil {
		t.Fatalf("Serialize small: %v", err)
	}
	if !bytes.Equal(smallData[:2], markerUncompressed) {
		t.Fatalf("small payload marker = %x, want %x", smallData[:2], markerUncompressed)
	}

	bigData, err := s.Serialize(big)
	if err != nil {
		t.Fatalf("Serialize big: %v", err)
	}
	if !bytes.Equal(bigData[:2], markerCompressed) {
		t.Fatalf("big payload marker = %x, want %x", bigData[:2], markerCompressed)
	}
	if len(bigData) >= len(big) {
		t.Fatalf("compressed payload not smaller: %d >= %d", len(bigData), len(big))
	}

	for _, data := range [][]byte{smallData, bigData} {
		got, err := s.Deserialize(data)
		if err != nil {
			t.Fatalf("Deserialize: %v", err)
		}
		want := small
		if bytes.Equal(data[:2], markerCompressed) {
			want = big
		}
		if got != want {
			t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got.(string)), len(want))
		}
	}
}

func TestCompressionMixedSettingsInterop(t *testing.T) {
	// A reader with a different threshold must still decode both branches.
	writer := NewCompressed(JSON{}, 16)
	reader := NewCompressed(JSON{}, 1<<20)

	for _, v := range []string{"x", string(bytes.Repeat([]byte("y"), 256))} {
		data, err := writer.Serialize(v)
		if err != nil {
			t.Fatalf("Serialize: %v", err)
		}
		got, err := reader.Deserialize(data)
		if err != nil {
			t.Fatalf("Deserialize: %v", err)
		}
		if got != v {
			t.Fatal("round trip mismatch across compression settings")
		}
	}
}

func TestCompressionDecodeErrors(t *testing.T) {
	s := NewCompressed(JSON{}, 64)

	if _, err := s.Deserialize([]byte{0x00}); !errors.Is(err, ErrShortPayload) {
		t.Fatalf("short payload error = %v, want ErrShortPayload", err)
	}
	if _, err := s.Deserialize([]byte{0xde, 0xad, 0x01}); !errors.Is(err, ErrUnknownMarker) {
		t.Fatalf("unknown marker error = %v, want ErrUnknownMarker", err)
	}
}
