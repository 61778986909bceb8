package codec_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mwantia/xmeta/codec"
	"github.com/mwantia/xmeta/data"
)

func TestCodec_RoundTrip(t *testing.T) {
	date := time.Date(2024, time.March, 9, 14, 30, 5, 123456789, time.UTC)

	values := map[string]data.Value{
		"string":       data.String("hello, wörld"),
		"empty-string": data.String(""),
		"number":       data.Number(4.5),
		"negative":     data.Number(-0.25),
		"date":         data.Date(date),
		"strings":      data.Strings("apple", "Pear", "fig"),
		"empty-array":  data.Array(),
		"mixed-array":  data.Array(data.String("a"), data.Number(1), data.Date(date)),
		"dictionary": data.Dictionary(map[string]data.Value{
			"name": data.String("design review"),
			"url":  data.String("https://example.com"),
			"date": data.Date(date),
		}),
		"dictionaries": data.Array(
			data.Dictionary(map[string]data.Value{"name": data.String("jim")}),
			data.Dictionary(map[string]data.Value{"name": data.Number(42), "auto": data.Dictionary(nil)}),
		),
	}

	for name, value := range values {
		t.Run(name, func(t *testing.T) {
			b, err := codec.Encode(value)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			got, err := codec.Decode(b, value.Kind())
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if !got.Equal(value) {
				t.Errorf("Expected %s, got %s", value, got)
			}
		})
	}
}

func TestCodec_DeterministicDictionaries(t *testing.T) {
	entries := map[string]data.Value{
		"name": data.String("x"),
		"b":    data.Number(2),
		"a":    data.Number(1),
		"c":    data.String("3"),
	}

	first, err := codec.Encode(data.Dictionary(entries))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	for range 10 {
		again, err := codec.Encode(data.Dictionary(entries))
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if string(again) != string(first) {
			t.Fatalf("Expected identical bytes across encodes")
		}
	}
}

func TestCodec_TooLarge(t *testing.T) {
	c := codec.New(64)

	if _, err := c.Encode(data.String(strings.Repeat("x", 64))); !errors.Is(err, data.ErrTooLarge) {
		t.Errorf("Expected ErrTooLarge, got %v", err)
	}

	if _, err := c.Encode(data.String(strings.Repeat("x", 10))); err != nil {
		t.Errorf("Expected small value to encode, got %v", err)
	}
}

func TestCodec_EncodeIndexed(t *testing.T) {
	tests := []struct {
		name  string
		value data.Value
		want  error
	}{
		{"string", data.String("a"), nil},
		{"strings", data.Strings("a", "b"), nil},
		{"dictionary", data.Dictionary(map[string]data.Value{"name": data.String("a")}), data.ErrWillNotIndex},
		{"nested-array", data.Array(data.Strings("a")), data.ErrWillNotIndex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Default.EncodeIndexed(tt.value)
			if tt.want == nil && err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCodec_DictionaryNameRequired(t *testing.T) {
	missing := data.Array(data.Dictionary(map[string]data.Value{"url": data.String("x")}))
	if _, err := codec.Encode(missing); !errors.Is(err, data.ErrParam) {
		t.Errorf("Expected ErrParam for missing name, got %v", err)
	}

	nested := data.Array(data.Dictionary(map[string]data.Value{"name": data.Strings("x")}))
	if _, err := codec.Encode(nested); !errors.Is(err, data.ErrParam) {
		t.Errorf("Expected ErrParam for array name, got %v", err)
	}
}

func TestCodec_DecodeMalformed(t *testing.T) {
	good, err := codec.Encode(data.Strings("a", "b"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	inputs := map[string][]byte{
		"empty":     {},
		"truncated": good[:len(good)-1],
		"trailing":  append(append([]byte{}, good...), 0x01),
		"garbage":   {0xc1},
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			if _, err := codec.Decode(input, data.KindInvalid); !errors.Is(err, data.ErrMalformed) {
				t.Errorf("Expected ErrMalformed, got %v", err)
			}
		})
	}

	if _, err := codec.Decode(good, data.KindString); !errors.Is(err, data.ErrMalformed) {
		t.Errorf("Expected shape mismatch to be ErrMalformed, got %v", err)
	}
}
