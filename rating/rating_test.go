package rating_test

import (
	"errors"
	"math"
	"testing"

	"github.com/mwantia/xmeta/codec"
	"github.com/mwantia/xmeta/data"
	"github.com/mwantia/xmeta/rating"
)

func TestEncode_Clamps(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{3.5, 3.5},
		{0, 0},
		{5, 5},
		{-1, 0},
		{7.25, 5},
		{math.Inf(1), 5},
		{math.Inf(-1), 0},
	}

	for _, tt := range tests {
		v, remove, err := rating.Encode(data.NewRating(tt.input))
		if err != nil {
			t.Fatalf("Encode(%v) failed: %v", tt.input, err)
		}
		if remove {
			t.Errorf("Encode(%v): expected a value, got remove", tt.input)
		}
		if got, _ := v.AsNumber(); got != tt.expected {
			t.Errorf("Encode(%v): expected %v, got %v", tt.input, tt.expected, got)
		}
	}
}

func TestEncode_UnsetRemoves(t *testing.T) {
	_, remove, err := rating.Encode(data.Unset)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !remove {
		t.Errorf("Expected Unset to remove the attribute")
	}
}

func TestEncode_NaN(t *testing.T) {
	if _, _, err := rating.Encode(data.NewRating(math.NaN())); !errors.Is(err, data.ErrParam) {
		t.Errorf("Expected ErrParam, got %v", err)
	}
}

func TestDecode(t *testing.T) {
	r, err := rating.Decode(codec.Default, nil)
	if err != nil || r.IsSet() {
		t.Errorf("Expected Unset for absent attribute, got %v (%v)", r, err)
	}

	raw, err := codec.Encode(data.Number(9))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	r, err = rating.Decode(codec.Default, raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if v, ok := r.Value(); !ok || v != 5 {
		t.Errorf("Expected clamped 5, got %v", r)
	}

	raw, _ = codec.Encode(data.String("five"))
	if _, err := rating.Decode(codec.Default, raw); !errors.Is(err, data.ErrMalformed) {
		t.Errorf("Expected ErrMalformed, got %v", err)
	}
}
