// Package rating converts star ratings to and from attribute values.
package rating

import (
	"fmt"
	"math"

	"github.com/mwantia/xmeta/codec"
	"github.com/mwantia/xmeta/data"
)

// Encode returns the value to store for r. remove is true for data.Unset,
// in which case the attribute is removed instead of written.
func Encode(r data.Rating) (value data.Value, remove bool, err error) {
	v, ok := r.Value()
	if !ok {
		return data.Value{}, true, nil
	}
	if math.IsNaN(v) {
		return data.Value{}, false, fmt.Errorf("%w: rating is NaN", data.ErrParam)
	}
	return data.Number(Clamp(v)), false, nil
}

// Decode reads a stored rating. A nil raw value means the attribute is
// absent and yields data.Unset.
func Decode(c *codec.Codec, raw []byte) (data.Rating, error) {
	if raw == nil {
		return data.Unset, nil
	}

	v, err := c.Decode(raw, data.KindNumber)
	if err != nil {
		return data.Unset, err
	}

	n, _ := v.AsNumber()
	if math.IsNaN(n) {
		return data.Unset, fmt.Errorf("%w: stored rating is NaN", data.ErrMalformed)
	}
	return data.NewRating(Clamp(n)), nil
}

// Clamp bounds v to [0, data.MaxRating]. Infinities clamp to the nearest bound.
func Clamp(v float64) float64 {
	return math.Max(0, math.Min(data.MaxRating, v))
}
