package data

import "strconv"

// MaxRating is the upper bound of a rating; the lower bound is 0.
const MaxRating = 5.0

// Rating is a value in [0, MaxRating] or the distinguished unset state.
// Unset is not the same as 0.
type Rating struct {
	value float64
	set   bool
}

// Unset is the rating of a file that never had one.
var Unset = Rating{}

func NewRating(value float64) Rating {
	return Rating{value: value, set: true}
}

func (r Rating) IsSet() bool {
	return r.set
}

// Value returns the rating and whether it is set.
func (r Rating) Value() (float64, bool) {
	return r.value, r.set
}

func (r Rating) String() string {
	if !r.set {
		return "unset"
	}
	return strconv.FormatFloat(r.value, 'g', -1, 64)
}
