package data

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	// KindInvalid is the zero Kind. As an expected shape it means "any".
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindDate
	KindArray
	KindDictionary
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindArray:
		return "array"
	case KindDictionary:
		return "dictionary"
	default:
		return "invalid"
	}
}

// DictionaryNameKey is the dictionary entry propagated to the search index.
const DictionaryNameKey = "name"

// Value is a tagged union over the shapes an attribute slot can hold.
// The zero Value is invalid.
type Value struct {
	kind Kind

	str  string
	num  float64
	date time.Time
	arr  []Value
	dict map[string]Value
}

func String(s string) Value {
	return Value{kind: KindString, str: s}
}

func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

func Date(t time.Time) Value {
	return Value{kind: KindDate, date: t}
}

func Array(values ...Value) Value {
	if values == nil {
		values = []Value{}
	}
	return Value{kind: KindArray, arr: values}
}

func Dictionary(entries map[string]Value) Value {
	if entries == nil {
		entries = map[string]Value{}
	}
	return Value{kind: KindDictionary, dict: entries}
}

// Strings builds an array of string values.
func Strings(ss ...string) Value {
	values := make([]Value, len(ss))
	for i, s := range ss {
		values[i] = String(s)
	}
	return Array(values...)
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsValid() bool {
	return v.kind != KindInvalid
}

func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

func (v Value) AsDate() (time.Time, bool) {
	return v.date, v.kind == KindDate
}

func (v Value) AsArray() ([]Value, bool) {
	return v.arr, v.kind == KindArray
}

func (v Value) AsDictionary() (map[string]Value, bool) {
	return v.dict, v.kind == KindDictionary
}

// StringSlice returns the elements of an array made only of strings.
func (v Value) StringSlice() ([]string, bool) {
	if v.kind != KindArray {
		return nil, false
	}

	result := make([]string, 0, len(v.arr))
	for _, elem := range v.arr {
		s, ok := elem.AsString()
		if !ok {
			return nil, false
		}
		result = append(result, s)
	}

	return result, true
}

// IsPrimitive reports whether v is a string, number or date.
func (v Value) IsPrimitive() bool {
	switch v.kind {
	case KindString, KindNumber, KindDate:
		return true
	}
	return false
}

// Name returns the "name" entry of a dictionary value.
func (v Value) Name() (Value, bool) {
	if v.kind != KindDictionary {
		return Value{}, false
	}
	name, ok := v.dict[DictionaryNameKey]
	return name, ok
}

// Equal reports structural equality. Dates compare with time.Time.Equal.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}

	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindDate:
		return v.date.Equal(other.date)
	case KindArray:
		return slices.EqualFunc(v.arr, other.arr, Value.Equal)
	case KindDictionary:
		return maps.EqualFunc(v.dict, other.dict, Value.Equal)
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindNumber:
		return fmt.Sprintf("%g", v.num)
	case KindDate:
		return v.date.Format(time.RFC3339Nano)
	case KindArray:
		return fmt.Sprintf("%v", v.arr)
	case KindDictionary:
		keys := slices.Sorted(maps.Keys(v.dict))
		out := "{"
		for i, k := range keys {
			if i > 0 {
				out += " "
			}
			out += k + ":" + v.dict[k].String()
		}
		return out + "}"
	default:
		return "<invalid>"
	}
}
