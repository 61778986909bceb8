// Package codec encodes attribute values into the bytes stored in a single
// extended attribute slot.
//
// The wire format is MessagePack. Dictionaries are written with sorted keys
// so equal values always produce equal bytes, which lets the backup layer
// compare snapshots byte-wise.
package codec

import (
	"fmt"
	"maps"
	"slices"

	"github.com/mwantia/xmeta/data"
	"github.com/tinylib/msgp/msgp"
)

// DefaultMaxSize is the ceiling of an encoded value. Most filesystems accept
// about 4k per extended attribute.
const DefaultMaxSize = 4096

// maxDepth bounds nesting on decode.
const maxDepth = 16

// Codec converts between data.Value and attribute bytes.
type Codec struct {
	MaxSize int
}

// Default is a Codec using DefaultMaxSize.
var Default = New(DefaultMaxSize)

func New(maxSize int) *Codec {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Codec{MaxSize: maxSize}
}

// Encode encodes v. Values larger than MaxSize fail with data.ErrTooLarge.
func (c *Codec) Encode(v data.Value) ([]byte, error) {
	if !v.IsValid() {
		return nil, fmt.Errorf("%w: cannot encode invalid value", data.ErrParam)
	}
	if err := ValidateDictionaries(v); err != nil {
		return nil, err
	}

	b, err := appendValue(nil, v)
	if err != nil {
		return nil, err
	}

	if len(b) > c.MaxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", data.ErrTooLarge, len(b), c.MaxSize)
	}

	return b, nil
}

// EncodeIndexed encodes v for an indexed slot. Only primitives and arrays of
// primitives are accepted; anything else fails with data.ErrWillNotIndex.
func (c *Codec) EncodeIndexed(v data.Value) ([]byte, error) {
	if !Indexable(v) {
		return nil, fmt.Errorf("%w: %s", data.ErrWillNotIndex, v.Kind())
	}
	return c.Encode(v)
}

// Decode decodes b and checks the top-level shape against expected.
// data.KindInvalid accepts any shape.
func (c *Codec) Decode(b []byte, expected data.Kind) (data.Value, error) {
	if len(b) == 0 {
		return data.Value{}, fmt.Errorf("%w: empty attribute", data.ErrMalformed)
	}
	if len(b) > c.MaxSize {
		return data.Value{}, fmt.Errorf("%w: %d bytes exceeds %d", data.ErrTooLarge, len(b), c.MaxSize)
	}

	v, rest, err := readValue(b, 0)
	if err != nil {
		return data.Value{}, fmt.Errorf("%w: %v", data.ErrMalformed, err)
	}
	if len(rest) > 0 {
		return data.Value{}, fmt.Errorf("%w: %d trailing bytes", data.ErrMalformed, len(rest))
	}
	if expected != data.KindInvalid && v.Kind() != expected {
		return data.Value{}, fmt.Errorf("%w: expected %s, got %s", data.ErrMalformed, expected, v.Kind())
	}

	return v, nil
}

// Encode encodes v with the Default codec.
func Encode(v data.Value) ([]byte, error) {
	return Default.Encode(v)
}

// Decode decodes b with the Default codec.
func Decode(b []byte, expected data.Kind) (data.Value, error) {
	return Default.Decode(b, expected)
}

// Indexable reports whether the search index can represent v.
func Indexable(v data.Value) bool {
	if v.IsPrimitive() {
		return true
	}

	elems, ok := v.AsArray()
	if !ok {
		return false
	}
	for _, elem := range elems {
		if !elem.IsPrimitive() {
			return false
		}
	}

	return true
}

// ValidateDictionaries checks that every dictionary of a top-level array
// carries a "name" entry holding a string, date or number.
func ValidateDictionaries(v data.Value) error {
	elems, ok := v.AsArray()
	if !ok {
		return nil
	}

	for i, elem := range elems {
		if elem.Kind() != data.KindDictionary {
			continue
		}
		name, ok := elem.Name()
		if !ok {
			return fmt.Errorf("%w: dictionary %d has no %q entry", data.ErrParam, i, data.DictionaryNameKey)
		}
		if !name.IsPrimitive() {
			return fmt.Errorf("%w: dictionary %d %q must be a string, date or number", data.ErrParam, i, data.DictionaryNameKey)
		}
	}

	return nil
}

func appendValue(b []byte, v data.Value) ([]byte, error) {
	switch v.Kind() {
	case data.KindString:
		s, _ := v.AsString()
		return msgp.AppendString(b, s), nil

	case data.KindNumber:
		f, _ := v.AsNumber()
		return msgp.AppendFloat64(b, f), nil

	case data.KindDate:
		t, _ := v.AsDate()
		return msgp.AppendTime(b, t), nil

	case data.KindArray:
		elems, _ := v.AsArray()
		b = msgp.AppendArrayHeader(b, uint32(len(elems)))
		for _, elem := range elems {
			var err error
			if b, err = appendValue(b, elem); err != nil {
				return nil, err
			}
		}
		return b, nil

	case data.KindDictionary:
		entries, _ := v.AsDictionary()
		b = msgp.AppendMapHeader(b, uint32(len(entries)))
		for _, key := range slices.Sorted(maps.Keys(entries)) {
			b = msgp.AppendString(b, key)
			var err error
			if b, err = appendValue(b, entries[key]); err != nil {
				return nil, err
			}
		}
		return b, nil
	}

	return nil, fmt.Errorf("%w: cannot encode %s", data.ErrParam, v.Kind())
}

func readValue(b []byte, depth int) (data.Value, []byte, error) {
	if depth > maxDepth {
		return data.Value{}, nil, fmt.Errorf("nesting deeper than %d", maxDepth)
	}

	switch t := msgp.NextType(b); t {
	case msgp.StrType:
		s, rest, err := msgp.ReadStringBytes(b)
		return data.String(s), rest, err

	case msgp.Float64Type, msgp.Float32Type:
		f, rest, err := msgp.ReadFloat64Bytes(b)
		return data.Number(f), rest, err

	case msgp.IntType:
		i, rest, err := msgp.ReadInt64Bytes(b)
		return data.Number(float64(i)), rest, err

	case msgp.UintType:
		u, rest, err := msgp.ReadUint64Bytes(b)
		return data.Number(float64(u)), rest, err

	case msgp.TimeType:
		ts, rest, err := msgp.ReadTimeBytes(b)
		return data.Date(ts), rest, err

	case msgp.ArrayType:
		n, rest, err := msgp.ReadArrayHeaderBytes(b)
		if err != nil {
			return data.Value{}, nil, err
		}
		elems := make([]data.Value, 0, min(n, 256))
		for range n {
			var elem data.Value
			if elem, rest, err = readValue(rest, depth+1); err != nil {
				return data.Value{}, nil, err
			}
			elems = append(elems, elem)
		}
		return data.Array(elems...), rest, nil

	case msgp.MapType:
		n, rest, err := msgp.ReadMapHeaderBytes(b)
		if err != nil {
			return data.Value{}, nil, err
		}
		entries := make(map[string]data.Value, min(n, 256))
		for range n {
			var key string
			if key, rest, err = msgp.ReadStringBytes(rest); err != nil {
				return data.Value{}, nil, err
			}
			var elem data.Value
			if elem, rest, err = readValue(rest, depth+1); err != nil {
				return data.Value{}, nil, err
			}
			entries[key] = elem
		}
		return data.Dictionary(entries), rest, nil

	default:
		return data.Value{}, nil, fmt.Errorf("unsupported type %s", t)
	}
}
