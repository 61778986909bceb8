package xmeta

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mwantia/xmeta/attr"
	"github.com/mwantia/xmeta/data"
)

// SetString stores a string in the indexed slot of key. An empty string
// removes it.
func (s *Service) SetString(ctx context.Context, location string, key data.Key, value string) (data.Result, error) {
	if value == "" {
		return s.RemoveValue(ctx, location, key, data.Indexed)
	}
	return s.SetIndexedValue(ctx, location, key, data.String(value))
}

func (s *Service) GetString(ctx context.Context, location string, key data.Key) (string, error) {
	v, err := s.readValue(ctx, location, key, data.Indexed, data.KindString)
	if err != nil {
		return "", err
	}
	str, _ := v.AsString()
	return str, nil
}

// SetIndexedValue stores v where the search index picks it up. Values the
// index cannot represent fail with data.ErrWillNotIndex, as do keys whose
// static class is Opaque.
func (s *Service) SetIndexedValue(ctx context.Context, location string, key data.Key, v data.Value) (data.Result, error) {
	return s.writeValue(ctx, location, key, data.Indexed, v)
}

func (s *Service) GetIndexedValue(ctx context.Context, location string, key data.Key) (data.Value, error) {
	return s.readValue(ctx, location, key, data.Indexed, data.KindInvalid)
}

// SetOpaqueValue stores any value outside the search index. Keys classified
// as Indexed are refused with data.ErrWillNotIndex.
func (s *Service) SetOpaqueValue(ctx context.Context, location string, key data.Key, v data.Value) (data.Result, error) {
	return s.writeValue(ctx, location, key, data.Opaque, v)
}

func (s *Service) GetOpaqueValue(ctx context.Context, location string, key data.Key) (data.Value, error) {
	return s.readValue(ctx, location, key, data.Opaque, data.KindInvalid)
}

// RemoveValue removes one slot of key. NoChange is returned when it was
// already absent.
func (s *Service) RemoveValue(ctx context.Context, location string, key data.Key, class data.Class) (data.Result, error) {
	if err := s.validateSlot(key, class); err != nil {
		return data.NoChange, err
	}

	name := s.naming.Name(key, class)
	current, err := attr.ReadOptional(ctx, s.attrs, location, name)
	if err != nil {
		return data.NoChange, err
	}
	if current == nil {
		return data.NoChange, nil
	}

	err = s.update(ctx, location, func(ctx context.Context) error {
		return s.remove(ctx, location, name)
	})
	if err != nil {
		return data.NoChange, err
	}
	return data.Success, nil
}

// GetArray returns the string array stored under key.
func (s *Service) GetArray(ctx context.Context, location string, key data.Key) ([]string, error) {
	v, err := s.readValue(ctx, location, key, data.Indexed, data.KindArray)
	if err != nil {
		return nil, err
	}

	values, ok := v.StringSlice()
	if !ok {
		return nil, fmt.Errorf("%w: '%s' is not an array of strings", data.ErrMalformed, key)
	}
	return values, nil
}

// SetArray replaces the array stored under key. An empty array removes it.
func (s *Service) SetArray(ctx context.Context, location string, key data.Key, values []string) (data.Result, error) {
	if len(values) == 0 {
		return s.RemoveValue(ctx, location, key, data.Indexed)
	}
	return s.SetIndexedValue(ctx, location, key, data.Strings(values...))
}

// AddToArray appends the values not yet present, compared exactly.
func (s *Service) AddToArray(ctx context.Context, location string, key data.Key, values []string) (data.Result, error) {
	existing, err := s.GetArray(ctx, location, key)
	if err != nil && !errors.Is(err, data.ErrNoData) {
		return data.NoChange, err
	}

	merged := slices.Clone(existing)
	for _, value := range values {
		if !slices.Contains(merged, value) {
			merged = append(merged, value)
		}
	}
	if len(merged) == len(existing) {
		return data.NoChange, nil
	}

	return s.SetArray(ctx, location, key, merged)
}

// SetDictionaries stores the full dictionaries in the opaque slot of key
// and their names in the indexed slot. An empty list removes both.
func (s *Service) SetDictionaries(ctx context.Context, location string, key data.Key, dicts []data.Value) (data.Result, error) {
	if err := s.validateKey(key); err != nil {
		return data.NoChange, err
	}
	if data.IsKnown(key) && !slices.Contains(data.DictionaryKeys(), key) {
		return data.NoChange, fmt.Errorf("%w: '%s' does not hold dictionaries", data.ErrParam, key)
	}

	opaqueName := s.naming.Name(key, data.Opaque)
	indexedName := s.naming.Name(key, data.Indexed)

	if len(dicts) == 0 {
		err := s.update(ctx, location, func(ctx context.Context) error {
			if err := s.remove(ctx, location, opaqueName); err != nil {
				return err
			}
			return s.remove(ctx, location, indexedName)
		})
		if err != nil {
			return data.NoChange, err
		}
		return data.Success, nil
	}

	names := make([]data.Value, 0, len(dicts))
	for i, dict := range dicts {
		if dict.Kind() != data.KindDictionary {
			return data.NoChange, fmt.Errorf("%w: element %d is a %s, not a dictionary", data.ErrParam, i, dict.Kind())
		}
		if name, ok := dict.Name(); ok && name.IsPrimitive() {
			names = append(names, name)
		}
	}

	full, err := s.codec.Encode(data.Array(dicts...))
	if err != nil {
		return data.NoChange, err
	}
	indexed, err := s.codec.EncodeIndexed(data.Array(names...))
	if err != nil {
		return data.NoChange, err
	}

	err = s.update(ctx, location, func(ctx context.Context) error {
		if err := s.attrs.WriteAttribute(ctx, location, opaqueName, full); err != nil {
			return err
		}
		return s.attrs.WriteAttribute(ctx, location, indexedName, indexed)
	})
	if err != nil {
		return data.NoChange, err
	}
	return data.Success, nil
}

// GetDictionaries returns the full dictionaries stored under key.
func (s *Service) GetDictionaries(ctx context.Context, location string, key data.Key) ([]data.Value, error) {
	v, err := s.readValue(ctx, location, key, data.Opaque, data.KindArray)
	if err != nil {
		return nil, err
	}

	dicts, _ := v.AsArray()
	for i, dict := range dicts {
		if dict.Kind() != data.KindDictionary {
			return nil, fmt.Errorf("%w: element %d of '%s' is a %s", data.ErrMalformed, i, key, dict.Kind())
		}
	}
	return dicts, nil
}

// GetDictionariesNames returns the names the search index sees for key.
func (s *Service) GetDictionariesNames(ctx context.Context, location string, key data.Key) ([]data.Value, error) {
	v, err := s.readValue(ctx, location, key, data.Indexed, data.KindArray)
	if err != nil {
		return nil, err
	}
	names, _ := v.AsArray()
	return names, nil
}

// Hide marks a file as hidden.
func (s *Service) Hide(ctx context.Context, location string) (data.Result, error) {
	hidden, err := s.IsHidden(ctx, location)
	if err != nil {
		return data.NoChange, err
	}
	if hidden {
		return data.NoChange, nil
	}
	return s.SetIndexedValue(ctx, location, data.KeyHidden, data.Number(1))
}

func (s *Service) Unhide(ctx context.Context, location string) (data.Result, error) {
	return s.RemoveValue(ctx, location, data.KeyHidden, data.Indexed)
}

func (s *Service) IsHidden(ctx context.Context, location string) (bool, error) {
	raw, err := attr.ReadOptional(ctx, s.attrs, location, s.naming.Name(data.KeyHidden, data.Indexed))
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

func (s *Service) writeValue(ctx context.Context, location string, key data.Key, class data.Class, v data.Value) (data.Result, error) {
	if err := s.validateSlot(key, class); err != nil {
		return data.NoChange, err
	}

	var raw []byte
	var err error
	if class == data.Indexed {
		raw, err = s.codec.EncodeIndexed(v)
	} else {
		raw, err = s.codec.Encode(v)
	}
	if err != nil {
		return data.NoChange, err
	}

	name := s.naming.Name(key, class)
	err = s.update(ctx, location, func(ctx context.Context) error {
		return s.attrs.WriteAttribute(ctx, location, name, raw)
	})
	if err != nil {
		return data.NoChange, err
	}
	return data.Success, nil
}

// readValue decodes one slot. An absent slot fails with data.ErrNoData.
func (s *Service) readValue(ctx context.Context, location string, key data.Key, class data.Class, expected data.Kind) (data.Value, error) {
	if err := s.validateKey(key); err != nil {
		return data.Value{}, err
	}

	raw, err := s.attrs.ReadAttribute(ctx, location, s.naming.Name(key, class))
	if err != nil {
		return data.Value{}, err
	}
	return s.codec.Decode(raw, expected)
}

func (s *Service) validateKey(key data.Key) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: key is empty", data.ErrParam)
	case strings.Contains(string(key), "."):
		return fmt.Errorf("%w: key '%s' contains '.'", data.ErrParam, key)
	case s.naming.Shadows(key):
		return fmt.Errorf("%w: key '%s' aliases another attribute", data.ErrParam, key)
	}
	return nil
}

// validateSlot guards generic writes. Tags and rating have typed operations
// of their own; other known keys keep their static class. Keys outside the
// classification may use either slot.
func (s *Service) validateSlot(key data.Key, class data.Class) error {
	if err := s.validateKey(key); err != nil {
		return err
	}

	switch {
	case key == data.KeyUserTags || key == data.KeyStarRating:
		return fmt.Errorf("%w: '%s' is only writable through its typed operations", data.ErrParam, key)
	case data.IsKnown(key) && data.ClassOf(key) != class:
		return fmt.Errorf("%w: '%s' is an %s key", data.ErrWillNotIndex, key, data.ClassOf(key))
	}
	return nil
}
