// Package attr defines the raw extended attribute primitive the metadata
// service is built on, plus the derivation of stable file identities.
package attr

import (
	"context"
	"errors"

	"github.com/mwantia/xmeta/data"
)

// Store reads and writes named byte slots attached to a file.
type Store interface {
	// Name returns the identifier name defined for this store
	Name() string
	// Open is part of the lifecycle behaviour and gets called when opening this store.
	Open(ctx context.Context) error
	// Close is part of the lifecycle behaviour and gets called when closing this store.
	Close(ctx context.Context) error

	// ReadAttribute returns the slot content. Absent slots fail with
	// data.ErrNoData; an empty slot is returned as a non-nil empty slice.
	ReadAttribute(ctx context.Context, location, name string) ([]byte, error)

	WriteAttribute(ctx context.Context, location, name string, value []byte) error

	// RemoveAttribute fails with data.ErrNoData when the slot is absent.
	RemoveAttribute(ctx context.Context, location, name string) error

	// ListAttributes returns the names of every slot on the file.
	ListAttributes(ctx context.Context, location string) ([]string, error)
}

// Identifier derives the identity of the file at a location.
type Identifier interface {
	Identify(ctx context.Context, location string) (data.FileIdentity, error)
}

// IdentifyingStore is a Store that can also identify files, which is what
// both bundled adapters provide.
type IdentifyingStore interface {
	Store
	Identifier
}

// ReadOptional reads a slot and maps absence to a nil slice.
func ReadOptional(ctx context.Context, store Store, location, name string) ([]byte, error) {
	b, err := store.ReadAttribute(ctx, location, name)
	if err != nil {
		if isNoData(err) {
			return nil, nil
		}
		return nil, err
	}
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

// RemoveOptional removes a slot, treating absence as success.
func RemoveOptional(ctx context.Context, store Store, location, name string) error {
	if err := store.RemoveAttribute(ctx, location, name); err != nil && !isNoData(err) {
		return err
	}
	return nil
}

func isNoData(err error) bool {
	return errors.Is(err, data.ErrNoData)
}
