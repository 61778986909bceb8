package attr

import (
	"context"

	"github.com/mwantia/xmeta/data"
)

// ReadOnlyStore wraps any IdentifyingStore to make it read-only.
// All read operations are passed through to the underlying store.
// All write operations return data.ErrReadOnly.
type ReadOnlyStore struct {
	store IdentifyingStore
}

// NewReadOnly creates a new read-only wrapper around the given store.
func NewReadOnly(store IdentifyingStore) *ReadOnlyStore {
	return &ReadOnlyStore{
		store: store,
	}
}

func (ros *ReadOnlyStore) Name() string {
	return ros.store.Name() + "-readonly"
}

func (ros *ReadOnlyStore) Open(ctx context.Context) error {
	return ros.store.Open(ctx)
}

func (ros *ReadOnlyStore) Close(ctx context.Context) error {
	return ros.store.Close(ctx)
}

func (ros *ReadOnlyStore) Identify(ctx context.Context, location string) (data.FileIdentity, error) {
	return ros.store.Identify(ctx, location)
}

func (ros *ReadOnlyStore) ReadAttribute(ctx context.Context, location, name string) ([]byte, error) {
	return ros.store.ReadAttribute(ctx, location, name)
}

func (ros *ReadOnlyStore) ListAttributes(ctx context.Context, location string) ([]string, error) {
	return ros.store.ListAttributes(ctx, location)
}

func (ros *ReadOnlyStore) WriteAttribute(ctx context.Context, location, name string, value []byte) error {
	return data.ErrReadOnly
}

func (ros *ReadOnlyStore) RemoveAttribute(ctx context.Context, location, name string) error {
	return data.ErrReadOnly
}
