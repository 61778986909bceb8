// Package memory keeps extended attributes of simulated files in memory.
// Besides the attr.Store contract it can create, rename, copy and strip
// files, which is what tests need to reproduce attribute loss.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/mwantia/xmeta/data"
	"github.com/tidwall/btree"
)

// Device is the device number reported for every memory file.
const Device uint64 = 1

type file struct {
	inode uint64
	attrs map[string][]byte
}

type MemoryStore struct {
	mu sync.RWMutex

	files     *btree.Map[string, *file]
	nextInode uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:     btree.NewMap[string, *file](0),
		nextInode: 1,
	}
}

// Returns the identifier name defined for this store
func (*MemoryStore) Name() string {
	return "memory"
}

func (ms *MemoryStore) Open(ctx context.Context) error {
	return nil
}

func (ms *MemoryStore) Close(ctx context.Context) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.files.Clear()
	return nil
}

// Create adds an empty file. Creating an existing location is a no-op.
func (ms *MemoryStore) Create(location string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.files.Get(location); exists {
		return
	}
	ms.files.Set(location, ms.newFile())
}

// Rename moves a file and keeps its inode and attributes.
func (ms *MemoryStore) Rename(from, to string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	f, exists := ms.files.Delete(from)
	if !exists {
		return fmt.Errorf("%w: %s", data.ErrNotExist, from)
	}
	ms.files.Set(to, f)
	return nil
}

// Copy creates dst with a new inode. keepAttrs decides whether the extended
// attributes travel along, which many copy tools do not do.
func (ms *MemoryStore) Copy(src, dst string, keepAttrs bool) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	f, exists := ms.files.Get(src)
	if !exists {
		return fmt.Errorf("%w: %s", data.ErrNotExist, src)
	}

	copied := ms.newFile()
	if keepAttrs {
		for name, value := range f.attrs {
			copied.attrs[name] = slices.Clone(value)
		}
	}
	ms.files.Set(dst, copied)
	return nil
}

// Strip removes every attribute of a file.
func (ms *MemoryStore) Strip(location string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	f, exists := ms.files.Get(location)
	if !exists {
		return fmt.Errorf("%w: %s", data.ErrNotExist, location)
	}
	clear(f.attrs)
	return nil
}

// Locations returns every file path in order.
func (ms *MemoryStore) Locations() []string {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	return ms.files.Keys()
}

func (ms *MemoryStore) Identify(ctx context.Context, location string) (data.FileIdentity, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	f, err := ms.lookup(location)
	if err != nil {
		return data.FileIdentity{}, err
	}
	return data.FileIdentity{Device: Device, Inode: f.inode, Path: location}, nil
}

func (ms *MemoryStore) ReadAttribute(ctx context.Context, location, name string) ([]byte, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	f, err := ms.lookup(location)
	if err != nil {
		return nil, err
	}

	value, exists := f.attrs[name]
	if !exists {
		return nil, data.ErrNoData
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (ms *MemoryStore) WriteAttribute(ctx context.Context, location, name string, value []byte) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	f, err := ms.lookup(location)
	if err != nil {
		return err
	}
	f.attrs[name] = slices.Clone(value)
	return nil
}

func (ms *MemoryStore) RemoveAttribute(ctx context.Context, location, name string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	f, err := ms.lookup(location)
	if err != nil {
		return err
	}
	if _, exists := f.attrs[name]; !exists {
		return data.ErrNoData
	}
	delete(f.attrs, name)
	return nil
}

func (ms *MemoryStore) ListAttributes(ctx context.Context, location string) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	f, err := ms.lookup(location)
	if err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(f.attrs)), nil
}

func (ms *MemoryStore) lookup(location string) (*file, error) {
	f, exists := ms.files.Get(location)
	if !exists {
		return nil, fmt.Errorf("%w: %s", data.ErrNotExist, location)
	}
	return f, nil
}

func (ms *MemoryStore) newFile() *file {
	f := &file{inode: ms.nextInode, attrs: make(map[string][]byte)}
	ms.nextInode++
	return f
}
