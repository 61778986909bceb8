package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mwantia/xmeta/backup"
	"github.com/mwantia/xmeta/data"
	"github.com/tidwall/btree"
)

// MemoryBackend keeps backup records in process memory. Records are lost on
// exit, which makes it suitable for tests and short lived tools.
type MemoryBackend struct {
	mu sync.RWMutex

	records *btree.Map[string, *data.BackupRecord]
	paths   *btree.Map[string, string]
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records: btree.NewMap[string, *data.BackupRecord](0),
		paths:   btree.NewMap[string, string](0),
	}
}

// Returns the identifier name defined for this backend
func (*MemoryBackend) Name() string {
	return "memory"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (mb *MemoryBackend) Open(ctx context.Context) error {
	// No initialization needed - backend is ready to use
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (mb *MemoryBackend) Close(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.records.Clear()
	mb.paths.Clear()
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (mb *MemoryBackend) GetCapabilities() *backup.BackendCapabilities {
	return backup.GetAllCapabilities()
}

func (mb *MemoryBackend) Record(ctx context.Context, record *data.BackupRecord) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	stored := record.Clone()
	stored.UpdateTime = time.Now()
	record.UpdateTime = stored.UpdateTime

	mb.records.Set(stored.Key(), stored)
	if stored.Identity.Path != "" {
		mb.paths.Set(stored.Identity.Path, stored.Key())
	}
	return nil
}

func (mb *MemoryBackend) Restore(ctx context.Context, identity data.FileIdentity) (*data.BackupRecord, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	if record, exists := mb.records.Get(identity.Key()); exists {
		return record.Clone(), nil
	}

	if identity.Path != "" {
		if key, exists := mb.paths.Get(identity.Path); exists {
			record, exists := mb.records.Get(key)
			// The indexed record may since have moved to another path.
			if exists && record.Identity.Path == identity.Path {
				return record.Clone(), nil
			}
		}
	}

	return nil, backup.NotFound(identity)
}

func (mb *MemoryBackend) List(ctx context.Context, query *backup.Query) ([]*data.BackupRecord, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	candidates := make([]*data.BackupRecord, 0, mb.records.Len())
	mb.records.Scan(func(key string, record *data.BackupRecord) bool {
		candidates = append(candidates, record.Clone())
		return true
	})

	return backup.Finish(candidates, query), nil
}
