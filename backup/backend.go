// Package backup defines the shadow store that keeps a copy of every file's
// metadata, so attributes lost to copies, archivers or editors that drop
// extended attributes can be restored.
package backup

import (
	"context"

	"github.com/mwantia/xmeta/data"
)

// Backend is used as lifecycle entrypoint for backup store implementations.
type Backend interface {
	// Name returns the identifier name defined for this backend
	Name() string
	// Open is part of the lifecycle behaviour and gets called when opening this backend.
	Open(ctx context.Context) error
	// Close is part of the lifecycle behaviour and gets called when closing this backend.
	Close(ctx context.Context) error

	// GetCapabilities returns a list of capabilities supported by this backend.
	GetCapabilities() *BackendCapabilities
}

// Store keeps one record per file identity. Records are overwritten on every
// write and never deleted automatically.
type Store interface {
	Backend

	// Record stores a copy of record and stamps its UpdateTime.
	Record(ctx context.Context, record *data.BackupRecord) error

	// Restore looks the identity up by key, then by path. Path lookups pick
	// the record written last. Missing records fail with data.ErrNotFound.
	Restore(ctx context.Context, identity data.FileIdentity) (*data.BackupRecord, error)

	// List returns the records matching query. Requires CapabilityList.
	List(ctx context.Context, query *Query) ([]*data.BackupRecord, error)
}
