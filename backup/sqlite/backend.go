package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/mwantia/xmeta/backup"
	"github.com/tidwall/btree"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteBackend persists backup records in a single SQLite table:
//
// Layer 1: In-memory B-tree of every identity key (keys map)
// Layer 2: SQLite table (xmeta_backup) holding one row per identity
//
// The B-tree answers misses without touching the database, which is the
// common case for files that never had metadata.
type SQLiteBackend struct {
	mu sync.RWMutex
	db *sql.DB

	// In-memory B-tree for fast key lookups (identity key -> path)
	keys *btree.Map[string, string]
}

// NewSQLiteBackend creates a new SQLite-backed backup store.
// The dbPath can be ":memory:" for an in-memory database or a file path.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Every connection would otherwise see its own empty database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	backend := &SQLiteBackend{
		db:   db,
		keys: btree.NewMap[string, string](0),
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return backend, nil
}

// initSchema creates the database schema.
func (sb *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS xmeta_backup (
		identity_key TEXT PRIMARY KEY,
		device INTEGER NOT NULL,
		inode INTEGER NOT NULL,
		path TEXT NOT NULL,
		tags BLOB,
		rating BLOB,
		attributes TEXT,
		update_time INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_xmeta_backup_path ON xmeta_backup(path, update_time);
	CREATE INDEX IF NOT EXISTS idx_xmeta_backup_update_time ON xmeta_backup(update_time);
	`

	_, err := sb.db.Exec(schema)
	return err
}

// Returns the identifier name defined for this backend
func (*SQLiteBackend) Name() string {
	return "sqlite"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *SQLiteBackend) Open(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	// Verify database connection
	if err := sb.db.PingContext(ctx); err != nil {
		return err
	}

	// Load all keys into memory B-tree
	rows, err := sb.db.QueryContext(ctx, "SELECT identity_key, path FROM xmeta_backup")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key, path string
		if err := rows.Scan(&key, &path); err != nil {
			return err
		}
		sb.keys.Set(key, path)
	}

	return rows.Err()
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *SQLiteBackend) Close(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.keys.Clear()
	return sb.db.Close()
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *SQLiteBackend) GetCapabilities() *backup.BackendCapabilities {
	return backup.GetAllCapabilities()
}
