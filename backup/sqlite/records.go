package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mwantia/xmeta/backup"
	"github.com/mwantia/xmeta/data"
)

const selectColumns = `SELECT identity_key, device, inode, path, tags, rating, attributes, update_time FROM xmeta_backup`

func (sb *SQLiteBackend) Record(ctx context.Context, record *data.BackupRecord) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	record.UpdateTime = time.Now()

	// Serialize values to JSON
	var attributesJSON sql.NullString
	if len(record.Values) > 0 {
		bytes, err := json.Marshal(record.Values)
		if err != nil {
			return err
		}
		attributesJSON = sql.NullString{String: string(bytes), Valid: true}
	}

	_, err := sb.db.ExecContext(ctx, `
		INSERT INTO xmeta_backup (identity_key, device, inode, path, tags, rating, attributes, update_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity_key) DO UPDATE SET
			path = excluded.path,
			tags = excluded.tags,
			rating = excluded.rating,
			attributes = excluded.attributes,
			update_time = excluded.update_time
	`, record.Key(), int64(record.Identity.Device), int64(record.Identity.Inode), record.Identity.Path,
		nullBytes(record.Tags), nullBytes(record.Rating), attributesJSON, record.UpdateTime.UnixNano())
	if err != nil {
		return data.StorageFailure("record", record.Identity.Path, "", err)
	}

	// Update B-tree
	sb.keys.Set(record.Key(), record.Identity.Path)
	return nil
}

func (sb *SQLiteBackend) Restore(ctx context.Context, identity data.FileIdentity) (*data.BackupRecord, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	// Check B-tree first
	if _, exists := sb.keys.Get(identity.Key()); exists {
		record, err := scanRecord(sb.db.QueryRowContext(ctx, selectColumns+` WHERE identity_key = ?`, identity.Key()))
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, data.StorageFailure("restore", identity.Path, "", err)
		}
	}

	if identity.Path == "" {
		return nil, backup.NotFound(identity)
	}

	record, err := scanRecord(sb.db.QueryRowContext(ctx,
		selectColumns+` WHERE path = ? ORDER BY update_time DESC LIMIT 1`, identity.Path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backup.NotFound(identity)
	}
	if err != nil {
		return nil, data.StorageFailure("restore", identity.Path, "", err)
	}
	return record, nil
}

func (sb *SQLiteBackend) List(ctx context.Context, query *backup.Query) ([]*data.BackupRecord, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	var (
		conditions []string
		args       []any
	)
	if query != nil && query.PathPrefix != "" {
		conditions = append(conditions, `substr(path, 1, ?) = ?`)
		args = append(args, len(query.PathPrefix), query.PathPrefix)
	}
	if query != nil && query.UpdatedAfter != nil {
		conditions = append(conditions, `update_time > ?`)
		args = append(args, query.UpdatedAfter.UnixNano())
	}

	stmt := selectColumns
	if len(conditions) > 0 {
		stmt += " WHERE " + strings.Join(conditions, " AND ")
	}

	rows, err := sb.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, data.StorageFailure("list", "", "", err)
	}
	defer rows.Close()

	candidates := make([]*data.BackupRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, data.StorageFailure("list", "", "", err)
		}
		candidates = append(candidates, record)
	}
	if err := rows.Err(); err != nil {
		return nil, data.StorageFailure("list", "", "", err)
	}

	// Sorting and pagination are shared with the other backends
	return backup.Finish(candidates, query), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*data.BackupRecord, error) {
	var (
		record         data.BackupRecord
		key            string
		device, inode  int64
		attributesJSON sql.NullString
		updateTime     int64
	)

	if err := row.Scan(&key, &device, &inode, &record.Identity.Path,
		&record.Tags, &record.Rating, &attributesJSON, &updateTime); err != nil {
		return nil, err
	}

	record.Identity.Device = uint64(device)
	record.Identity.Inode = uint64(inode)
	record.UpdateTime = time.Unix(0, updateTime)

	// Deserialize values
	if attributesJSON.Valid && attributesJSON.String != "" {
		if err := json.Unmarshal([]byte(attributesJSON.String), &record.Values); err != nil {
			return nil, fmt.Errorf("%w: values of %s: %v", data.ErrMalformed, key, err)
		}
	}

	return &record, nil
}

func nullBytes(val []byte) any {
	if val == nil {
		return nil
	}
	return val
}
