package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mwantia/xmeta/backup"
	"github.com/mwantia/xmeta/data"
)

const selectColumns = `SELECT identity_key, device::TEXT, inode::TEXT, path, tags, rating, attributes::TEXT, update_time FROM xmeta_backup`

func (pb *PostgresBackend) Record(ctx context.Context, record *data.BackupRecord) error {
	record.UpdateTime = time.Now()

	// Serialize values to JSONB
	var attributesJSON *string
	if len(record.Values) > 0 {
		bytes, err := json.Marshal(record.Values)
		if err != nil {
			return fmt.Errorf("failed to marshal values: %w", err)
		}
		s := string(bytes)
		attributesJSON = &s
	}

	conn, err := pb.pool.Acquire(ctx)
	if err != nil {
		return data.StorageFailure("record", record.Identity.Path, "", fmt.Errorf("failed to acquire connection: %w", err))
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
		INSERT INTO xmeta_backup (identity_key, device, inode, path, tags, rating, attributes, update_time)
		VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4, $5, $6, $7::JSONB, $8)
		ON CONFLICT (identity_key) DO UPDATE SET
			path = EXCLUDED.path,
			tags = EXCLUDED.tags,
			rating = EXCLUDED.rating,
			attributes = EXCLUDED.attributes,
			update_time = EXCLUDED.update_time
	`, record.Key(),
		strconv.FormatUint(record.Identity.Device, 10), strconv.FormatUint(record.Identity.Inode, 10),
		record.Identity.Path, record.Tags, record.Rating, attributesJSON, record.UpdateTime.UnixNano())
	if err != nil {
		return data.StorageFailure("record", record.Identity.Path, "", fmt.Errorf("failed to upsert record: %w", err))
	}

	return nil
}

func (pb *PostgresBackend) Restore(ctx context.Context, identity data.FileIdentity) (*data.BackupRecord, error) {
	conn, err := pb.pool.Acquire(ctx)
	if err != nil {
		return nil, data.StorageFailure("restore", identity.Path, "", fmt.Errorf("failed to acquire connection: %w", err))
	}
	defer conn.Release()

	record, err := scanRecord(conn.QueryRow(ctx, selectColumns+` WHERE identity_key = $1`, identity.Key()))
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, data.StorageFailure("restore", identity.Path, "", err)
	}

	if identity.Path == "" {
		return nil, backup.NotFound(identity)
	}

	record, err = scanRecord(conn.QueryRow(ctx,
		selectColumns+` WHERE path = $1 ORDER BY update_time DESC LIMIT 1`, identity.Path))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, backup.NotFound(identity)
	}
	if err != nil {
		return nil, data.StorageFailure("restore", identity.Path, "", err)
	}
	return record, nil
}

func (pb *PostgresBackend) List(ctx context.Context, query *backup.Query) ([]*data.BackupRecord, error) {
	stmt, args := buildListQuery(query)

	conn, err := pb.pool.Acquire(ctx)
	if err != nil {
		return nil, data.StorageFailure("list", "", "", fmt.Errorf("failed to acquire connection: %w", err))
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, stmt, args...)
	if err != nil {
		return nil, data.StorageFailure("list", "", "", fmt.Errorf("failed to query records: %w", err))
	}
	defer rows.Close()

	records := make([]*data.BackupRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, data.StorageFailure("list", "", "", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, data.StorageFailure("list", "", "", fmt.Errorf("failed to iterate rows: %w", err))
	}

	return records, nil
}

// buildListQuery pushes filters, sorting and pagination down to PostgreSQL.
func buildListQuery(query *backup.Query) (string, []any) {
	stmt := selectColumns + " WHERE 1=1"
	args := make([]any, 0)
	argIdx := 1

	if query == nil {
		query = &backup.Query{}
	}

	if query.PathPrefix != "" {
		stmt += fmt.Sprintf(" AND starts_with(path, $%d)", argIdx)
		args = append(args, query.PathPrefix)
		argIdx++
	}
	if query.UpdatedAfter != nil {
		stmt += fmt.Sprintf(" AND update_time > $%d", argIdx)
		args = append(args, query.UpdatedAfter.UnixNano())
		argIdx++
	}

	column := "identity_key"
	switch query.SortBy {
	case backup.SortByPath:
		column = "path"
	case backup.SortByUpdateTime:
		column = "update_time"
	}
	order := "ASC"
	if query.SortOrder == backup.SortDesc {
		order = "DESC"
	}
	stmt += fmt.Sprintf(" ORDER BY %s %s, identity_key %s", column, order, order)

	if query.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, query.Limit)
		argIdx++
	}
	if query.Offset > 0 {
		stmt += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, query.Offset)
	}

	return stmt, args
}

func scanRecord(row pgx.Row) (*data.BackupRecord, error) {
	var (
		record         data.BackupRecord
		key            string
		device, inode  string
		attributesJSON *string
		updateTime     int64
	)

	if err := row.Scan(&key, &device, &inode, &record.Identity.Path,
		&record.Tags, &record.Rating, &attributesJSON, &updateTime); err != nil {
		return nil, err
	}

	var err error
	if record.Identity.Device, err = strconv.ParseUint(device, 10, 64); err != nil {
		return nil, fmt.Errorf("%w: device of %s: %v", data.ErrMalformed, key, err)
	}
	if record.Identity.Inode, err = strconv.ParseUint(inode, 10, 64); err != nil {
		return nil, fmt.Errorf("%w: inode of %s: %v", data.ErrMalformed, key, err)
	}
	record.UpdateTime = time.Unix(0, updateTime)

	if attributesJSON != nil && *attributesJSON != "" {
		if err := json.Unmarshal([]byte(*attributesJSON), &record.Values); err != nil {
			return nil, fmt.Errorf("%w: values of %s: %v", data.ErrMalformed, key, err)
		}
	}

	return &record, nil
}
