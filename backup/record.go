package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"

	"github.com/mwantia/xmeta/data"
)

const (
	recordsDir = "records"
	pathsDir   = "paths"
)

// RecordKey is the object key of a record in key-value and object stores.
func RecordKey(identityKey string) string {
	return path.Join(recordsDir, identityKey)
}

// PathKey is the object key of the path index entry of a file path. The
// path is hashed so any path fits into a flat key.
func PathKey(filePath string) string {
	sum := sha256.Sum256([]byte(filePath))
	return path.Join(pathsDir, hex.EncodeToString(sum[:]))
}

// RecordsPrefix is the common prefix of every record key.
func RecordsPrefix() string {
	return recordsDir + "/"
}

// Marshal serializes a record for key-value and object stores and checks it
// against the backend limit.
func Marshal(record *data.BackupRecord, capabilities *BackendCapabilities) ([]byte, error) {
	b, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	if capabilities != nil && capabilities.MaxRecordSize > 0 && int64(len(b)) > capabilities.MaxRecordSize {
		return nil, fmt.Errorf("%w: record of %d bytes exceeds %d", data.ErrTooLarge, len(b), capabilities.MaxRecordSize)
	}
	return b, nil
}

func Unmarshal(b []byte) (*data.BackupRecord, error) {
	var record data.BackupRecord
	if err := json.Unmarshal(b, &record); err != nil {
		return nil, fmt.Errorf("%w: backup record: %v", data.ErrMalformed, err)
	}
	return &record, nil
}

// Newest returns the record with the latest UpdateTime.
func Newest(records []*data.BackupRecord) *data.BackupRecord {
	var newest *data.BackupRecord
	for _, record := range records {
		if newest == nil || record.UpdateTime.After(newest.UpdateTime) {
			newest = record
		}
	}
	return newest
}

// NotFound builds the error returned for a missing record.
func NotFound(identity data.FileIdentity) error {
	return fmt.Errorf("%w: %s", data.ErrNotFound, identity)
}
