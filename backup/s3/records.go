package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/mwantia/xmeta/backup"
	"github.com/mwantia/xmeta/data"
)

func (sb *S3Backend) Record(ctx context.Context, record *data.BackupRecord) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	record.UpdateTime = time.Now()
	value, err := backup.Marshal(record, sb.GetCapabilities())
	if err != nil {
		return err
	}

	if err := sb.put(ctx, backup.RecordKey(record.Key()), value, "application/json"); err != nil {
		return data.StorageFailure("record", record.Identity.Path, "", err)
	}

	// Path index follows the record; a stale index entry is caught on restore
	if record.Identity.Path != "" {
		if err := sb.put(ctx, backup.PathKey(record.Identity.Path), []byte(record.Key()), "text/plain"); err != nil {
			return data.StorageFailure("record", record.Identity.Path, "", err)
		}
	}
	return nil
}

func (sb *S3Backend) Restore(ctx context.Context, identity data.FileIdentity) (*data.BackupRecord, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	record, err := sb.getRecord(ctx, identity.Key())
	if err != nil || record != nil {
		return record, err
	}

	if identity.Path == "" {
		return nil, backup.NotFound(identity)
	}

	key, err := sb.get(ctx, backup.PathKey(identity.Path))
	if err != nil {
		return nil, data.StorageFailure("restore", identity.Path, "", err)
	}
	if key == nil {
		return nil, backup.NotFound(identity)
	}

	record, err = sb.getRecord(ctx, string(key))
	if err != nil {
		return nil, err
	}
	// The indexed record may since have moved to another path.
	if record == nil || record.Identity.Path != identity.Path {
		return nil, backup.NotFound(identity)
	}
	return record, nil
}

func (sb *S3Backend) List(ctx context.Context, query *backup.Query) ([]*data.BackupRecord, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	candidates := make([]*data.BackupRecord, 0)
	objectsCh := sb.client.ListObjects(ctx, sb.bucketName, minio.ListObjectsOptions{
		Prefix:    sb.objectKey(backup.RecordsPrefix()),
		Recursive: true,
	})

	for obj := range objectsCh {
		if obj.Err != nil {
			return nil, data.StorageFailure("list", "", "", obj.Err)
		}

		value, err := sb.getObject(ctx, obj.Key)
		if err != nil {
			return nil, data.StorageFailure("list", "", "", err)
		}
		if value == nil {
			// Removed while listing
			continue
		}

		record, err := backup.Unmarshal(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", obj.Key, err)
		}
		candidates = append(candidates, record)
	}

	return backup.Finish(candidates, query), nil
}

func (sb *S3Backend) getRecord(ctx context.Context, identityKey string) (*data.BackupRecord, error) {
	value, err := sb.get(ctx, backup.RecordKey(identityKey))
	if err != nil {
		return nil, data.StorageFailure("restore", identityKey, "", err)
	}
	if value == nil {
		return nil, nil
	}
	return backup.Unmarshal(value)
}

func (sb *S3Backend) put(ctx context.Context, key string, value []byte, contentType string) error {
	_, err := sb.client.PutObject(ctx, sb.bucketName, sb.objectKey(key), bytes.NewReader(value), int64(len(value)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (sb *S3Backend) get(ctx context.Context, key string) ([]byte, error) {
	return sb.getObject(ctx, sb.objectKey(key))
}

// getObject returns nil without error for a missing object.
func (sb *S3Backend) getObject(ctx context.Context, objectKey string) ([]byte, error) {
	object, err := sb.client.GetObject(ctx, sb.bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer object.Close()

	value, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, err
	}
	return value, nil
}
