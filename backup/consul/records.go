package consul

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/xmeta/backup"
	"github.com/mwantia/xmeta/data"
)

func (cb *ConsulBackend) Record(ctx context.Context, record *data.BackupRecord) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	record.UpdateTime = time.Now()
	value, err := backup.Marshal(record, cb.GetCapabilities())
	if err != nil {
		return err
	}

	// Record and path index are written in one transaction
	ops := api.TxnOps{
		&api.TxnOp{KV: &api.KVTxnOp{
			Verb:  api.KVSet,
			Key:   cb.buildKey(backup.RecordKey(record.Key())),
			Value: value,
		}},
	}
	if record.Identity.Path != "" {
		ops = append(ops, &api.TxnOp{KV: &api.KVTxnOp{
			Verb:  api.KVSet,
			Key:   cb.buildKey(backup.PathKey(record.Identity.Path)),
			Value: []byte(record.Key()),
		}})
	}

	ok, resp, _, err := cb.client.Txn().Txn(ops, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return data.StorageFailure("record", record.Identity.Path, "", err)
	}
	if !ok {
		return data.StorageFailure("record", record.Identity.Path, "", fmt.Errorf("transaction rolled back: %v", resp.Errors))
	}
	return nil
}

func (cb *ConsulBackend) Restore(ctx context.Context, identity data.FileIdentity) (*data.BackupRecord, error) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	opts := (&api.QueryOptions{}).WithContext(ctx)

	record, err := cb.get(identity.Key(), opts)
	if err != nil || record != nil {
		return record, err
	}

	if identity.Path == "" {
		return nil, backup.NotFound(identity)
	}

	pair, _, err := cb.kv.Get(cb.buildKey(backup.PathKey(identity.Path)), opts)
	if err != nil {
		return nil, data.StorageFailure("restore", identity.Path, "", err)
	}
	if pair == nil {
		return nil, backup.NotFound(identity)
	}

	record, err = cb.get(string(pair.Value), opts)
	if err != nil {
		return nil, err
	}
	// The indexed record may since have moved to another path.
	if record == nil || record.Identity.Path != identity.Path {
		return nil, backup.NotFound(identity)
	}
	return record, nil
}

func (cb *ConsulBackend) List(ctx context.Context, query *backup.Query) ([]*data.BackupRecord, error) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	pairs, _, err := cb.kv.List(cb.buildKey(backup.RecordsPrefix()), (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, data.StorageFailure("list", "", "", err)
	}

	candidates := make([]*data.BackupRecord, 0, len(pairs))
	for _, pair := range pairs {
		record, err := backup.Unmarshal(pair.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pair.Key, err)
		}
		candidates = append(candidates, record)
	}

	return backup.Finish(candidates, query), nil
}

// get returns nil without error when the record does not exist.
func (cb *ConsulBackend) get(identityKey string, opts *api.QueryOptions) (*data.BackupRecord, error) {
	pair, _, err := cb.kv.Get(cb.buildKey(backup.RecordKey(identityKey)), opts)
	if err != nil {
		return nil, data.StorageFailure("restore", identityKey, "", err)
	}
	if pair == nil {
		return nil, nil
	}
	return backup.Unmarshal(pair.Value)
}
