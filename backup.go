package xmeta

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwantia/xmeta/attr"
	"github.com/mwantia/xmeta/backup"
	"github.com/mwantia/xmeta/data"
	"github.com/mwantia/xmeta/restore"
	"github.com/mwantia/xmeta/tags"
)

// BackupMetadata records the current attributes of a file in the backup
// store, replacing the previous record of its identity.
func (s *Service) BackupMetadata(ctx context.Context, location string) error {
	record, err := s.snapshot(ctx, location)
	if err != nil {
		return err
	}

	if err := s.backups.Record(ctx, record); err != nil {
		return data.StorageFailure("backup", location, "", err)
	}
	return nil
}

// snapshot reads every attribute in the namespaces into a record.
func (s *Service) snapshot(ctx context.Context, location string) (*data.BackupRecord, error) {
	identity, err := s.attrs.Identify(ctx, location)
	if err != nil {
		return nil, err
	}

	owned, err := s.ownedAttributes(ctx, location)
	if err != nil {
		return nil, err
	}

	record := &data.BackupRecord{Identity: identity}
	for _, name := range owned {
		value, err := attr.ReadOptional(ctx, s.attrs, location, name)
		if err != nil {
			return nil, err
		}
		if value == nil {
			// Removed since listing
			continue
		}

		switch name {
		case s.tagsName():
			record.Tags = value
		case s.ratingName():
			record.Rating = value
		default:
			if record.Values == nil {
				record.Values = make(map[string][]byte)
			}
			record.Values[name] = value
		}
	}

	return record, nil
}

// RestoreMetadata looks up the backup of a file, by identity and then by
// path, and writes back every attribute the file lacks. Attributes present
// on the file are never overwritten. NoChange means nothing was missing.
func (s *Service) RestoreMetadata(ctx context.Context, location string) (data.Result, error) {
	identity, err := s.attrs.Identify(ctx, location)
	if err != nil {
		return data.NoChange, err
	}

	record, err := s.backups.Restore(ctx, identity)
	if err != nil {
		return data.NoChange, err
	}

	restored, err := s.applyRecord(ctx, location, record)
	if err != nil {
		return data.NoChange, err
	}
	if restored == 0 {
		return data.NoChange, nil
	}

	s.logger.Info("Restored %d attributes of '%s'", restored, location)
	// Record under the current identity, which differs after a copy
	if err := s.BackupMetadata(ctx, location); err != nil {
		s.logger.Warn("Unable to back up restored metadata of '%s': %v", location, err)
	}
	return data.Success, nil
}

// RestoreRecord restores the file a record was taken from. It is the unit
// of work of a restore pass; files that no longer exist are skipped.
func (s *Service) RestoreRecord(ctx context.Context, record *data.BackupRecord) error {
	location := record.Identity.Path
	if location == "" {
		return fmt.Errorf("%w: record %s has no path", data.ErrParam, record.Key())
	}

	restored, err := s.applyRecord(ctx, location, record)
	if errors.Is(err, data.ErrNotExist) {
		s.logger.Debug("Skipping restore of missing file '%s'", location)
		return nil
	}
	if err != nil {
		return err
	}

	if restored > 0 {
		s.logger.Info("Restored %d attributes of '%s'", restored, location)
		if err := s.BackupMetadata(ctx, location); err != nil {
			s.logger.Warn("Unable to back up restored metadata of '%s': %v", location, err)
		}
	}
	return nil
}

// applyRecord writes the attributes of record that are absent on the file.
func (s *Service) applyRecord(ctx context.Context, location string, record *data.BackupRecord) (int, error) {
	slots := make(map[string][]byte, len(record.Values)+2)
	for name, value := range record.Values {
		// Never write outside the namespaces, whatever the store holds
		if s.naming.Owns(name) {
			slots[name] = value
		}
	}
	if record.Tags != nil {
		slots[s.tagsName()] = record.Tags
	}
	if record.Rating != nil {
		slots[s.ratingName()] = record.Rating
	}

	restored := 0
	for name, value := range slots {
		missing, err := s.missing(ctx, location, name)
		if err != nil {
			return restored, err
		}
		if !missing {
			continue
		}

		if err := s.attrs.WriteAttribute(ctx, location, name, value); err != nil {
			return restored, err
		}
		restored++
	}

	return restored, nil
}

// missing reports whether a slot is absent. A tags slot holding no tags
// counts as absent too.
func (s *Service) missing(ctx context.Context, location, name string) (bool, error) {
	current, err := attr.ReadOptional(ctx, s.attrs, location, name)
	if err != nil {
		return false, err
	}
	if current == nil {
		return true, nil
	}

	if name == s.tagsName() {
		set, err := s.decodeTags(current)
		return err == nil && set.IsEmpty(), nil
	}
	return false, nil
}

// restoreOnRead runs the automatic restore of a read that came back empty.
// Failures are logged; the read then reports the empty state.
func (s *Service) restoreOnRead(ctx context.Context, location string) bool {
	result, err := s.RestoreMetadata(ctx, location)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrNotFound):
		case errors.Is(err, data.ErrReadOnly):
			s.logger.Debug("Skipping automatic restore of '%s' on read-only store", location)
		default:
			s.logger.Warn("Automatic restore of '%s' failed: %v", location, err)
		}
		return false
	}
	return result == data.Success
}

func (s *Service) decodeTags(raw []byte) (data.TagSet, error) {
	value, err := s.codec.Decode(raw, data.KindArray)
	if err != nil {
		return nil, err
	}
	list, ok := value.StringSlice()
	if !ok {
		return nil, fmt.Errorf("%w: user tags must be an array of strings", data.ErrMalformed)
	}
	return tags.Normalize(list), nil
}

// RestoreAllOnBackgroundThread starts, or joins, a pass restoring every file
// in the backup store that matches query.
func (s *Service) RestoreAllOnBackgroundThread(query *backup.Query) (*restore.Pass, error) {
	return s.scheduler.RestoreAll(query)
}

// AppIsTerminating cancels background work and waits for file steps that
// already started. Call it before the process exits.
func (s *Service) AppIsTerminating(ctx context.Context) error {
	return s.scheduler.Shutdown(ctx)
}

// Scheduler exposes the background scheduler.
func (s *Service) Scheduler() *restore.Scheduler {
	return s.scheduler
}
