package xmeta

import (
	"context"

	"github.com/mwantia/xmeta/attr"
	"github.com/mwantia/xmeta/data"
	"github.com/mwantia/xmeta/tags"
)

// GetUserTags returns the user tags of a file. When the file has none, the
// backup store is consulted first; data.ErrNoData is returned when neither
// holds any tags.
func (s *Service) GetUserTags(ctx context.Context, location string) (data.TagSet, error) {
	set, err := s.readTags(ctx, location)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return nil, data.ErrNoData
	}
	return set, nil
}

// SetUserTags replaces the user tags of a file. An empty list removes them.
func (s *Service) SetUserTags(ctx context.Context, location string, newTags []string) (data.Result, error) {
	set := tags.Set(newTags)

	var previous data.TagSet
	err := s.update(ctx, location, func(ctx context.Context) error {
		current, err := s.readTagsCanonical(ctx, location)
		if err != nil {
			return err
		}
		previous = current
		return s.writeTags(ctx, location, set)
	})
	if err != nil {
		return data.NoChange, err
	}

	s.notifyRecent(ctx, previous, set)
	return data.Success, nil
}

// AddUserTags adds tags to a file. Tags already present under any casing
// are kept as they are; NoChange is returned when nothing was added.
func (s *Service) AddUserTags(ctx context.Context, location string, toAdd []string) (data.Result, error) {
	return s.editTags(ctx, location, func(existing data.TagSet) (data.TagSet, bool) {
		return tags.Add(existing, toAdd)
	})
}

// ClearUserTags removes tags from a file, ignoring case. NoChange is
// returned when none of them was present.
func (s *Service) ClearUserTags(ctx context.Context, location string, toRemove []string) (data.Result, error) {
	return s.editTags(ctx, location, func(existing data.TagSet) (data.TagSet, bool) {
		return tags.Clear(existing, toRemove)
	})
}

func (s *Service) editTags(ctx context.Context, location string, edit func(data.TagSet) (data.TagSet, bool)) (data.Result, error) {
	if err := s.prepareWrite(ctx, location); err != nil {
		return data.NoChange, err
	}

	existing, err := s.readTags(ctx, location)
	if err != nil {
		return data.NoChange, err
	}

	next, changed := edit(existing)
	if !changed {
		return data.NoChange, nil
	}

	if err := s.writeTags(ctx, location, next); err != nil {
		return data.NoChange, err
	}
	if err := s.BackupMetadata(ctx, location); err != nil {
		s.logger.Warn("Unable to back up metadata of '%s': %v", location, err)
	}

	s.notifyRecent(ctx, existing, next)
	return data.Success, nil
}

// readTags reads the tags of a file, restoring them from the backup store
// when the file has none. A nil set means no tags exist anywhere.
func (s *Service) readTags(ctx context.Context, location string) (data.TagSet, error) {
	set, err := s.readTagsCanonical(ctx, location)
	if err != nil {
		return nil, err
	}
	if !set.IsEmpty() {
		return set, nil
	}

	if !s.restoreOnRead(ctx, location) {
		return nil, nil
	}

	set, err = s.readTagsCanonical(ctx, location)
	if err != nil || set.IsEmpty() {
		return nil, err
	}
	return set, nil
}

// readTagsCanonical reads the tags slot only. An absent slot yields nil.
func (s *Service) readTagsCanonical(ctx context.Context, location string) (data.TagSet, error) {
	raw, err := attr.ReadOptional(ctx, s.attrs, location, s.tagsName())
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return s.decodeTags(raw)
}

// writeTags stores set, or removes the attribute when set is empty.
func (s *Service) writeTags(ctx context.Context, location string, set data.TagSet) error {
	if set.IsEmpty() {
		return s.remove(ctx, location, s.tagsName())
	}

	raw, err := s.codec.EncodeIndexed(data.Strings(set...))
	if err != nil {
		return err
	}
	return s.attrs.WriteAttribute(ctx, location, s.tagsName(), raw)
}
