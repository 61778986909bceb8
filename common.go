package xmeta

import (
	"context"
	"fmt"

	"github.com/mwantia/xmeta/data"
	"github.com/mwantia/xmeta/tags"
)

// GetCommonUserTags returns the tags shared by every file, together with
// the identities they were read from. Pass the snapshot back unchanged to
// SetCommonUserTags.
func (s *Service) GetCommonUserTags(ctx context.Context, locations []string) (*data.CommonTagSnapshot, error) {
	if len(locations) == 0 {
		return nil, fmt.Errorf("%w: no locations", data.ErrParam)
	}

	files, shared, err := s.readCommon(ctx, locations)
	if err != nil {
		return nil, err
	}

	return &data.CommonTagSnapshot{
		Files:  files,
		Shared: shared,
	}, nil
}

// SetCommonUserTags replaces the shared tags of every file with newTags and
// keeps each file's private tags. It fails with data.ErrStaleSnapshot,
// writing nothing, when the shared tags changed since the snapshot was
// taken. The staleness check is the only all-or-nothing part: once writing
// starts there is no rollback. A storage failure on one file leaves the
// files already written in place, the remaining files are still written,
// and Success is returned together with the joined errors. NoChange with
// the errors means no file was written.
func (s *Service) SetCommonUserTags(ctx context.Context, locations []string, snapshot *data.CommonTagSnapshot, newTags []string) (data.Result, error) {
	if snapshot == nil {
		return data.NoChange, fmt.Errorf("%w: snapshot is nil", data.ErrParam)
	}
	if len(locations) == 0 {
		return data.NoChange, fmt.Errorf("%w: no locations", data.ErrParam)
	}
	if len(locations) != len(snapshot.Files) {
		return data.NoChange, fmt.Errorf("%w: %d locations for a snapshot of %d files", data.ErrParam, len(locations), len(snapshot.Files))
	}

	s.commonMu.Lock()
	defer s.commonMu.Unlock()

	files, live, err := s.readCommon(ctx, locations)
	if err != nil {
		return data.NoChange, err
	}
	for i, identity := range files {
		if identity.Key() != snapshot.Files[i].Key() {
			return data.NoChange, fmt.Errorf("%w: '%s' is not the file of the snapshot", data.ErrParam, locations[i])
		}
	}
	if !tags.Equal(live, snapshot.Shared) {
		return data.NoChange, data.ErrStaleSnapshot
	}

	replacement := tags.Set(newTags)
	if tags.Identical(replacement, snapshot.Shared) {
		return data.NoChange, nil
	}

	var errs data.Errors
	for _, location := range locations {
		err := s.update(ctx, location, func(ctx context.Context) error {
			existing, err := s.readTagsCanonical(ctx, location)
			if err != nil {
				return err
			}
			return s.writeTags(ctx, location, tags.Merge(existing, snapshot.Shared, replacement))
		})
		if err != nil {
			errs.Add(fmt.Errorf("failed to update '%s': %w", location, err))
		}
	}

	if errs.Len() == len(locations) {
		return data.NoChange, errs.Errors()
	}

	s.notifyRecent(ctx, snapshot.Shared, replacement)
	return data.Success, errs.Errors()
}

// readCommon resolves every location and intersects their tags.
func (s *Service) readCommon(ctx context.Context, locations []string) ([]data.FileIdentity, data.TagSet, error) {
	files := make([]data.FileIdentity, 0, len(locations))
	sets := make([]data.TagSet, 0, len(locations))

	for _, location := range locations {
		identity, err := s.attrs.Identify(ctx, location)
		if err != nil {
			return nil, nil, err
		}

		set, err := s.readTags(ctx, location)
		if err != nil {
			return nil, nil, err
		}

		files = append(files, identity)
		sets = append(sets, set)
	}

	shared := tags.Intersect(sets...)
	if shared == nil {
		shared = data.TagSet{}
	}
	return files, shared, nil
}
