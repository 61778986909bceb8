package xmeta

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mwantia/xmeta/data"
	"github.com/mwantia/xmeta/rating"
	"golang.org/x/sync/errgroup"
)

// SyncReport is the outcome of a sync. Results holds one entry per
// location; a nil error means the location was written.
type SyncReport struct {
	Tags    data.TagSet
	Rating  data.Rating
	Results map[string]error
}

// Failed returns the number of locations that were not written.
func (sr *SyncReport) Failed() int {
	failed := 0
	for _, err := range sr.Results {
		if err != nil {
			failed++
		}
	}
	return failed
}

// Sync copies the tags and rating of the first location to every location,
// the first included. With aggressiveRestore, missing tags or rating of the
// first location are restored from the backup store before reading.
// The returned error is reserved for invalid input; per location failures
// are in the report.
func (s *Service) Sync(ctx context.Context, locations []string, aggressiveRestore bool) (*SyncReport, error) {
	if len(locations) == 0 {
		return nil, fmt.Errorf("%w: no locations", data.ErrParam)
	}

	report := &SyncReport{
		Rating:  data.Unset,
		Results: make(map[string]error, len(locations)),
	}

	set, r, err := s.readSource(ctx, locations[0], aggressiveRestore)
	if err != nil {
		s.logger.Warn("Unable to read sync source '%s': %v", locations[0], err)
		for _, location := range locations {
			report.Results[location] = err
		}
		return report, nil
	}
	report.Tags = set
	report.Rating = r

	value, removeRating, err := rating.Encode(r)
	if err != nil {
		return nil, err
	}
	var ratingRaw []byte
	if !removeRating {
		if ratingRaw, err = s.codec.EncodeIndexed(value); err != nil {
			return nil, err
		}
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.options.Workers)

	for _, location := range locations {
		g.Go(func() error {
			var err error
			if ctx.Err() != nil {
				err = ctx.Err()
			} else {
				err = s.update(context.WithoutCancel(ctx), location, func(ctx context.Context) error {
					if err := s.writeTags(ctx, location, set); err != nil {
						return err
					}
					if removeRating {
						return s.remove(ctx, location, s.ratingName())
					}
					return s.attrs.WriteAttribute(ctx, location, s.ratingName(), ratingRaw)
				})
			}

			mu.Lock()
			report.Results[location] = err
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	s.logger.Info("Synced %d locations from '%s', %d failed", len(locations), locations[0], report.Failed())
	return report, nil
}

// SyncAsync runs Sync on the background scheduler. The report is delivered
// on the returned channel once every location was handled.
func (s *Service) SyncAsync(locations []string, aggressiveRestore bool) (<-chan *SyncReport, error) {
	if len(locations) == 0 {
		return nil, fmt.Errorf("%w: no locations", data.ErrParam)
	}

	reports := make(chan *SyncReport, 1)
	err := s.scheduler.Go("sync", func(ctx context.Context) error {
		defer close(reports)

		report, err := s.Sync(ctx, locations, aggressiveRestore)
		if err != nil {
			return err
		}
		reports <- report
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// readSource reads the authoritative tags and rating.
func (s *Service) readSource(ctx context.Context, location string, aggressiveRestore bool) (data.TagSet, data.Rating, error) {
	set, err := s.readTagsCanonical(ctx, location)
	if err != nil {
		return nil, data.Unset, err
	}
	r, err := s.readRatingCanonical(ctx, location)
	if err != nil {
		return nil, data.Unset, err
	}

	if !aggressiveRestore || (!set.IsEmpty() && r.IsSet()) {
		return set, r, nil
	}

	if _, err := s.RestoreMetadata(ctx, location); err != nil && !errors.Is(err, data.ErrNotFound) {
		return nil, data.Unset, err
	}

	if set, err = s.readTagsCanonical(ctx, location); err != nil {
		return nil, data.Unset, err
	}
	if r, err = s.readRatingCanonical(ctx, location); err != nil {
		return nil, data.Unset, err
	}
	return set, r, nil
}
