package xmeta

import (
	"context"

	"github.com/mwantia/xmeta/attr"
	"github.com/mwantia/xmeta/data"
	"github.com/mwantia/xmeta/rating"
)

// SetRating stores a rating clamped into [0, data.MaxRating]. data.Unset
// removes the attribute.
func (s *Service) SetRating(ctx context.Context, location string, r data.Rating) (data.Result, error) {
	value, remove, err := rating.Encode(r)
	if err != nil {
		return data.NoChange, err
	}

	err = s.update(ctx, location, func(ctx context.Context) error {
		if remove {
			return s.remove(ctx, location, s.ratingName())
		}

		raw, err := s.codec.EncodeIndexed(value)
		if err != nil {
			return err
		}
		return s.attrs.WriteAttribute(ctx, location, s.ratingName(), raw)
	})
	if err != nil {
		return data.NoChange, err
	}
	return data.Success, nil
}

// GetRating returns the rating of a file, restoring it from the backup
// store when absent. A file that never had a rating reports data.Unset.
func (s *Service) GetRating(ctx context.Context, location string) (data.Rating, error) {
	r, err := s.readRatingCanonical(ctx, location)
	if err != nil || r.IsSet() {
		return r, err
	}

	if !s.restoreOnRead(ctx, location) {
		return data.Unset, nil
	}
	return s.readRatingCanonical(ctx, location)
}

func (s *Service) readRatingCanonical(ctx context.Context, location string) (data.Rating, error) {
	raw, err := attr.ReadOptional(ctx, s.attrs, location, s.ratingName())
	if err != nil {
		return data.Unset, err
	}
	return rating.Decode(s.codec, raw)
}
