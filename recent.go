package xmeta

import "context"

// RecentTags receives committed tag edits, most recently used first.
type RecentTags interface {
	Update(ctx context.Context, previous, current []string) error
}

func (s *Service) notifyRecent(ctx context.Context, previous, current []string) {
	if s.options.RecentTags == nil {
		return
	}
	if err := s.options.RecentTags.Update(ctx, previous, current); err != nil {
		s.logger.Warn("Unable to update recent tags: %v", err)
	}
}
