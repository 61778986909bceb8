// Package prefs persists user preferences shared between processes, most
// notably the list of recently used tags offered for completion.
package prefs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/mwantia/xmeta/data"
	"github.com/mwantia/xmeta/tags"
	"github.com/pelletier/go-toml/v2"
)

// DefaultMaxRecent caps the recent tags list.
const DefaultMaxRecent = 200

const lockRetryDelay = 25 * time.Millisecond

type recentFile struct {
	Tags []string `toml:"tags"`
}

// RecentTags is a TOML file holding the most recently used tags, newest
// first. Writers take an exclusive lock on a sidecar lock file, readers a
// shared one.
type RecentTags struct {
	path string
	max  int
	lock *flock.Flock
}

func NewRecentTags(path string, max int) (*RecentTags, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: recent tags path is empty", data.ErrParam)
	}
	if max <= 0 {
		max = DefaultMaxRecent
	}

	return &RecentTags{
		path: path,
		max:  max,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (rt *RecentTags) Path() string {
	return rt.path
}

// Load returns the recent tags, newest first. A missing file is empty.
func (rt *RecentTags) Load(ctx context.Context) ([]string, error) {
	if err := rt.ensureDir(); err != nil {
		return nil, err
	}

	locked, err := rt.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock recent tags: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("lock recent tags: %w", ctx.Err())
	}
	defer rt.lock.Unlock()

	return rt.read()
}

// Save replaces the list.
func (rt *RecentTags) Save(ctx context.Context, recent []string) error {
	return rt.withWriteLock(ctx, func() error {
		return rt.write(recent)
	})
}

// Update moves the tags of current that were not in previous to the front.
// The list is deduplicated case-insensitively and capped.
func (rt *RecentTags) Update(ctx context.Context, previous, current []string) error {
	added, _ := tags.Clear(tags.Normalize(current), previous)
	if len(added) == 0 {
		return nil
	}

	return rt.withWriteLock(ctx, func() error {
		existing, err := rt.read()
		if err != nil {
			return err
		}

		merged, _ := tags.Add(added, existing)
		return rt.write(merged)
	})
}

func (rt *RecentTags) withWriteLock(ctx context.Context, fn func() error) error {
	if err := rt.ensureDir(); err != nil {
		return err
	}

	locked, err := rt.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock recent tags: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock recent tags: %w", ctx.Err())
	}
	defer rt.lock.Unlock()

	return fn()
}

func (rt *RecentTags) read() ([]string, error) {
	content, err := os.ReadFile(rt.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read recent tags: %w", err)
	}

	var file recentFile
	if err := toml.NewDecoder(bytes.NewReader(content)).Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: recent tags: %v", data.ErrMalformed, err)
	}
	return tags.Normalize(file.Tags).Strings(), nil
}

func (rt *RecentTags) write(recent []string) error {
	normalized := tags.Normalize(recent)
	if len(normalized) > rt.max {
		normalized = normalized[:rt.max]
	}

	content, err := toml.Marshal(recentFile{Tags: normalized.Strings()})
	if err != nil {
		return fmt.Errorf("encode recent tags: %w", err)
	}

	tmp := rt.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("write recent tags: %w", err)
	}
	if err := os.Rename(tmp, rt.path); err != nil {
		return fmt.Errorf("write recent tags: %w", err)
	}
	return nil
}

func (rt *RecentTags) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(rt.path), 0o755); err != nil {
		return fmt.Errorf("create directory for recent tags: %w", err)
	}
	return nil
}
