// Package xmeta stores searchable metadata (tags, ratings, bookmarks and
// other small values) in the extended attributes of files, and keeps a
// shadow copy in a backup store so the metadata survives tools that drop
// extended attributes.
package xmeta

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mwantia/xmeta/attr"
	"github.com/mwantia/xmeta/backup"
	"github.com/mwantia/xmeta/codec"
	"github.com/mwantia/xmeta/data"
	"github.com/mwantia/xmeta/log"
	"github.com/mwantia/xmeta/restore"
)

// Service is the entrypoint for every metadata operation. It is safe for
// concurrent use.
type Service struct {
	attrs   attr.IdentifyingStore
	backups backup.Store

	codec     *codec.Codec
	naming    data.Naming
	options   *ServiceOptions
	logger    *log.Logger
	scheduler *restore.Scheduler

	// Serializes common tag edits within this process
	commonMu sync.Mutex
}

func New(attrs attr.IdentifyingStore, backups backup.Store, options ...ServiceOption) (*Service, error) {
	if attrs == nil {
		return nil, fmt.Errorf("%w: attribute store is required", data.ErrParam)
	}
	if backups == nil {
		return nil, fmt.Errorf("%w: backup store is required", data.ErrParam)
	}

	opts := newDefaultServiceOptions()
	for _, opt := range options {
		if err := opt(opts); err != nil {
			return nil, err
		}
	}

	s := &Service{
		attrs:   attrs,
		backups: backups,
		codec:   codec.New(opts.MaxValueSize),
		naming:  opts.Naming,
		options: opts,
		logger:  opts.Logger,
	}

	scheduler, err := restore.NewScheduler(backups, s,
		restore.WithWorkers(opts.Workers),
		restore.WithLogger(opts.Logger))
	if err != nil {
		return nil, err
	}
	s.scheduler = scheduler

	return s, nil
}

// Open is part of the lifecycle behaviour and opens both stores.
func (s *Service) Open(ctx context.Context) error {
	if err := s.attrs.Open(ctx); err != nil {
		return fmt.Errorf("failed to open attribute store '%s': %w", s.attrs.Name(), err)
	}
	if err := s.backups.Open(ctx); err != nil {
		return fmt.Errorf("failed to open backup store '%s': %w", s.backups.Name(), err)
	}

	s.logger.Debug("Opened attribute store '%s' with backup store '%s'", s.attrs.Name(), s.backups.Name())
	return nil
}

// Close drains background work, then closes both stores.
func (s *Service) Close(ctx context.Context) error {
	var errs data.Errors

	errs.Add(s.AppIsTerminating(ctx))
	errs.Add(s.backups.Close(ctx))
	errs.Add(s.attrs.Close(ctx))

	return errs.Errors()
}

// Naming returns the attribute naming in use.
func (s *Service) Naming() data.Naming {
	return s.naming
}

func (s *Service) tagsName() string {
	return s.naming.Name(data.KeyUserTags, data.Indexed)
}

func (s *Service) ratingName() string {
	return s.naming.Name(data.KeyStarRating, data.Indexed)
}

// ownedAttributes lists the attribute names on a file that belong to the
// configured namespaces.
func (s *Service) ownedAttributes(ctx context.Context, location string) ([]string, error) {
	names, err := s.attrs.ListAttributes(ctx, location)
	if err != nil {
		return nil, err
	}

	owned := make([]string, 0, len(names))
	for _, name := range names {
		if s.naming.Owns(name) {
			owned = append(owned, name)
		}
	}
	return owned, nil
}

// update runs a canonical write and records the new state of the file in
// the backup store.
func (s *Service) update(ctx context.Context, location string, apply func(ctx context.Context) error) error {
	if err := s.prepareWrite(ctx, location); err != nil {
		return err
	}

	if err := apply(ctx); err != nil {
		return err
	}

	if err := s.BackupMetadata(ctx, location); err != nil {
		s.logger.Warn("Unable to back up metadata of '%s': %v", location, err)
	}
	return nil
}

// prepareWrite restores a file whose namespace is entirely empty before it
// is written, so the following backup does not replace a full record with
// a single key.
func (s *Service) prepareWrite(ctx context.Context, location string) error {
	owned, err := s.ownedAttributes(ctx, location)
	if err != nil {
		return err
	}
	if len(owned) > 0 {
		return nil
	}

	identity, err := s.attrs.Identify(ctx, location)
	if err != nil {
		return err
	}

	record, err := s.backups.Restore(ctx, identity)
	if err != nil {
		if !errors.Is(err, data.ErrNotFound) {
			s.logger.Warn("Unable to look up backup of '%s': %v", location, err)
		}
		return nil
	}

	restored, err := s.applyRecord(ctx, location, record)
	if err != nil {
		return err
	}
	if restored > 0 {
		s.logger.Info("Restored %d attributes of stripped file '%s' before writing", restored, location)
	}
	return nil
}

func (s *Service) remove(ctx context.Context, location, name string) error {
	return attr.RemoveOptional(ctx, s.attrs, location, name)
}
