package xmeta

import (
	"fmt"

	"github.com/mwantia/xmeta/codec"
	"github.com/mwantia/xmeta/data"
	"github.com/mwantia/xmeta/log"
	"github.com/mwantia/xmeta/restore"
)

type ServiceOptions struct {
	Naming       data.Naming
	MaxValueSize int
	Workers      int
	Logger       *log.Logger
	RecentTags   RecentTags
}

type ServiceOption func(*ServiceOptions) error

func newDefaultServiceOptions() *ServiceOptions {
	return &ServiceOptions{
		Naming:       data.DefaultNaming,
		MaxValueSize: codec.DefaultMaxSize,
		Workers:      restore.DefaultWorkers,
		Logger:       log.Discard(),
	}
}

// WithNaming changes the attribute prefixes.
func WithNaming(naming data.Naming) ServiceOption {
	return func(opts *ServiceOptions) error {
		if naming.IndexedPrefix == "" || naming.OpaquePrefix == "" || naming.IndexedPrefix == naming.OpaquePrefix {
			return fmt.Errorf("%w: attribute prefixes must be set and differ", data.ErrParam)
		}
		opts.Naming = naming
		return nil
	}
}

// WithMaxValueSize changes the ceiling of a single encoded value.
func WithMaxValueSize(size int) ServiceOption {
	return func(opts *ServiceOptions) error {
		if size <= 0 {
			return fmt.Errorf("%w: max value size must be positive", data.ErrParam)
		}
		opts.MaxValueSize = size
		return nil
	}
}

// WithWorkers sizes the pool used by restore passes and sync.
func WithWorkers(workers int) ServiceOption {
	return func(opts *ServiceOptions) error {
		if workers <= 0 {
			return fmt.Errorf("%w: workers must be positive", data.ErrParam)
		}
		opts.Workers = workers
		return nil
	}
}

func WithLogger(logger *log.Logger) ServiceOption {
	return func(opts *ServiceOptions) error {
		if logger == nil {
			return fmt.Errorf("%w: logger is nil", data.ErrParam)
		}
		opts.Logger = logger
		return nil
	}
}

// WithRecentTags records committed tag edits in a recent tags store.
func WithRecentTags(recent RecentTags) ServiceOption {
	return func(opts *ServiceOptions) error {
		opts.RecentTags = recent
		return nil
	}
}
