// Package restore runs bulk restores from the backup store on a bounded
// worker pool and drains cleanly when the process terminates.
package restore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mwantia/xmeta/backup"
	"github.com/mwantia/xmeta/data"
	"github.com/mwantia/xmeta/log"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the size of the worker pool.
const DefaultWorkers = 4

// Restorer writes one backup record back to its file. Implementations only
// fill attributes that are absent on the file.
type Restorer interface {
	RestoreRecord(ctx context.Context, record *data.BackupRecord) error
}

type SchedulerOptions struct {
	Workers int
	Logger  *log.Logger
}

type SchedulerOption func(*SchedulerOptions) error

func newDefaultSchedulerOptions() *SchedulerOptions {
	return &SchedulerOptions{
		Workers: DefaultWorkers,
		Logger:  log.Discard(),
	}
}

func WithWorkers(workers int) SchedulerOption {
	return func(so *SchedulerOptions) error {
		if workers <= 0 {
			return fmt.Errorf("%w: workers must be positive, got %d", data.ErrParam, workers)
		}
		so.Workers = workers
		return nil
	}
}

func WithLogger(logger *log.Logger) SchedulerOption {
	return func(so *SchedulerOptions) error {
		if logger == nil {
			return fmt.Errorf("%w: logger is nil", data.ErrParam)
		}
		so.Logger = logger
		return nil
	}
}

// Scheduler owns every background activity: restore passes and tasks
// started through Go. Shutdown cancels them and waits for running file
// steps to complete.
type Scheduler struct {
	mu sync.Mutex

	store    backup.Store
	restorer Restorer
	options  *SchedulerOptions
	logger   *log.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	current  *Pass
	shutdown bool
}

func NewScheduler(store backup.Store, restorer Restorer, options ...SchedulerOption) (*Scheduler, error) {
	if store == nil || restorer == nil {
		return nil, fmt.Errorf("%w: scheduler needs a backup store and a restorer", data.ErrParam)
	}

	opts := newDefaultSchedulerOptions()
	for _, opt := range options {
		if err := opt(opts); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:    store,
		restorer: restorer,
		options:  opts,
		logger:   opts.Logger.Named("restore"),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// State returns the state of the latest pass, or Idle if none ran yet.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return Idle
	}
	return s.current.State()
}

// RestoreAll starts a pass over every record matching query. While a pass
// is scheduled or running it is returned instead and query is ignored.
func (s *Scheduler) RestoreAll(query *backup.Query) (*Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown {
		return nil, data.ErrShutdown
	}
	if s.current != nil && s.current.State().Active() {
		s.logger.Debug("Coalescing restore request into pass %s", s.current.ID)
		return s.current, nil
	}
	if !s.store.GetCapabilities().Contains(backup.CapabilityList) {
		return nil, fmt.Errorf("%w: backup store '%s' cannot list records", data.ErrUnsupported, s.store.Name())
	}

	pass := newPass(query)
	s.current = pass

	s.wg.Add(1)
	go s.run(pass)

	return pass, nil
}

// Go runs fn in the background. fn receives a context cancelled by
// Shutdown, which in turn waits for fn to return.
func (s *Scheduler) Go(name string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown {
		return data.ErrShutdown
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := fn(s.ctx); err != nil {
			s.logger.Warn("Background task '%s' failed: %v", name, err)
		}
	}()
	return nil
}

// Shutdown cancels all background work and blocks until every started file
// step finished or ctx expires. It can be called more than once.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.shutdown {
		s.shutdown = true
		s.logger.Debug("Shutting down, draining background work")
	}
	s.mu.Unlock()

	s.cancel()

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(pass *Pass) {
	defer s.wg.Done()

	logger := s.logger.With("pass", pass.ID)
	if s.ctx.Err() != nil {
		pass.finish(Cancelled, PassReport{})
		return
	}
	pass.setState(Running)

	records, err := s.store.List(s.ctx, pass.Query)
	if err != nil {
		state := Completed
		if s.ctx.Err() != nil {
			state = Cancelled
		}
		logger.Error("Unable to list backup records: %v", err)
		pass.finish(state, PassReport{Err: err})
		return
	}
	logger.Info("Restoring %d files", len(records))

	var (
		restored, failed, dropped atomic.Int64
		errs                      data.Errors
	)

	g := new(errgroup.Group)
	g.SetLimit(s.options.Workers)

	for i, record := range records {
		if s.ctx.Err() != nil {
			dropped.Add(int64(len(records) - i))
			break
		}

		g.Go(func() error {
			// Not started before cancellation: drop
			if s.ctx.Err() != nil {
				dropped.Add(1)
				return nil
			}

			// A started step always runs to completion
			if err := s.restorer.RestoreRecord(context.WithoutCancel(s.ctx), record); err != nil {
				failed.Add(1)
				errs.Add(fmt.Errorf("%s: %w", record.Identity, err))
				logger.Warn("Unable to restore '%s': %v", record.Identity.Path, err)
				return nil
			}
			restored.Add(1)
			return nil
		})
	}
	g.Wait()

	report := PassReport{
		Restored: int(restored.Load()),
		Failed:   int(failed.Load()),
		Dropped:  int(dropped.Load()),
		Err:      errs.Errors(),
	}

	state := Completed
	if s.ctx.Err() != nil {
		state = Cancelled
	}
	logger.Info("Pass %s: %s", state, report)
	pass.finish(state, report)
}
