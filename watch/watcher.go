// Package watch follows directories with fsnotify and reacts to attribute
// changes and newly created files.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mwantia/xmeta/data"
	"github.com/mwantia/xmeta/log"
)

// DefaultDebounce collapses bursts of events on one path.
const DefaultDebounce = 250 * time.Millisecond

// EventOp is the debounced operation delivered to a Handler.
type EventOp int

const (
	// OpAttributes means the attributes or mode of a file changed.
	OpAttributes EventOp = iota
	// OpCreated means a file appeared, by creation, copy or move.
	OpCreated
)

func (op EventOp) String() string {
	switch op {
	case OpAttributes:
		return "attributes"
	case OpCreated:
		return "created"
	default:
		return "unknown"
	}
}

// Handler reacts to debounced events.
type Handler interface {
	OnAttributesChanged(ctx context.Context, path string) error
	OnCreated(ctx context.Context, path string) error
}

type WatcherOptions struct {
	Debounce time.Duration
	Logger   *log.Logger
}

type WatcherOption func(*WatcherOptions) error

func newDefaultWatcherOptions() *WatcherOptions {
	return &WatcherOptions{
		Debounce: DefaultDebounce,
		Logger:   log.Discard(),
	}
}

func WithDebounce(debounce time.Duration) WatcherOption {
	return func(wo *WatcherOptions) error {
		if debounce < 0 {
			return fmt.Errorf("%w: negative debounce", data.ErrParam)
		}
		wo.Debounce = debounce
		return nil
	}
}

func WithLogger(logger *log.Logger) WatcherOption {
	return func(wo *WatcherOptions) error {
		if logger == nil {
			return fmt.Errorf("%w: logger is nil", data.ErrParam)
		}
		wo.Logger = logger
		return nil
	}
}

type pending struct {
	op    EventOp
	timer *time.Timer
}

// Watcher delivers at most one event per path and debounce window. A pending
// creation absorbs later attribute changes of the same path.
type Watcher struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	handler Handler
	options *WatcherOptions
	logger  *log.Logger

	pending map[string]*pending
	wg      sync.WaitGroup
	ctx     context.Context
}

func NewWatcher(handler Handler, options ...WatcherOption) (*Watcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: handler is nil", data.ErrParam)
	}

	opts := newDefaultWatcherOptions()
	for _, opt := range options {
		if err := opt(opts); err != nil {
			return nil, err
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher: watcher,
		handler: handler,
		options: opts,
		logger:  opts.Logger.Named("watch"),
		pending: make(map[string]*pending),
	}, nil
}

// Add starts watching a directory. Subdirectories are not followed.
func (w *Watcher) Add(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", data.ErrParam, dir)
	}

	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.logger.Debug("Watching '%s'", dir)
	return nil
}

// Run processes events until ctx is cancelled, then waits for running
// handlers.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	defer w.drain()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("Event queue overflowed, changes were missed")
				continue
			}
			w.logger.Error("Watcher error: %v", err)
		}
	}
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	var op EventOp
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreated
	case event.Has(fsnotify.Chmod):
		op = OpAttributes
	default:
		return
	}

	if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
		return
	}

	w.schedule(event.Name, op)
}

func (w *Watcher) schedule(path string, op EventOp) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, exists := w.pending[path]; exists {
		if op == OpCreated {
			p.op = OpCreated
		}
		p.timer.Reset(w.options.Debounce)
		return
	}

	p := &pending{op: op}
	p.timer = time.AfterFunc(w.options.Debounce, func() {
		w.fire(path)
	})
	w.pending[path] = p
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	p, exists := w.pending[path]
	if !exists {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	ctx := w.ctx
	w.wg.Add(1)
	w.mu.Unlock()

	defer w.wg.Done()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	var err error
	switch p.op {
	case OpCreated:
		err = w.handler.OnCreated(ctx, path)
	case OpAttributes:
		err = w.handler.OnAttributesChanged(ctx, path)
	}
	if err != nil {
		w.logger.Warn("Handling %s of '%s' failed: %v", p.op, path, err)
		return
	}
	w.logger.Debug("Handled %s of '%s'", p.op, path)
}

// drain stops pending timers and waits for handlers already running.
func (w *Watcher) drain() {
	w.mu.Lock()
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
}
