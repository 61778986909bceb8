package data

import (
	"errors"
	"fmt"
	"sync"
)

// Standard errors returned across xmeta. Match them with errors.Is.
var (
	// Caller errors
	ErrParam        = errors.New("xmeta: invalid parameter")
	ErrWillNotIndex = errors.New("xmeta: value shape cannot be indexed")
	ErrTooLarge     = errors.New("xmeta: encoded value too large")

	// Read errors
	ErrNoData    = errors.New("xmeta: no data found")
	ErrMalformed = errors.New("xmeta: malformed attribute data")
	ErrNotFound  = errors.New("xmeta: backup record not found")
	ErrNotExist  = errors.New("xmeta: file does not exist")

	// Write errors
	ErrStaleSnapshot = errors.New("xmeta: common tags changed since snapshot")
	ErrStorage       = errors.New("xmeta: storage failure")
	ErrReadOnly      = errors.New("xmeta: attribute store is read-only")

	// Lifecycle errors
	ErrUnsupported = errors.New("xmeta: operation unsupported by backend")
	ErrShutdown    = errors.New("xmeta: shutting down")
	ErrClosed      = errors.New("xmeta: backend closed")
)

// StorageError wraps a failure of the underlying attribute or backup
// storage. It matches both ErrStorage and the native error.
type StorageError struct {
	Op       string
	Location string
	Name     string
	Err      error
}

func (e *StorageError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("xmeta: %s %s [%s]: %v", e.Op, e.Location, e.Name, e.Err)
	}
	return fmt.Sprintf("xmeta: %s %s: %v", e.Op, e.Location, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

// StorageFailure wraps err as a StorageError unless it already carries one of
// the xmeta sentinels that callers branch on.
func StorageFailure(op, location, name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNoData) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Location: location, Name: name, Err: err}
}

// Errors collects failures from independent steps of a bulk operation.
type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.errors)
}

func (e *Errors) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = make([]error, 0)
}

func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
