//go:build linux || darwin

// Package local stores metadata in the extended attributes of files on the
// local filesystem.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mwantia/xmeta/data"
	"github.com/mwantia/xmeta/log"
	"golang.org/x/sys/unix"
)

// retries bounds the size-query/read loop when a slot grows concurrently.
const retries = 4

type LocalStore struct {
	logger *log.Logger

	touchModifyTime bool
}

type LocalOption func(*LocalStore) error

// WithTouchModifyTime bumps the modification time by one second after every
// attribute change, so backup tools that only look at mtime notice it.
func WithTouchModifyTime() LocalOption {
	return func(ls *LocalStore) error {
		ls.touchModifyTime = true
		return nil
	}
}

func WithLogger(logger *log.Logger) LocalOption {
	return func(ls *LocalStore) error {
		if logger == nil {
			return fmt.Errorf("%w: logger is nil", data.ErrParam)
		}
		ls.logger = logger
		return nil
	}
}

func NewLocalStore(options ...LocalOption) (*LocalStore, error) {
	ls := &LocalStore{
		logger: log.Discard(),
	}
	for _, opt := range options {
		if err := opt(ls); err != nil {
			return nil, err
		}
	}
	return ls, nil
}

// Returns the identifier name defined for this store
func (*LocalStore) Name() string {
	return "local"
}

func (ls *LocalStore) Open(ctx context.Context) error {
	return nil
}

func (ls *LocalStore) Close(ctx context.Context) error {
	// The underlying filesystem persists independently
	return nil
}

func (ls *LocalStore) Identify(ctx context.Context, location string) (data.FileIdentity, error) {
	var st unix.Stat_t
	if err := unix.Stat(location, &st); err != nil {
		return data.FileIdentity{}, mapError("stat", location, "", err)
	}

	return data.FileIdentity{
		Device: uint64(st.Dev),
		Inode:  uint64(st.Ino),
		Path:   location,
	}, nil
}

func (ls *LocalStore) ReadAttribute(ctx context.Context, location, name string) ([]byte, error) {
	for range retries {
		size, err := unix.Getxattr(location, name, nil)
		if err != nil {
			return nil, mapError("getxattr", location, name, err)
		}
		if size == 0 {
			return []byte{}, nil
		}

		buf := make([]byte, size)
		n, err := unix.Getxattr(location, name, buf)
		if errors.Is(err, unix.ERANGE) {
			continue
		}
		if err != nil {
			return nil, mapError("getxattr", location, name, err)
		}
		return buf[:n], nil
	}

	return nil, mapError("getxattr", location, name, unix.ERANGE)
}

func (ls *LocalStore) WriteAttribute(ctx context.Context, location, name string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	if err := unix.Setxattr(location, name, value, 0); err != nil {
		return mapError("setxattr", location, name, err)
	}
	ls.touch(location)
	return nil
}

func (ls *LocalStore) RemoveAttribute(ctx context.Context, location, name string) error {
	if err := unix.Removexattr(location, name); err != nil {
		return mapError("removexattr", location, name, err)
	}
	ls.touch(location)
	return nil
}

func (ls *LocalStore) ListAttributes(ctx context.Context, location string) ([]string, error) {
	for range retries {
		size, err := unix.Listxattr(location, nil)
		if err != nil {
			return nil, mapError("listxattr", location, "", err)
		}
		if size == 0 {
			return []string{}, nil
		}

		buf := make([]byte, size)
		n, err := unix.Listxattr(location, buf)
		if errors.Is(err, unix.ERANGE) {
			continue
		}
		if err != nil {
			return nil, mapError("listxattr", location, "", err)
		}
		return splitNames(buf[:n]), nil
	}

	return nil, mapError("listxattr", location, "", unix.ERANGE)
}

func (ls *LocalStore) touch(location string) {
	if !ls.touchModifyTime {
		return
	}

	info, err := os.Stat(location)
	if err != nil {
		ls.logger.Debug("Unable to stat '%s' for touch: %v", location, err)
		return
	}
	// A zero access time is left unchanged.
	if err := os.Chtimes(location, time.Time{}, info.ModTime().Add(time.Second)); err != nil {
		ls.logger.Debug("Unable to touch '%s': %v", location, err)
	}
}

// splitNames splits the NUL separated list returned by listxattr(2).
func splitNames(buf []byte) []string {
	names := make([]string, 0)
	for _, name := range bytes.Split(buf, []byte{0}) {
		if len(name) > 0 {
			names = append(names, string(name))
		}
	}
	return names
}

func mapError(op, location, name string, err error) error {
	switch {
	case errors.Is(err, errNoAttribute):
		return data.ErrNoData
	case errors.Is(err, unix.ENOENT):
		return fmt.Errorf("%w: %s", data.ErrNotExist, location)
	case errors.Is(err, unix.ENOTSUP):
		return &data.StorageError{Op: op, Location: location, Name: name, Err: fmt.Errorf("%w: %w", data.ErrUnsupported, err)}
	case errors.Is(err, unix.E2BIG), errors.Is(err, unix.ERANGE), errors.Is(err, unix.ENOSPC):
		return &data.StorageError{Op: op, Location: location, Name: name, Err: fmt.Errorf("%w: %w", data.ErrTooLarge, err)}
	default:
		return data.StorageFailure(op, location, name, err)
	}
}
