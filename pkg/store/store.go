package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("store: key not found")

// Slot is the durable key/value surface the service persists into.
type Slot interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// List returns keys with the given prefix in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)
	Ready() bool
	Close() error
}

const (
	DriverPebble = "pebble"
	DriverSQLite = "sqlite"
)

// Options controls how a slot is opened.
type Options struct {
	Driver   string
	Path     string
	Sync     bool
	ReadOnly bool
}

// Open opens the slot implementation named by opts.Driver.
func Open(opts Options) (Slot, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverPebble:
		return OpenPebble(opts.Path, opts.Sync, opts.ReadOnly)
	case DriverSQLite:
		return OpenSQLite(opts.Path, opts.ReadOnly)
	}
	return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
}

// DataPath returns where a driver keeps its data inside the store directory.
func DataPath(driver, dir string) string {
	if strings.EqualFold(strings.TrimSpace(driver), DriverSQLite) {
		return filepath.Join(dir, "mcikids.db")
	}
	return dir
}

// IsNotFound reports whether err means the key is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
