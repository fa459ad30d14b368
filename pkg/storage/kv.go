// Package storage provides the durable client-side key/value storage used
// for search history and the search-used tracking marker.
//
// Two implementations exist: SQLiteStore persists to a sqlite database file
// and MemoryStore keeps values in process memory.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("storage: key not found")

// Store is a string key/value store. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
