// Package history keeps the last few successful search queries in durable
// client storage, newest first.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"golang.org/x/text/cases"

	"github.com/rubiojr/fmsearch/pkg/log"
	"github.com/rubiojr/fmsearch/pkg/query"
	"github.com/rubiojr/fmsearch/pkg/storage"
)

// StorageKey is the key the serialized history lives under.
const StorageKey = "fm_search_history"

// DefaultMaxEntries bounds the history length when none is configured.
const DefaultMaxEntries = 3

var logger = log.ForService("history")

// Store is a bounded, case-insensitively deduplicated list of queries.
//
// Every storage failure degrades to a no-op: List returns an empty slice,
// Add and Clear leave things as they were. Failures are logged and never
// returned.
type Store struct {
	kv         storage.Store
	maxEntries int
	minChars   int

	// serializes read-modify-write cycles within one process
	mu sync.Mutex
}

// New returns a history backed by kv. maxEntries <= 0 uses
// DefaultMaxEntries.
func New(kv storage.Store, maxEntries, minChars int) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{kv: kv, maxEntries: maxEntries, minChars: minChars}
}

// List returns the stored entries, newest first.
func (s *Store) List(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Add records q as the newest entry. Queries shorter than the minimum are
// ignored. An existing entry equal to q under case folding is replaced.
func (s *Store) Add(ctx context.Context, q string) {
	if !query.Meets(q, s.minChars) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fold := cases.Fold()
	key := fold.String(q)

	entries := []string{q}
	for _, e := range s.load(ctx) {
		if fold.String(e) == key {
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) > s.maxEntries {
		entries = entries[:s.maxEntries]
	}

	s.save(ctx, entries)
}

// Clear removes every entry.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, StorageKey); err != nil {
		logger.Warnf("clearing history: %v", err)
	}
}

func (s *Store) load(ctx context.Context) []string {
	raw, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warnf("reading history: %v", err)
		}
		return []string{}
	}

	var entries []string
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		logger.Warnf("ignoring corrupt history value: %v", err)
		return []string{}
	}
	if len(entries) > s.maxEntries {
		entries = entries[:s.maxEntries]
	}
	return entries
}

func (s *Store) save(ctx context.Context, entries []string) {
	data, err := json.Marshal(entries)
	if err != nil {
		logger.Warnf("encoding history: %v", err)
		return
	}
	if err := s.kv.Set(ctx, StorageKey, string(data)); err != nil {
		logger.Warnf("writing history: %v", err)
		return
	}
	logger.Debugf("history now %v", entries)
}
