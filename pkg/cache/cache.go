// Package cache holds the most recent successful result set of a widget
// and the incremental rendering window over it.
package cache

import (
	"sync"
	"time"

	"github.com/rubiojr/fmsearch/pkg/product"
)

// ResultSet is an immutable snapshot of one successful search. It is
// replaced wholesale, never mutated.
type ResultSet struct {
	Query      string
	Items      []product.Product
	CapturedAt time.Time
}

// Len is the number of cached items.
func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Items)
}

// ResultCache is a single-slot cache keyed by normalized query.
type ResultCache struct {
	mu   sync.RWMutex
	slot *ResultSet
	cap  int
	now  func() time.Time
}

// New returns an empty cache truncating stored sets to maxResults items
// (0 means no cap).
func New(maxResults int) *ResultCache {
	return &ResultCache{cap: maxResults, now: time.Now}
}

// Get returns the slot when it holds a non-empty set for query.
func (c *ResultCache) Get(query string) (*ResultSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.slot == nil || c.slot.Query != query || len(c.slot.Items) == 0 {
		return nil, false
	}
	return c.slot, true
}

// Current returns whatever the slot holds, possibly nil.
func (c *ResultCache) Current() *ResultSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slot
}

// Set replaces the slot. Items beyond the cap are dropped; the caller's
// slice is copied so later changes to it are not observed.
func (c *ResultCache) Set(query string, items []product.Product) *ResultSet {
	n := len(items)
	if c.cap > 0 && n > c.cap {
		n = c.cap
	}
	owned := make([]product.Product, n)
	copy(owned, items[:n])

	rs := &ResultSet{Query: query, Items: owned, CapturedAt: c.now()}

	c.mu.Lock()
	c.slot = rs
	c.mu.Unlock()
	return rs
}

func (c *ResultCache) Clear() {
	c.mu.Lock()
	c.slot = nil
	c.mu.Unlock()
}
