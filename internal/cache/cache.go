// Package cache holds the client-side snapshots of time records, one per
// filter key. It performs no I/O and enforces no ordering; callers sort
// before writing.
package cache

import (
	"sync"
	"time"

	"github.com/Tiliavir/ttr/internal/model"
)

// Key scopes a snapshot to one filtered view of one session.
type Key struct {
	StartDate  time.Time
	EndDate    time.Time
	SearchText string
	AuthToken  string
}

// Cache is safe for concurrent use. Snapshots are copied on the way in and
// out so callers never alias cached state.
type Cache struct {
	mu      sync.Mutex
	entries map[Key][]model.TimeRecord
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: map[Key][]model.TimeRecord{}}
}

// Get returns a copy of the snapshot stored under key.
func (c *Cache) Get(key Key) ([]model.TimeRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	recs, ok := c.entries[normalize(key)]
	if !ok {
		return nil, false
	}
	return copyRecords(recs), true
}

// Set replaces the snapshot stored under key.
func (c *Cache) Set(key Key, records []model.TimeRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[normalize(key)] = copyRecords(records)
}

// Delete drops the snapshot stored under key.
func (c *Cache) Delete(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, normalize(key))
}

// Clear drops every snapshot.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[Key][]model.TimeRecord{}
}

// Len returns the number of stored snapshots.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// normalize strips monotonic clock readings and locations so equal instants
// map to the same key.
func normalize(k Key) Key {
	k.StartDate = k.StartDate.UTC().Round(0)
	k.EndDate = k.EndDate.UTC().Round(0)
	return k
}

func copyRecords(in []model.TimeRecord) []model.TimeRecord {
	out := make([]model.TimeRecord, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
