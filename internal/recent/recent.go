// Package recent keeps the bounded, most-recent-first list of bucket names
// the operator has used, persisted through a store.Store.
package recent

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/s3transfer/transferctl/internal/constants"
	"github.com/s3transfer/transferctl/internal/logging"
	"github.com/s3transfer/transferctl/internal/store"
)

// Cache is the bucket recency cache. Invariants: no duplicates, at most
// Capacity entries, most recent first. Eviction is purely by capacity.
type Cache struct {
	mu       sync.Mutex
	store    store.Store
	logger   *logging.Logger
	capacity int
	buckets  []string
}

// New loads the cache from st. A missing key means first run and the list
// starts from the default suggestions; a value that does not decode as a
// JSON string array is logged and treated the same way.
func New(st store.Store, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Cache{
		store:    st,
		logger:   logger,
		capacity: constants.RecentBucketsCapacity,
		buckets:  normalize(constants.DefaultRecentBuckets, constants.RecentBucketsCapacity),
	}

	raw, ok := st.Get(constants.RecentBucketsKey)
	if !ok {
		return c
	}

	var stored []string
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		logger.Warn().Err(err).Str("key", constants.RecentBucketsKey).Msg("ignoring unreadable recent bucket list")
		return c
	}

	c.buckets = normalize(stored, c.capacity)
	return c
}

// Record moves name to the front of the list and persists the full list.
// Blank names are ignored.
func (c *Cache) Record(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]string, 0, c.capacity)
	next = append(next, name)
	for _, b := range c.buckets {
		if b != name {
			next = append(next, b)
		}
	}
	if len(next) > c.capacity {
		next = next[:c.capacity]
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode recent buckets: %w", err)
	}
	if err := c.store.Set(constants.RecentBucketsKey, string(data)); err != nil {
		return fmt.Errorf("failed to persist recent buckets: %w", err)
	}

	c.buckets = next
	return nil
}

// List returns a copy of the list, most recent first.
func (c *Cache) List() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.buckets))
	copy(out, c.buckets)
	return out
}

// normalize drops blanks and duplicates from a stored list and applies the
// capacity, so a hand-edited state file cannot break the invariants.
func normalize(in []string, capacity int) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, capacity)
	for _, b := range in {
		b = strings.TrimSpace(b)
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
		if len(out) == capacity {
			break
		}
	}
	return out
}
