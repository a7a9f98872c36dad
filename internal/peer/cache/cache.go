package cache

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/dmitrijs2005/peerchat/internal/logging"
)

// Store persists the whole cache as channel name → pending contents.
type Store interface {
	Load(ctx context.Context) (map[string][]string, error)
	Save(ctx context.Context, pending map[string][]string) error
}

// Cache is the in-memory view of a Store. Every change is written through
// under the cache mutex; write failures are logged and never returned.
type Cache struct {
	mu      sync.Mutex
	pending map[string][]string
	store   Store
	logger  logging.Logger
}

// New loads the current contents of store.
func New(ctx context.Context, store Store, l logging.Logger) (*Cache, error) {
	pending, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		pending = make(map[string][]string)
	}
	return &Cache{pending: pending, store: store, logger: l.With("module", "cache")}, nil
}

// Add appends content to the channel's pending list.
func (c *Cache) Add(ctx context.Context, channel, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending[channel] = append(c.pending[channel], content)
	c.persist(ctx)
}

// Pending returns a copy of the channel's pending contents.
func (c *Cache) Pending(channel string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.pending[channel])
}

// Remove drops the first n pending entries of channel, the ones a replay
// has just delivered. Entries added meanwhile are kept.
func (c *Cache) Remove(ctx context.Context, channel string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := c.pending[channel]
	if n >= len(list) {
		delete(c.pending, channel)
	} else {
		c.pending[channel] = slices.Clone(list[n:])
	}
	c.persist(ctx)
}

// Channels lists channels with pending entries, sorted.
func (c *Cache) Channels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.pending))
}

func (c *Cache) persist(ctx context.Context) {
	snapshot := make(map[string][]string, len(c.pending))
	for k, v := range c.pending {
		snapshot[k] = slices.Clone(v)
	}
	if err := c.store.Save(ctx, snapshot); err != nil {
		c.logger.Error(ctx, "cache write failed", "error", err)
	}
}
