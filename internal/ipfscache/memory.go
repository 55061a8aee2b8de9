package ipfscache

import (
	"context"
	"sync"

	"github.com/hermesgraph/ingestd/internal/model"
)

// MemoryCache is an in-process Cache implementation: the in-memory test
// double spec §9 requires alongside a real RDBMS binding.
type MemoryCache struct {
	mu      sync.RWMutex
	items   map[string]*model.PreprocessedEdit
	cursors map[string]string
}

// NewMemoryCache constructs an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items:   make(map[string]*model.PreprocessedEdit),
		cursors: make(map[string]string),
	}
}

func (c *MemoryCache) Has(_ context.Context, cid string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[cid]
	return ok, nil
}

func (c *MemoryCache) Get(_ context.Context, cid string) (*model.PreprocessedEdit, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[cid]
	if !ok {
		return nil, false, nil
	}
	return item, true, nil
}

func (c *MemoryCache) Put(_ context.Context, item *model.PreprocessedEdit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.CID] = item
	return nil
}

func (c *MemoryCache) LoadCursor(_ context.Context, consumerID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cursors[consumerID], nil
}

func (c *MemoryCache) PersistCursor(_ context.Context, consumerID string, cursor string, _ uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursors[consumerID] = cursor
	return nil
}
