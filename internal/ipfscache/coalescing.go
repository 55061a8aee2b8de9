package ipfscache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/hermesgraph/ingestd/internal/model"
)

// CoalescingCache layers an in-process go-cache TTL tier in front of a
// durable Cache, grounded on the teacher's cache manager pattern
// (internal/cache/manager.go: memCache *cache.Cache in front of disk
// reads). "Coalescing" in the sense of spec §4.3: a CID once resolved
// never triggers a second gateway fetch, whether the hit comes from the
// fast memory tier or the durable tier beneath it.
type CoalescingCache struct {
	durable Cache
	mem     *gocache.Cache
}

// NewCoalescingCache wraps durable with an in-memory TTL tier.
func NewCoalescingCache(durable Cache, ttl time.Duration) *CoalescingCache {
	return &CoalescingCache{
		durable: durable,
		mem:     gocache.New(ttl, ttl*2),
	}
}

func (c *CoalescingCache) Has(ctx context.Context, cid string) (bool, error) {
	if _, found := c.mem.Get(cid); found {
		return true, nil
	}
	return c.durable.Has(ctx, cid)
}

func (c *CoalescingCache) Get(ctx context.Context, cid string) (*model.PreprocessedEdit, bool, error) {
	if cached, found := c.mem.Get(cid); found {
		return cached.(*model.PreprocessedEdit), true, nil
	}
	item, ok, err := c.durable.Get(ctx, cid)
	if err != nil || !ok {
		return item, ok, err
	}
	c.mem.SetDefault(cid, item)
	return item, true, nil
}

func (c *CoalescingCache) Put(ctx context.Context, item *model.PreprocessedEdit) error {
	if err := c.durable.Put(ctx, item); err != nil {
		return err
	}
	c.mem.SetDefault(item.CID, item)
	return nil
}

func (c *CoalescingCache) LoadCursor(ctx context.Context, consumerID string) (string, error) {
	return c.durable.LoadCursor(ctx, consumerID)
}

func (c *CoalescingCache) PersistCursor(ctx context.Context, consumerID string, cursor string, block uint64) error {
	return c.durable.PersistCursor(ctx, consumerID, cursor, block)
}
