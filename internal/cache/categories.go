package cache

import (
	"context"
	"time"

	"fincore/internal/core"
	"fincore/internal/projection"
)

var _ projection.CategoryLookup = (*CategoryCache)(nil)

type categoryEntry struct {
	cat core.Category
	ok  bool
}

// CategoryCache memoizes category lookups, including misses, for ttl.
// Lookup errors are not cached.
type CategoryCache struct {
	next  projection.CategoryLookup
	items *LRUCache[categoryEntry]
}

func NewCategoryCache(next projection.CategoryLookup, size int, ttl time.Duration) *CategoryCache {
	return &CategoryCache{next: next, items: NewLRUCache[categoryEntry](size, ttl)}
}

func (c *CategoryCache) Category(ctx context.Context, id string) (core.Category, bool, error) {
	if e, hit := c.items.Get(id); hit {
		return e.cat, e.ok, nil
	}
	cat, ok, err := c.next.Category(ctx, id)
	if err != nil {
		return core.Category{}, false, err
	}
	c.items.Set(id, categoryEntry{cat: cat, ok: ok})
	return cat, ok, nil
}

// Name returns the category's display name, or "" when id is nil, unknown
// or cannot be resolved.
func (c *CategoryCache) Name(ctx context.Context, id *string) string {
	if id == nil {
		return ""
	}
	cat, ok, err := c.Category(ctx, *id)
	if err != nil || !ok {
		return ""
	}
	return cat.Name
}

// Forget drops id so the next lookup goes to the store.
func (c *CategoryCache) Forget(id string) {
	c.items.Delete(id)
}

func (c *CategoryCache) CleanExpired() int {
	return c.items.CleanExpired()
}
