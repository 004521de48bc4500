package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"fincore/internal/core"
)

func TestLRUCache(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](2, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing")
	}
	c.Set("c", 3) // evicts b, the least recently used

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Errorf("c = %d, %v", v, ok)
	}

	c.Set("a", 10)
	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("a = %d after overwrite, want 10", v)
	}

	c.Delete("a")
	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1", c.Size())
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("c"); ok {
		t.Error("c should have expired")
	}
}

func TestLRUCacheCleanExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("old1", "x")
	c.Set("old2", "y")
	now = now.Add(45 * time.Second)
	c.Set("fresh", "z")
	now = now.Add(30 * time.Second)

	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired = %d, want 2", n)
	}
	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1", c.Size())
	}
}

type countingLookup struct {
	calls int
	cats  map[string]core.Category
	err   error
}

func (l *countingLookup) Category(_ context.Context, id string) (core.Category, bool, error) {
	l.calls++
	if l.err != nil {
		return core.Category{}, false, l.err
	}
	c, ok := l.cats[id]
	return c, ok, nil
}

func TestCategoryCache(t *testing.T) {
	ctx := context.Background()
	next := &countingLookup{cats: map[string]core.Category{
		"c1": {ID: "c1", Name: "Dividends", Type: core.CategoryIncome, IsPassive: true},
	}}
	cc := NewCategoryCache(next, 16, time.Minute)

	for i := 0; i < 3; i++ {
		cat, ok, err := cc.Category(ctx, "c1")
		if err != nil || !ok || cat.Name != "Dividends" {
			t.Fatalf("Category(c1) = %+v, %v, %v", cat, ok, err)
		}
	}
	if _, ok, _ := cc.Category(ctx, "ghost"); ok {
		t.Error("ghost should be unknown")
	}
	cc.Category(ctx, "ghost")
	if next.calls != 2 {
		t.Errorf("lookups = %d, want 2 (one hit and one miss cached)", next.calls)
	}

	id := "c1"
	if got := cc.Name(ctx, &id); got != "Dividends" {
		t.Errorf("Name = %q", got)
	}
	if got := cc.Name(ctx, nil); got != "" {
		t.Errorf("Name(nil) = %q", got)
	}

	cc.Forget("c1")
	cc.Category(ctx, "c1")
	if next.calls != 3 {
		t.Errorf("lookups = %d after Forget, want 3", next.calls)
	}
}

func TestCategoryCacheDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	next := &countingLookup{err: errors.New("db down")}
	cc := NewCategoryCache(next, 16, time.Minute)

	if _, _, err := cc.Category(ctx, "c1"); err == nil {
		t.Fatal("expected error")
	}
	next.err = nil
	next.cats = map[string]core.Category{"c1": {ID: "c1", Name: "Rent"}}
	if cat, ok, err := cc.Category(ctx, "c1"); err != nil || !ok || cat.Name != "Rent" {
		t.Errorf("after recovery = %+v, %v, %v", cat, ok, err)
	}
}

func TestManagerStopIsIdempotent(t *testing.T) {
	m := NewManager()
	m.Register(NewLRUCache[int](1, time.Millisecond))
	m.StartCleanup(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	m.Stop()
	m.Stop()

	unstarted := NewManager()
	unstarted.Stop()
}
