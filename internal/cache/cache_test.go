package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

var _ Cache[int] = (*LRUCache[int])(nil)

func TestLRUEviction(t *testing.T) {
	c := NewLRUCache[int]("test", 2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("least recently used entry should be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %d, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string]("test", 10, time.Second)
	c.now = func() time.Time { return now }
	c.Set("k", "v")
	c.Set("k2", "v2")

	now = now.Add(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expired entry returned")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired = %d, want 1", n)
	}
	hits, misses := c.Stats()
	if hits != 0 || misses != 1 {
		t.Fatalf("stats = %d/%d", hits, misses)
	}
}

func TestGetOrLoad(t *testing.T) {
	c := NewLRUCache[int]("test", 10, time.Minute)
	calls := 0
	load := func(context.Context) (int, error) { calls++; return 42, nil }

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad(context.Background(), "k", load)
		if err != nil || v != 42 {
			t.Fatalf("GetOrLoad = %d, %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("loader called %d times", calls)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrLoad(context.Background(), "bad", func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("error = %v", err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Fatalf("errors must not be cached")
	}
}

func TestManagerInvalidateAll(t *testing.T) {
	a := NewLRUCache[int]("a", 10, time.Minute)
	b := NewLRUCache[string]("b", 10, time.Minute)
	a.Set("x", 1)
	b.Set("y", "z")

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)
	m.StartCleanup(10 * time.Millisecond)
	defer m.Stop()

	m.InvalidateAll()
	if a.Size() != 0 || b.Size() != 0 {
		t.Fatalf("caches not purged: %d %d", a.Size(), b.Size())
	}
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager(nil)
	m.Stop()
	m.Stop()
}
