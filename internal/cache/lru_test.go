package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLRUCapacityEviction(t *testing.T) {
	var evicted []string
	c := NewLRUCache(2, 0, WithEvict(func(key string, _ int) { evicted = append(evicted, key) }))

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted as least recently used")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("evicted = %v, want [b]", evicted)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
}

func TestLRUReplaceDoesNotEvict(t *testing.T) {
	calls := 0
	c := NewLRUCache(1, 0, WithEvict(func(string, string) { calls++ }))
	c.Set("k", "one")
	c.Set("k", "two")

	got, ok := c.Get("k")
	if !ok || got != "two" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if calls != 0 {
		t.Fatalf("evict callback ran %d times on replace", calls)
	}
}

func TestLRUExpirySlides(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache(10, time.Minute, WithClock[int](clock.now))

	c.Set("k", 1)
	clock.advance(50 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired too early")
	}
	clock.advance(50 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("Get should have refreshed the ttl")
	}
	clock.advance(61 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should have expired")
	}
}

func TestCleanExpiredAndDelete(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	var evicted []string
	c := NewLRUCache(10, time.Minute,
		WithClock[int](clock.now),
		WithEvict(func(key string, _ int) { evicted = append(evicted, key) }))

	c.Set("old", 1)
	clock.advance(2 * time.Minute)
	c.Set("new", 2)

	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired() = %d, want 1", n)
	}
	c.Delete("new")
	c.Delete("missing")

	if len(evicted) != 2 || evicted[0] != "old" || evicted[1] != "new" {
		t.Fatalf("evicted = %v", evicted)
	}
}

func TestJanitorSweepsUntilCancelled(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := NewLRUCache(10, time.Millisecond, WithClock[int](clock.now))
	c.Set("k", 1)
	clock.advance(time.Second)

	swept := make(chan int, 1)
	j := NewJanitor(func(n int) {
		select {
		case swept <- n:
		default:
		}
	}, c)

	ctx, cancel := context.WithCancel(context.Background())
	go j.Run(ctx, 5*time.Millisecond)

	select {
	case n := <-swept:
		if n != 1 {
			t.Fatalf("swept %d, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("janitor never swept")
	}
	cancel()
	<-j.Done()
}
