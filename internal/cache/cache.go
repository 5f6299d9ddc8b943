// Package cache keeps bounded, expiring in-process state such as the live
// browser sessions of the web server.
package cache

import (
	"context"
	"time"
)

// Cache is a keyed store with bounded lifetime entries.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Len() int
}

// Cleaner is implemented by caches that can drop expired entries on demand.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically sweeps registered caches.
type Janitor struct {
	caches  []Cleaner
	onSweep func(removed int)
	done    chan struct{}
}

// NewJanitor creates a janitor. onSweep, if set, is called after every sweep
// that removed at least one entry.
func NewJanitor(onSweep func(removed int), caches ...Cleaner) *Janitor {
	return &Janitor{caches: caches, onSweep: onSweep, done: make(chan struct{})}
}

// Run sweeps every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	defer close(j.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := j.Sweep(); removed > 0 && j.onSweep != nil {
				j.onSweep(removed)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Sweep cleans every registered cache once.
func (j *Janitor) Sweep() int {
	total := 0
	for _, c := range j.caches {
		total += c.CleanExpired()
	}
	return total
}

// Done is closed when Run returns.
func (j *Janitor) Done() <-chan struct{} {
	return j.done
}
