package client

import (
	"context"
	"sync"
	"time"
)

// Resource keys for the client-side cache.
const (
	KeyTopology     = "topology"
	KeyApplications = "applications"
)

// Notifier receives exactly one notification per failed mutation, after the
// optimistic update has been rolled back. The dashboard surfaces these as
// toasts.
type Notifier interface {
	Notify(op string, err error)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(op string, err error)

func (f NotifierFunc) Notify(op string, err error) { f(op, err) }

// FetchFunc loads a resource from the daemon.
type FetchFunc func(ctx context.Context) (interface{}, error)

type entry struct {
	data      interface{}
	fetchedAt time.Time
	inflight  chan struct{} // non-nil while a fetch for this key is running
	err       error         // result of the last completed fetch
}

// Cache is the client-side resource cache. Reads are stale-while-revalidate:
// within the TTL a Get returns the cached value without touching the
// network; past the TTL the stale value is returned immediately and a single
// background refresh runs. Concurrent fetches for the same key coalesce onto
// one in-flight request.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	entries  map[string]*entry
	notifier Notifier
}

// NewCache creates a cache with the given freshness TTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]*entry),
	}
}

// SetNotifier registers the mutation failure sink.
func (c *Cache) SetNotifier(n Notifier) {
	c.mu.Lock()
	c.notifier = n
	c.mu.Unlock()
}

// Get returns the cached value for key, fetching on first use.
func (c *Cache) Get(ctx context.Context, key string, fetch FetchFunc) (interface{}, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && e.data != nil {
		if time.Since(e.fetchedAt) < c.ttl {
			data := e.data
			c.mu.Unlock()
			return data, nil
		}
		// Stale: serve it now, refresh once in the background.
		if e.inflight == nil {
			ch := make(chan struct{})
			e.inflight = ch
			go c.refresh(key, ch, fetch)
		}
		data := e.data
		c.mu.Unlock()
		return data, nil
	}

	// First load. Piggyback on an in-flight fetch if one is running.
	if ok && e.inflight != nil {
		ch := e.inflight
		c.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		c.mu.Lock()
		data, err := e.data, e.err
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return data, nil
	}

	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	ch := make(chan struct{})
	e.inflight = ch
	c.mu.Unlock()

	data, err := fetch(ctx)

	c.mu.Lock()
	if err == nil {
		e.data = data
		e.fetchedAt = time.Now()
	}
	e.err = err
	e.inflight = nil
	close(ch)
	c.mu.Unlock()

	return data, err
}

// refresh is the background half of stale-while-revalidate. The fetch runs
// detached from the triggering request; a failure keeps the stale value.
func (c *Cache) refresh(key string, ch chan struct{}, fetch FetchFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	data, err := fetch(ctx)

	c.mu.Lock()
	e := c.entries[key]
	if e != nil {
		if err == nil {
			e.data = data
			e.fetchedAt = time.Now()
		}
		e.err = err
		e.inflight = nil
	}
	close(ch)
	c.mu.Unlock()
}

// Mutate applies an optimistic update to the named keys, then runs the REST
// call. On failure every touched key is restored to its pre-mutation value
// and the notifier fires exactly once. Mutations are never retried.
func (c *Cache) Mutate(ctx context.Context, op string, keys []string, optimistic func(key string, data interface{}) interface{}, call func(ctx context.Context) error) error {
	c.mu.Lock()
	snapshots := make(map[string]interface{}, len(keys))
	for _, key := range keys {
		e, ok := c.entries[key]
		if !ok || e.data == nil {
			continue
		}
		snapshots[key] = e.data
		e.data = optimistic(key, e.data)
	}
	notifier := c.notifier
	c.mu.Unlock()

	if err := call(ctx); err != nil {
		c.mu.Lock()
		for key, prev := range snapshots {
			if e, ok := c.entries[key]; ok {
				e.data = prev
			}
		}
		c.mu.Unlock()
		if notifier != nil {
			notifier.Notify(op, err)
		}
		return err
	}
	return nil
}

// Patch rewrites the cached value of a key in place, keeping its freshness.
// Used to fold a server-assigned id into an optimistic placeholder.
func (c *Cache) Patch(key string, fn func(data interface{}) interface{}) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.data != nil {
		e.data = fn(e.data)
	}
	c.mu.Unlock()
}

// Invalidate drops a key so the next Get fetches fresh data.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
