// Package cache keeps validated query results in a trie keyed by query keys.
// Reads follow stale-while-revalidate, concurrent loads of one key share a
// single network call, and invalidation or removal of a key reaches every key
// nested below it.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
	"github.com/uparkt/parkadmin/internal/observability"
	"github.com/uparkt/parkadmin/internal/query"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultStaleTime  = 15 * time.Minute
	DefaultRetries    = 2
	DefaultRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
)

// Options configures a Cache. Zero values select the defaults; a negative
// Retries disables retrying.
type Options struct {
	StaleTime  time.Duration
	Retries    int
	RetryDelay time.Duration
	Now        func() time.Time
}

// Snapshot describes a cached entry.
type Snapshot struct {
	State     State
	Data      any
	FetchedAt time.Time
	StaleAt   time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	staleTime  time.Duration
	retries    int
	retryDelay time.Duration
	now        func() time.Time

	mu       sync.Mutex
	root     *node
	seq      uint64
	inflight map[*flight]struct{}

	group singleflight.Group
	bg    sync.WaitGroup
}

// flight is one network call in progress. invalidated and removed record a
// change under its key made while the call was running.
type flight struct {
	key         query.Key
	start       uint64
	invalidated bool
	removed     bool
}

// New returns an empty cache.
func New(opts Options) *Cache {
	c := &Cache{
		staleTime:  opts.StaleTime,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		now:        opts.Now,
		root:       &node{},
		inflight:   make(map[*flight]struct{}),
	}
	if c.staleTime <= 0 {
		c.staleTime = DefaultStaleTime
	}
	switch {
	case c.retries == 0:
		c.retries = DefaultRetries
	case c.retries < 0:
		c.retries = 0
	}
	if c.retryDelay <= 0 {
		c.retryDelay = DefaultRetryDelay
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Get returns cached data when present. Fresh data is returned without a
// network call. Stale data is returned immediately and refreshed once in the
// background. Missing data is loaded before returning.
func (c *Cache) Get(ctx context.Context, d query.Descriptor) (any, error) {
	ns := d.Key.Namespace()
	c.mu.Lock()
	e := c.entryLocked(d.Key)
	if e == nil {
		c.mu.Unlock()
		observability.CacheReadsTotal.WithLabelValues(ns, "miss").Inc()
		return c.load(ctx, d)
	}
	data := e.data
	state := e.state(c.now())
	if state == Stale {
		e.revalidating = true
	}
	c.mu.Unlock()

	switch state {
	case Fresh:
		observability.CacheReadsTotal.WithLabelValues(ns, "hit").Inc()
	case Stale:
		observability.CacheReadsTotal.WithLabelValues(ns, "stale").Inc()
		c.revalidate(ctx, d)
	default:
		observability.CacheReadsTotal.WithLabelValues(ns, "stale").Inc()
	}
	return data, nil
}

// Fetch returns fresh data, loading it when the entry is missing or stale.
func (c *Cache) Fetch(ctx context.Context, d query.Descriptor) (any, error) {
	ns := d.Key.Namespace()
	c.mu.Lock()
	e := c.entryLocked(d.Key)
	if e != nil && e.state(c.now()) == Fresh {
		data := e.data
		c.mu.Unlock()
		observability.CacheReadsTotal.WithLabelValues(ns, "hit").Inc()
		return data, nil
	}
	c.mu.Unlock()
	observability.CacheReadsTotal.WithLabelValues(ns, "miss").Inc()
	return c.load(ctx, d)
}

// Ensure returns any cached data, fresh or not, and loads only when missing.
func (c *Cache) Ensure(ctx context.Context, d query.Descriptor) (any, error) {
	c.mu.Lock()
	e := c.entryLocked(d.Key)
	if e != nil {
		data := e.data
		c.mu.Unlock()
		observability.CacheReadsTotal.WithLabelValues(d.Key.Namespace(), "hit").Inc()
		return data, nil
	}
	c.mu.Unlock()
	observability.CacheReadsTotal.WithLabelValues(d.Key.Namespace(), "miss").Inc()
	return c.load(ctx, d)
}

// Peek reports the state of the entry stored under key without loading it.
func (c *Cache) Peek(key query.Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	if e == nil {
		return Snapshot{State: Missing}, false
	}
	return Snapshot{
		State:     e.state(c.now()),
		Data:      e.data,
		FetchedAt: e.fetchedAt,
		StaleAt:   e.staleAt,
	}, true
}

// Set stores data under key as fresh.
func (c *Cache) Set(key query.Key, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	n := c.root.lookup(key.Segments(), true)
	now := c.now()
	n.entry = &entry{seq: c.seq, key: key, data: data, fetchedAt: now, staleAt: now.Add(c.staleTime)}
}

// Invalidate marks every entry under prefix stale. Their next read triggers a
// refetch. It returns the number of entries affected.
func (c *Cache) Invalidate(prefix query.Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	count := 0
	if n := c.root.lookup(prefix.Segments(), false); n != nil {
		n.walk(func(e *entry) {
			e.invalidated = true
			e.revalidating = false
			count++
		})
	}
	c.forgetLocked(prefix, false)
	log.Debug().Str("prefix", prefix.String()).Int("entries", count).Msg("cache invalidated")
	return count
}

// Remove evicts every entry under prefix.
func (c *Cache) Remove(prefix query.Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	count := 0
	segs := prefix.Segments()
	if n := c.root.lookup(segs, false); n != nil {
		n.walk(func(*entry) { count++ })
		n.entry = nil
		n.children = nil
		c.root.prune(segs)
	}
	c.forgetLocked(prefix, true)
	log.Debug().Str("prefix", prefix.String()).Int("entries", count).Msg("cache entries removed")
	return count
}

// Clear drops every entry. Loads in flight are not written back.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.root = &node{}
	c.forgetLocked(nil, true)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	c.root.walk(func(*entry) { count++ })
	return count
}

func (c *Cache) nodes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.root.size()
}

// Wait blocks until background refetches have finished.
func (c *Cache) Wait() {
	c.bg.Wait()
}

func (c *Cache) entryLocked(key query.Key) *entry {
	n := c.root.lookup(key.Segments(), false)
	if n == nil {
		return nil
	}
	return n.entry
}

// forgetLocked detaches in-flight loads under prefix so later callers start a
// new network call instead of sharing a result that predates the change.
func (c *Cache) forgetLocked(prefix query.Key, removed bool) {
	for f := range c.inflight {
		if f.key.HasPrefix(prefix) {
			if removed {
				f.removed = true
			} else {
				f.invalidated = true
			}
			c.group.Forget(f.key.String())
		}
	}
}

func (c *Cache) revalidate(ctx context.Context, d query.Descriptor) {
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		if _, err := c.load(context.WithoutCancel(ctx), d); err != nil {
			log.Warn().Err(err).Str("key", d.Key.String()).Msg("background refetch failed")
		}
	}()
}

// load runs one shared network call for d.Key and waits for it, or for ctx.
// The shared call is detached from the caller so that one canceled waiter does
// not fail the others.
func (c *Cache) load(ctx context.Context, d query.Descriptor) (any, error) {
	id := d.Key.String()
	ch := c.group.DoChan(id, func() (any, error) {
		c.mu.Lock()
		c.seq++
		f := &flight{key: d.Key, start: c.seq}
		c.inflight[f] = struct{}{}
		c.mu.Unlock()

		v, err := c.fetchWithRetry(context.WithoutCancel(ctx), d)

		c.mu.Lock()
		delete(c.inflight, f)
		c.storeLocked(f, v, err)
		c.mu.Unlock()
		return v, err
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (c *Cache) fetchWithRetry(ctx context.Context, d query.Descriptor) (any, error) {
	var out any
	err := retry.Do(func() error {
		v, err := d.Fetch(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(uint(c.retries+1)),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(apperrors.Retryable),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Err(err).Uint("attempt", n+1).Str("key", d.Key.String()).Msg("retrying fetch")
		}),
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// storeLocked writes a finished load back. Results of loads that saw a removal
// of their key are dropped, as are results older than the stored entry. Loads
// that saw an invalidation are kept but stay stale.
func (c *Cache) storeLocked(f *flight, v any, err error) {
	key := f.key
	ns := key.Namespace()
	segs := key.Segments()
	var existing *entry
	if n := c.root.lookup(segs, false); n != nil {
		existing = n.entry
	}

	if err != nil {
		if existing != nil && !f.invalidated && !f.removed {
			existing.revalidating = false
		}
		observability.CacheFetchesTotal.WithLabelValues(ns, "error").Inc()
		return
	}

	switch {
	case f.removed:
		observability.CacheFetchesTotal.WithLabelValues(ns, "discarded").Inc()
		log.Debug().Str("key", key.String()).Msg("discarding result of a removed key")
		return
	case existing != nil && existing.seq > f.start:
		observability.CacheFetchesTotal.WithLabelValues(ns, "discarded").Inc()
		log.Debug().Str("key", key.String()).Msg("discarding result older than the cached entry")
		return
	}

	n := c.root.lookup(segs, true)
	now := c.now()
	n.entry = &entry{
		seq:         f.start,
		key:         key,
		data:        v,
		fetchedAt:   now,
		staleAt:     now.Add(c.staleTime),
		invalidated: f.invalidated,
	}
	observability.CacheFetchesTotal.WithLabelValues(ns, "ok").Inc()
}
