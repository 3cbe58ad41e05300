// Package cache keeps the latest result of every subscribed gateway request
// and re-issues requests on a timer.
//
// For each key there is at most one request in flight. Ticks that fire while
// a request is outstanding are dropped. Every request carries a per-key
// sequence number and a response is only applied if it is newer than the last
// one applied, so late responses can never overwrite fresher data. Failed
// requests record an error but keep the last good value.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayltai/espartan/internal/lib/logger/sl"
)

var (
	ErrClosed        = errors.New("cache closed")
	ErrUnknownHandle = errors.New("unknown subscription handle")
)

type Fetcher func(ctx context.Context) (any, error)

// Query describes a request: its identity, how to issue it, and which tags
// its result provides.
type Query struct {
	Key      Key
	Fetch    Fetcher
	Provides []Tag
}

type Snapshot struct {
	Value      any
	Loaded     bool
	Err        error
	IsFetching bool
	UpdatedAt  time.Time
}

// ValueOf returns the snapshot value as T. ok is false before the first
// successful fetch.
func ValueOf[T any](s Snapshot) (T, bool) {
	v, ok := s.Value.(T)
	return v, ok && s.Loaded
}

type Observer interface {
	FetchCompleted(key Key, took time.Duration, err error)
	StaleDiscarded(key Key)
	EntriesChanged(n int)
}

type noopObserver struct{}

func (noopObserver) FetchCompleted(Key, time.Duration, error) {}
func (noopObserver) StaleDiscarded(Key)                       {}
func (noopObserver) EntriesChanged(int)                       {}

type Option func(*Cache)

func WithObserver(o Observer) Option {
	return func(c *Cache) {
		if o != nil {
			c.observer = o
		}
	}
}

type Cache struct {
	log      *slog.Logger
	observer Observer

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type entry struct {
	key   Key
	fetch Fetcher
	tags  tagSet

	handles  map[*Handle]struct{}
	interval time.Duration
	resetCh  chan time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	removed  bool

	value     any
	loaded    bool
	err       error
	updatedAt time.Time
	fetching  bool

	seq     uint64
	applied uint64

	stale      bool
	staleAfter uint64
	refetch    bool
}

func New(log *slog.Logger, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		log:      log.With(slog.String("component", "cache")),
		observer: noopObserver{},
		entries:  make(map[string]*entry),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe starts, or joins, periodic fetching of q.Key. A new entry is
// fetched at once; an existing one only if it has never loaded or is stale.
// The entry polls at the shortest interval requested by its handles.
func (c *Cache) Subscribe(q Query, interval time.Duration) (*Handle, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid polling interval %s for %s", interval, q.Key)
	}
	if q.Fetch == nil {
		return nil, fmt.Errorf("missing fetcher for %s", q.Key)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}

	e, ok := c.entries[q.Key.String()]
	needFetch := !ok
	if !ok {
		e = c.newEntry(q, interval)
		c.entries[q.Key.String()] = e
		c.wg.Add(1)
		go c.poll(e, interval)
	} else {
		e.tags.add(q.Provides)
		needFetch = e.stale || (!e.loaded && !e.fetching)
	}

	h := &Handle{
		id:       uuid.New(),
		cache:    c,
		entry:    e,
		interval: interval,
	}
	e.handles[h] = struct{}{}
	c.retime(e)
	n := len(c.entries)
	c.mu.Unlock()

	c.observer.EntriesChanged(n)
	c.log.Debug("subscribed",
		slog.String("key", q.Key.String()),
		slog.String("handle", h.id.String()),
		slog.Duration("interval", interval),
	)

	if needFetch {
		c.refresh(e)
	}

	return h, nil
}

// Unsubscribe releases h. When no handle references the entry any more its
// timer stops, its outstanding request is cancelled and the entry is dropped.
func (c *Cache) Unsubscribe(h *Handle) error {
	if h == nil {
		return ErrUnknownHandle
	}

	c.mu.Lock()
	e := h.entry
	if _, ok := e.handles[h]; !ok || e.removed {
		c.mu.Unlock()
		return ErrUnknownHandle
	}

	delete(e.handles, h)
	if len(e.handles) == 0 {
		e.removed = true
		e.cancel()
		delete(c.entries, e.key.String())
	} else {
		c.retime(e)
	}
	n := len(c.entries)
	c.mu.Unlock()

	c.observer.EntriesChanged(n)
	c.log.Debug("unsubscribed",
		slog.String("key", e.key.String()),
		slog.String("handle", h.id.String()),
	)
	return nil
}

// Mutate performs a write and, when it succeeds, invalidates tags. The
// refetches it triggers are not awaited.
func (c *Cache) Mutate(ctx context.Context, write func(ctx context.Context) error, invalidates ...Tag) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if err := write(ctx); err != nil {
		return err
	}

	c.Invalidate(invalidates...)
	return nil
}

func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for id, e := range c.entries {
		e.removed = true
		delete(c.entries, id)
	}
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()
	c.observer.EntriesChanged(0)
}

type Stats struct {
	Entries  int
	Fetching int
	Failing  int
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Entries: len(c.entries)}
	for _, e := range c.entries {
		if e.fetching {
			s.Fetching++
		}
		if e.err != nil {
			s.Failing++
		}
	}
	return s
}

func (c *Cache) newEntry(q Query, interval time.Duration) *entry {
	ctx, cancel := context.WithCancel(c.ctx)
	return &entry{
		key:      q.Key,
		fetch:    q.Fetch,
		tags:     newTagSet(q.Provides),
		handles:  make(map[*Handle]struct{}),
		interval: interval,
		resetCh:  make(chan time.Duration, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// retime must be called with c.mu held.
func (c *Cache) retime(e *entry) {
	shortest := time.Duration(0)
	for h := range e.handles {
		if shortest == 0 || h.interval < shortest {
			shortest = h.interval
		}
	}
	if shortest == 0 || shortest == e.interval {
		return
	}

	e.interval = shortest
	select {
	case <-e.resetCh:
	default:
	}
	e.resetCh <- shortest
}

func (c *Cache) poll(e *entry, interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case d := <-e.resetCh:
			ticker.Reset(d)
		case <-ticker.C:
			c.refresh(e)
		}
	}
}

// refresh issues a request for e unless one is already outstanding. A stale
// entry that is busy is refetched as soon as the outstanding request ends.
func (c *Cache) refresh(e *entry) {
	c.mu.Lock()
	if c.closed || e.removed {
		c.mu.Unlock()
		return
	}
	if e.fetching {
		if e.stale {
			e.refetch = true
		}
		c.mu.Unlock()
		return
	}

	e.fetching = true
	e.seq++
	seq := e.seq
	ctx := e.ctx
	c.wg.Add(1)
	c.mu.Unlock()

	c.notify(e)

	go func() {
		defer c.wg.Done()

		start := time.Now()
		value, err := e.fetch(ctx)
		if ctx.Err() == nil {
			c.observer.FetchCompleted(e.key, time.Since(start), err)
		}

		c.complete(e, seq, value, err)
	}()
}

// complete applies a response unless a newer one has already been applied.
func (c *Cache) complete(e *entry, seq uint64, value any, err error) {
	c.mu.Lock()
	if seq == e.seq {
		e.fetching = false
	}
	if e.removed {
		c.mu.Unlock()
		return
	}
	if seq <= e.applied {
		c.mu.Unlock()
		c.observer.StaleDiscarded(e.key)
		c.log.Debug("stale response discarded",
			slog.String("key", e.key.String()),
			slog.Uint64("seq", seq),
		)
		return
	}

	e.applied = seq
	if err != nil {
		e.err = err
	} else {
		e.value = value
		e.loaded = true
		e.err = nil
		e.updatedAt = time.Now()
		if e.stale && seq > e.staleAfter {
			e.stale = false
		}
	}

	again := e.refetch && !e.fetching
	if again {
		e.refetch = false
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Debug("fetch failed, keeping last value",
			slog.String("key", e.key.String()),
			sl.Err(err),
		)
	}

	c.notify(e)

	if again {
		c.refresh(e)
	}
}

func (c *Cache) snapshot(e *entry) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return e.snapshotLocked()
}

func (e *entry) snapshotLocked() Snapshot {
	return Snapshot{
		Value:      e.value,
		Loaded:     e.loaded,
		Err:        e.err,
		IsFetching: e.fetching,
		UpdatedAt:  e.updatedAt,
	}
}

func (c *Cache) notify(e *entry) {
	c.mu.Lock()
	s := e.snapshotLocked()
	var listeners []func(Snapshot)
	for h := range e.handles {
		listeners = append(listeners, h.listenersSnapshot()...)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}
