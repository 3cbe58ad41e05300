package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
	never   = time.Hour
)

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	t.Cleanup(c.Close)
	return c
}

// server is a fake remote resource. Reads return the current value; when
// gate is set every read blocks until released.
type server struct {
	value atomic.Int64
	calls atomic.Int32
	fail  atomic.Bool
	gate  chan struct{}
}

func (s *server) fetch(ctx context.Context) (any, error) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.fail.Load() {
		return nil, errors.New("connection refused")
	}
	return s.value.Load(), nil
}

func loadedValue(h *Handle) (int64, bool) {
	return ValueOf[int64](h.Snapshot())
}

func TestSubscribeFetchesImmediately(t *testing.T) {
	c := newTestCache(t)
	srv := &server{}
	srv.value.Store(42)

	h, err := c.Subscribe(Query{Key: NewKey("configuration"), Fetch: srv.fetch}, never)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		v, ok := loadedValue(h)
		return ok && v == 42
	}, waitFor, tick)
	assert.Equal(t, int32(1), srv.calls.Load())
	assert.False(t, h.Snapshot().IsFetching)
	assert.NoError(t, h.Snapshot().Err)
}

func TestSubscribersShareOneEntry(t *testing.T) {
	c := newTestCache(t)
	srv := &server{}
	srv.value.Store(7)

	q := Query{Key: NewKey("device", "door"), Fetch: srv.fetch}
	first, err := c.Subscribe(q, never)
	require.NoError(t, err)
	require.Eventually(t, func() bool { _, ok := loadedValue(first); return ok }, waitFor, tick)

	second, err := c.Subscribe(q, never)
	require.NoError(t, err)

	v, ok := loadedValue(second)
	assert.True(t, ok)
	assert.Equal(t, int64(7), v)
	assert.Equal(t, int32(1), srv.calls.Load())
	assert.Equal(t, 1, c.Stats().Entries)
	assert.NotEqual(t, first.ID(), second.ID())
}

func TestTicksCoalesceIntoOutstandingFetch(t *testing.T) {
	c := newTestCache(t)
	srv := &server{gate: make(chan struct{})}

	h, err := c.Subscribe(Query{Key: NewKey("telemetry"), Fetch: srv.fetch}, never)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.calls.Load() == 1 }, waitFor, tick)

	for i := 0; i < 5; i++ {
		h.Refetch()
	}
	assert.True(t, h.Snapshot().IsFetching)
	assert.Equal(t, int32(1), srv.calls.Load())

	close(srv.gate)
	assert.Eventually(t, func() bool { return !h.Snapshot().IsFetching }, waitFor, tick)
	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	discarded := &recordingObserver{}
	c := newTestCache(t, WithObserver(discarded))
	e := c.newEntry(Query{Key: NewKey("telemetry-recent", 86400), Fetch: (&server{}).fetch}, never)
	e.seq = 2
	e.fetching = true

	c.complete(e, 2, "second", nil)
	c.complete(e, 1, "first", nil)

	s := c.snapshot(e)
	assert.Equal(t, "second", s.Value)
	assert.False(t, s.IsFetching)
	assert.Equal(t, 1, discarded.staleCount())
}

func TestStaleErrorDoesNotOverrideNewerValue(t *testing.T) {
	c := newTestCache(t)
	e := c.newEntry(Query{Key: NewKey("devices"), Fetch: (&server{}).fetch}, never)
	e.seq = 2

	c.complete(e, 2, "fresh", nil)
	c.complete(e, 1, nil, errors.New("timeout"))

	s := c.snapshot(e)
	assert.Equal(t, "fresh", s.Value)
	assert.NoError(t, s.Err)
}

func TestFailureKeepsLastGoodValue(t *testing.T) {
	c := newTestCache(t)
	srv := &server{}
	srv.value.Store(1850)

	h, err := c.Subscribe(Query{Key: NewKey("configuration"), Fetch: srv.fetch}, never)
	require.NoError(t, err)
	require.Eventually(t, func() bool { _, ok := loadedValue(h); return ok }, waitFor, tick)

	srv.fail.Store(true)
	srv.value.Store(0)
	h.Refetch()

	require.Eventually(t, func() bool { return h.Snapshot().Err != nil }, waitFor, tick)
	v, ok := loadedValue(h)
	assert.True(t, ok)
	assert.Equal(t, int64(1850), v)
	assert.Equal(t, 1, c.Stats().Failing)

	srv.fail.Store(false)
	srv.value.Store(1900)
	h.Refetch()

	require.Eventually(t, func() bool { return h.Snapshot().Err == nil }, waitFor, tick)
	v, _ = loadedValue(h)
	assert.Equal(t, int64(1900), v)
}

func TestMutateRefetchesInvalidatedEntries(t *testing.T) {
	c := newTestCache(t)
	config := &server{}
	config.value.Store(18)
	device := &server{}

	configHandle, err := c.Subscribe(Query{Key: NewKey("configuration"), Fetch: config.fetch, Provides: []Tag{"config"}}, 60*time.Second)
	require.NoError(t, err)
	deviceHandle, err := c.Subscribe(Query{Key: NewKey("device", "door"), Fetch: device.fetch, Provides: []Tag{"device"}}, 60*time.Second)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, a := loadedValue(configHandle)
		_, b := loadedValue(deviceHandle)
		return a && b
	}, waitFor, tick)

	err = c.Mutate(context.Background(), func(context.Context) error {
		config.value.Store(19)
		return nil
	}, "config")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		v, _ := loadedValue(configHandle)
		return v == 19
	}, waitFor, tick)
	assert.Equal(t, int32(2), config.calls.Load())
	assert.Equal(t, int32(1), device.calls.Load())
}

func TestFailedMutationInvalidatesNothing(t *testing.T) {
	c := newTestCache(t)
	srv := &server{}

	h, err := c.Subscribe(Query{Key: NewKey("configuration"), Fetch: srv.fetch, Provides: []Tag{"config"}}, never)
	require.NoError(t, err)
	require.Eventually(t, func() bool { _, ok := loadedValue(h); return ok }, waitFor, tick)

	writeErr := errors.New("rejected")
	err = c.Mutate(context.Background(), func(context.Context) error { return writeErr }, "config")

	assert.ErrorIs(t, err, writeErr)
	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestInvalidateDuringFetchRefetchesAfterward(t *testing.T) {
	c := newTestCache(t)
	srv := &server{gate: make(chan struct{})}
	srv.value.Store(1)

	h, err := c.Subscribe(Query{Key: NewKey("configuration"), Fetch: srv.fetch, Provides: []Tag{"config"}}, never)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.calls.Load() == 1 }, waitFor, tick)

	srv.value.Store(2)
	assert.Equal(t, 1, c.Invalidate("config"))
	assert.Equal(t, int32(1), srv.calls.Load(), "only one request may be in flight")

	close(srv.gate)
	assert.Eventually(t, func() bool {
		v, _ := loadedValue(h)
		return srv.calls.Load() == 2 && v == 2 && !h.Snapshot().IsFetching
	}, waitFor, tick)
}

func TestPollingRepeatsOnInterval(t *testing.T) {
	c := newTestCache(t)
	srv := &server{}

	_, err := c.Subscribe(Query{Key: NewKey("relay", "heater"), Fetch: srv.fetch}, 10*time.Millisecond)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return srv.calls.Load() >= 3 }, waitFor, tick)
}

func TestShortestIntervalWins(t *testing.T) {
	c := newTestCache(t)
	srv := &server{}
	q := Query{Key: NewKey("telemetry-recent", 86400), Fetch: srv.fetch}

	slow, err := c.Subscribe(q, never)
	require.NoError(t, err)
	require.Eventually(t, func() bool { _, ok := loadedValue(slow); return ok }, waitFor, tick)

	fast, err := c.Subscribe(q, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return srv.calls.Load() >= 3 }, waitFor, tick)

	require.NoError(t, c.Unsubscribe(fast))
	assert.Equal(t, 1, c.Stats().Entries)
}

func TestUnsubscribeDropsEntry(t *testing.T) {
	c := newTestCache(t)
	srv := &server{gate: make(chan struct{})}
	defer close(srv.gate)

	h, err := c.Subscribe(Query{Key: NewKey("devices"), Fetch: srv.fetch}, 10*time.Millisecond)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.calls.Load() == 1 }, waitFor, tick)

	require.NoError(t, c.Unsubscribe(h))
	assert.Equal(t, 0, c.Stats().Entries)
	assert.ErrorIs(t, c.Unsubscribe(h), ErrUnknownHandle)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestOnChangeReceivesSnapshots(t *testing.T) {
	c := newTestCache(t)
	srv := &server{gate: make(chan struct{})}
	srv.value.Store(5)

	h, err := c.Subscribe(Query{Key: NewKey("configuration"), Fetch: srv.fetch}, never)
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		seen []Snapshot
	)
	h.OnChange(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})

	close(srv.gate)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1].Loaded
	}, waitFor, tick)
}

func TestListenersCopiedBeforeNotify(t *testing.T) {
	c := newTestCache(t)
	srv := &server{}
	srv.value.Store(3)

	h, err := c.Subscribe(Query{Key: NewKey("relay-state", "boiler"), Fetch: srv.fetch}, never)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		s := h.Snapshot()
		return s.Loaded && !s.IsFetching
	}, waitFor, tick)

	var late atomic.Int32
	var once sync.Once
	h.OnChange(func(Snapshot) {
		once.Do(func() {
			h.OnChange(func(Snapshot) { late.Add(1) })
		})
	})

	before := h.listenersSnapshot()
	require.Len(t, before, 1)

	h.Refetch()
	require.Eventually(t, func() bool { return late.Load() > 0 }, waitFor, tick)

	assert.Len(t, before, 1)
	assert.Len(t, h.listenersSnapshot(), 2)
}

func TestSubscribeValidation(t *testing.T) {
	c := newTestCache(t)
	srv := &server{}

	_, err := c.Subscribe(Query{Key: NewKey("devices"), Fetch: srv.fetch}, 0)
	assert.Error(t, err)

	_, err = c.Subscribe(Query{Key: NewKey("devices")}, time.Second)
	assert.Error(t, err)

	c.Close()
	_, err = c.Subscribe(Query{Key: NewKey("devices"), Fetch: srv.fetch}, time.Second)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Mutate(context.Background(), func(context.Context) error { return nil }), ErrClosed)
}

func TestCloseCancelsOutstandingFetches(t *testing.T) {
	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := &server{gate: make(chan struct{})}

	_, err := c.Subscribe(Query{Key: NewKey("telemetry"), Fetch: srv.fetch}, never)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.calls.Load() == 1 }, waitFor, tick)

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("close did not return")
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	stale int
}

func (o *recordingObserver) FetchCompleted(Key, time.Duration, error) {}
func (o *recordingObserver) EntriesChanged(int)                       {}

func (o *recordingObserver) StaleDiscarded(Key) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stale++
}

func (o *recordingObserver) staleCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stale
}
