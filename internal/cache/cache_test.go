package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
	"github.com/uparkt/parkadmin/internal/query"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(opts Options) (*Cache, *clock) {
	clk := &clock{now: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)}
	opts.Now = clk.Now
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Millisecond
	}
	return New(opts), clk
}

// counter is a fetch function returning "<name>-<n>" for the n-th call.
type counter struct {
	name  string
	calls atomic.Int32
	gate  chan struct{}
	errs  []error
	mu    sync.Mutex
}

func (f *counter) fetch(ctx context.Context) (string, error) {
	n := f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		f.mu.Unlock()
		return "", err
	}
	f.mu.Unlock()
	return fmt.Sprintf("%s-%d", f.name, n), nil
}

func (f *counter) query(key query.Key) query.Query[string] {
	return query.New(key, f.fetch)
}

func TestStaleWhileRevalidate(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestCache(Options{})
	f := &counter{name: "me"}
	q := f.query(query.MeKey())

	v, err := Get(ctx, c, q)
	require.NoError(t, err)
	assert.Equal(t, "me-1", v)

	clk.Advance(14 * time.Minute)
	v, err = Get(ctx, c, q)
	require.NoError(t, err)
	assert.Equal(t, "me-1", v)
	assert.Equal(t, int32(1), f.calls.Load())

	clk.Advance(2 * time.Minute)
	snap, ok := c.Peek(q.Key)
	require.True(t, ok)
	assert.Equal(t, Stale, snap.State)

	f.gate = make(chan struct{})
	v, err = Get(ctx, c, q)
	require.NoError(t, err)
	assert.Equal(t, "me-1", v, "stale data is served without waiting")

	snap, _ = c.Peek(q.Key)
	assert.Equal(t, Revalidating, snap.State)

	// A second stale read does not start another refetch.
	v, err = Get(ctx, c, q)
	require.NoError(t, err)
	assert.Equal(t, "me-1", v)

	close(f.gate)
	c.Wait()
	assert.Equal(t, int32(2), f.calls.Load())
	snap, _ = c.Peek(q.Key)
	assert.Equal(t, Fresh, snap.State)
	assert.Equal(t, "me-2", snap.Data)
}

func TestFetchAndEnsure(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestCache(Options{StaleTime: time.Minute})
	f := &counter{name: "svc"}
	q := f.query(query.NewKey(query.Services, "list"))

	v, err := Ensure(ctx, c, q)
	require.NoError(t, err)
	assert.Equal(t, "svc-1", v)

	clk.Advance(2 * time.Minute)
	v, err = Ensure(ctx, c, q)
	require.NoError(t, err)
	assert.Equal(t, "svc-1", v)
	assert.Equal(t, int32(1), f.calls.Load())

	v, err = Fetch(ctx, c, q)
	require.NoError(t, err)
	assert.Equal(t, "svc-2", v)

	v, err = Fetch(ctx, c, q)
	require.NoError(t, err)
	assert.Equal(t, "svc-2", v)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestCoalescing(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(Options{})
	f := &counter{name: "users", gate: make(chan struct{})}
	q := f.query(query.NewKey(query.Users, "list"))

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Fetch(ctx, c, q)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	assert.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	for _, r := range results {
		assert.Equal(t, "users-1", r)
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()
	transient := apperrors.ErrTransport.New("502 Bad Gateway")

	t.Run("transient failures are retried", func(t *testing.T) {
		c, _ := newTestCache(Options{})
		f := &counter{name: "cars", errs: []error{transient, transient}}
		v, err := Fetch(ctx, c, f.query(query.NewKey("cars")))
		require.NoError(t, err)
		assert.Equal(t, "cars-3", v)
		assert.Equal(t, int32(3), f.calls.Load())
	})

	t.Run("retries are bounded", func(t *testing.T) {
		c, _ := newTestCache(Options{})
		f := &counter{name: "cars", errs: []error{transient, transient, transient, transient}}
		_, err := Fetch(ctx, c, f.query(query.NewKey("cars")))
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrTransport)
		assert.Equal(t, int32(3), f.calls.Load())
		_, ok := c.Peek(query.NewKey("cars"))
		assert.False(t, ok)
	})

	terminal := []error{
		apperrors.ErrValidation.New("users: required"),
		apperrors.ErrNoSession,
		apperrors.ErrBusiness.New("user not found"),
	}
	for _, e := range terminal {
		t.Run("terminal "+e.Error(), func(t *testing.T) {
			c, _ := newTestCache(Options{})
			f := &counter{name: "x", errs: []error{e}}
			_, err := Fetch(ctx, c, f.query(query.NewKey("x")))
			assert.ErrorIs(t, err, e)
			assert.Equal(t, int32(1), f.calls.Load())
		})
	}

	t.Run("retries disabled", func(t *testing.T) {
		c, _ := newTestCache(Options{Retries: -1})
		f := &counter{name: "x", errs: []error{transient}}
		_, err := Fetch(ctx, c, f.query(query.NewKey("x")))
		assert.Error(t, err)
		assert.Equal(t, int32(1), f.calls.Load())
	})
}

func TestPrefixInvalidation(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(Options{})
	user := &counter{name: "user"}
	money := &counter{name: "money"}
	cars := &counter{name: "cars"}
	other := &counter{name: "other"}

	queries := []query.Query[string]{
		user.query(query.UserKey(10)),
		money.query(query.UserKey(10).Append("money")),
		cars.query(query.UserCarsKey(10).Append(map[string]int{"page": 1})),
	}
	otherQ := other.query(query.UserKey(11))
	for _, q := range append(queries, otherQ) {
		_, err := Get(ctx, c, q)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, c.Len())

	assert.Equal(t, 3, c.Invalidate(query.UserKey(10)))
	for _, q := range queries {
		snap, ok := c.Peek(q.Key)
		require.True(t, ok)
		assert.Equal(t, Stale, snap.State, q.Key.String())
	}
	snap, _ := c.Peek(otherQ.Key)
	assert.Equal(t, Fresh, snap.State)

	// Reads after invalidation serve the old value and refetch.
	v, err := Get(ctx, c, queries[1])
	require.NoError(t, err)
	assert.Equal(t, "money-1", v)
	c.Wait()
	snap, _ = c.Peek(queries[1].Key)
	assert.Equal(t, Fresh, snap.State)
	assert.Equal(t, "money-2", snap.Data)

	assert.Equal(t, 4, c.Invalidate(query.AllUsers()))
	assert.Equal(t, 0, c.Invalidate(query.NewKey(query.Chats)))

	assert.Equal(t, 1, c.Remove(query.UserCarsKey(10)))
	assert.Equal(t, 1, c.Remove(query.UserKey(11)))
	assert.Equal(t, 2, c.Len())
	_, ok := c.Peek(queries[0].Key)
	assert.True(t, ok)
}

func TestRemoveDuringFetch(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(Options{})
	f := &counter{name: "parking", gate: make(chan struct{})}
	q := f.query(query.UserParkingKey(10, 200))

	done := make(chan string)
	go func() {
		v, err := Fetch(ctx, c, q)
		assert.NoError(t, err)
		done <- v
	}()
	assert.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	c.Remove(query.UserKey(10))
	close(f.gate)
	assert.Equal(t, "parking-1", <-done, "the caller still receives the response")
	_, ok := c.Peek(q.Key)
	assert.False(t, ok, "the response is not written back")

	v, err := Fetch(ctx, c, q)
	require.NoError(t, err)
	assert.Equal(t, "parking-2", v)
	_, ok = c.Peek(q.Key)
	assert.True(t, ok)
}

func TestInvalidateDuringFetch(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(Options{})
	f := &counter{name: "chat", gate: make(chan struct{})}
	q := f.query(query.ChatKey(1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := Fetch(ctx, c, q)
		assert.NoError(t, err)
	}()
	assert.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	c.Invalidate(query.NewKey(query.Chats))
	close(f.gate)
	<-done
	snap, ok := c.Peek(q.Key)
	require.True(t, ok)
	assert.Equal(t, Stale, snap.State)
}

func TestLateLoadAfterInvalidate(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(Options{})
	gate := make(chan struct{})
	var calls atomic.Int32
	q := query.New(query.ChatKey(1), func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			<-gate
			return "old-before-mutation", nil
		}
		return "new-after-mutation", nil
	})

	done := make(chan string)
	go func() {
		v, err := Fetch(ctx, c, q)
		assert.NoError(t, err)
		done <- v
	}()
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	c.Invalidate(query.NewKey(query.Chats))
	v, err := Fetch(ctx, c, q)
	require.NoError(t, err)
	assert.Equal(t, "new-after-mutation", v)

	close(gate)
	assert.Equal(t, "old-before-mutation", <-done)

	v, err = Get(ctx, c, q)
	require.NoError(t, err)
	assert.Equal(t, "new-after-mutation", v)
	snap, ok := c.Peek(q.Key)
	require.True(t, ok)
	assert.Equal(t, Fresh, snap.State)
	assert.Equal(t, int32(2), calls.Load())
}

func TestInvalidateThenRemoveDuringFetch(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(Options{})
	f := &counter{name: "chat", gate: make(chan struct{})}
	q := f.query(query.ChatKey(1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = Fetch(ctx, c, q)
	}()
	assert.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	c.Invalidate(query.NewKey(query.Chats))
	c.Remove(query.NewKey(query.Chats))
	close(f.gate)
	<-done
	_, ok := c.Peek(q.Key)
	assert.False(t, ok)
}

func TestUncachedPrefixesLeaveNoNodes(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(Options{})

	for i := 0; i < 50; i++ {
		c.Invalidate(query.ChatKey(int64(i)))
		c.Remove(query.UserKey(int64(i)))
	}
	assert.Equal(t, 0, c.nodes())

	f := &counter{name: "parking"}
	_, err := Get(ctx, c, f.query(query.UserParkingKey(10, 200)))
	require.NoError(t, err)
	assert.Positive(t, c.nodes())

	assert.Equal(t, 1, c.Remove(query.UserKey(10)))
	assert.Equal(t, 0, c.nodes())
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(Options{})
	slow := &counter{name: "slow", gate: make(chan struct{})}
	fast := &counter{name: "fast"}

	_, err := Get(ctx, c, fast.query(query.MeKey()))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = Fetch(ctx, c, slow.query(query.NewKey(query.Users, "list")))
	}()
	assert.Eventually(t, func() bool { return slow.calls.Load() == 1 }, time.Second, time.Millisecond)

	c.Clear()
	assert.Equal(t, 0, c.Len())
	close(slow.gate)
	<-done
	assert.Equal(t, 0, c.Len())

	c.Set(query.MeKey(), "cached")
	v, err := Get(ctx, c, fast.query(query.MeKey()))
	require.NoError(t, err)
	assert.Equal(t, "cached", v)
}

func TestCallerCancel(t *testing.T) {
	c, _ := newTestCache(Options{})
	f := &counter{name: "list", gate: make(chan struct{})}
	q := f.query(query.NewKey(query.Chats, "list"))

	cctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := Fetch(cctx, c, q)
		errc <- err
	}()
	assert.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	waiter := make(chan string, 1)
	go func() {
		v, _ := Fetch(context.Background(), c, q)
		waiter <- v
	}()

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	close(f.gate)
	assert.Equal(t, "list-1", <-waiter)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestTypeMismatch(t *testing.T) {
	c, _ := newTestCache(Options{})
	c.Set(query.MeKey(), 42)
	_, err := Ensure(context.Background(), c, query.New(query.MeKey(), func(context.Context) (string, error) {
		return "", nil
	}))
	assert.Error(t, err)
}
