package store

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/scoring_api/internal/errors"
)

var errDown = stderrors.New("connection refused")

// fakeServer is an in-memory key-value server shared by every connection
// the fake dialer opens. failPings makes the next N probes fail; a negative
// value fails all of them.
type fakeServer struct {
	mu        sync.Mutex
	data      map[string][]byte
	ttls      map[string]time.Duration
	failPings int
	failOps   bool
	pings     int
	dials     int
	closes    int
}

func newFakeServer() *fakeServer {
	return &fakeServer{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeServer) dial(context.Context) (Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	return &fakeConn{srv: f}, nil
}

type fakeConn struct {
	srv    *fakeServer
	closed bool
}

var errClosed = stderrors.New("use of closed connection")

func (c *fakeConn) Ping(context.Context) error {
	f := c.srv
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	if f.failPings != 0 {
		if f.failPings > 0 {
			f.failPings--
		}
		return errDown
	}
	return nil
}

func (c *fakeConn) Get(_ context.Context, key string) ([]byte, error) {
	f := c.srv
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.closed {
		return nil, errClosed
	}
	if f.failOps {
		return nil, errDown
	}
	return f.data[key], nil
}

func (c *fakeConn) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f := c.srv
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.closed {
		return errClosed
	}
	if f.failOps {
		return errDown
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (c *fakeConn) Close() error {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	c.srv.closes++
	c.closed = true
	return nil
}

type sleepCounter struct {
	n     int
	total time.Duration
}

func (s *sleepCounter) sleep(_ context.Context, d time.Duration) error {
	s.n++
	s.total += d
	return nil
}

func newTestStore(t *testing.T, srv *fakeServer, opts Options) (*Store, *sleepCounter) {
	t.Helper()
	sc := &sleepCounter{}
	opts.Sleep = sc.sleep
	s := New(srv.dial, opts)
	t.Cleanup(func() { _ = s.Close() })
	return s, sc
}

func TestStore_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t, newFakeServer(), Options{Prefix: "test"})
	ctx := context.Background()

	t.Run("string", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k1", "value", 0))
		var got string
		require.NoError(t, s.Get(ctx, "k1", &got))
		assert.Equal(t, "value", got)
	})

	t.Run("bytes", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k2", []byte{0x00, 0xff, 'b'}, 0))
		var got []byte
		require.NoError(t, s.Get(ctx, "k2", &got))
		assert.Equal(t, []byte{0x00, 0xff, 'b'}, got)
	})

	t.Run("int", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k3", 3, 0))
		var got int
		require.NoError(t, s.Get(ctx, "k3", &got))
		assert.Equal(t, 3, got)
	})

	t.Run("float", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k4", 3.5, 0))
		var got float64
		require.NoError(t, s.Get(ctx, "k4", &got))
		assert.Equal(t, 3.5, got)
	})

	t.Run("list", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k5", []string{"cars", "pets"}, 0))
		var got []string
		require.NoError(t, s.Get(ctx, "k5", &got))
		assert.Equal(t, []string{"cars", "pets"}, got)
	})

	t.Run("map", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k6", map[string]any{"a": "b"}, 0))
		var got map[string]any
		require.NoError(t, s.Get(ctx, "k6", &got))
		assert.Equal(t, map[string]any{"a": "b"}, got)
	})

	assert.Equal(t, StateConnected, s.State())
}

func TestStore_KeysArePrefixed(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestStore(t, srv, Options{Prefix: "scoring"})

	require.NoError(t, s.Set(context.Background(), "uid:1", 1.5, time.Hour))

	assert.Contains(t, srv.data, "scoring:uid:1")
	assert.Equal(t, time.Hour, srv.ttls["scoring:uid:1"])
	assert.Equal(t, ":uid:1", New(srv.dial, Options{}).Key("uid:1"))
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newTestStore(t, newFakeServer(), Options{})

	var got string
	err := s.Get(context.Background(), "absent", &got)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Contains(t, err.Error(), "not found")
}

func TestStore_GetEmptyPayloadIsMissing(t *testing.T) {
	srv := newFakeServer()
	srv.data[":empty"] = []byte{}
	s, _ := newTestStore(t, srv, Options{})

	var got string
	assert.True(t, errors.IsNotFound(s.Get(context.Background(), "empty", &got)))
}

func TestStore_CacheGetMiss(t *testing.T) {
	s, _ := newTestStore(t, newFakeServer(), Options{})

	var got float64
	assert.False(t, s.CacheGet(context.Background(), "absent", &got))
	assert.Zero(t, got)
}

func TestStore_CacheSetSkipsEmpty(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestStore(t, srv, Options{})
	ctx := context.Background()

	s.CacheSet(ctx, "", "value", 0)
	s.CacheSet(ctx, "zero", 0.0, 0)
	s.CacheSet(ctx, "blank", "", 0)
	s.CacheSet(ctx, "none", nil, 0)
	s.CacheSet(ctx, "list", []string{}, 0)
	assert.Empty(t, srv.data)

	s.CacheSet(ctx, "score", 3.5, 0)
	var got float64
	assert.True(t, s.CacheGet(ctx, "score", &got))
	assert.Equal(t, 3.5, got)
}

func TestStore_CacheOpsSwallowOutage(t *testing.T) {
	srv := newFakeServer()
	srv.failPings = -1
	s, sleeps := newTestStore(t, srv, Options{Retries: 2})
	ctx := context.Background()

	s.CacheSet(ctx, "score", 3.5, 0)
	var got float64
	assert.False(t, s.CacheGet(ctx, "score", &got))
	assert.Equal(t, 4, sleeps.n)
}

func TestStore_OperationErrorsAreConnectivity(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestStore(t, srv, Options{})
	srv.failOps = true

	var got string
	err := s.Get(context.Background(), "k", &got)
	assert.True(t, errors.IsUnavailable(err))
	assert.True(t, errors.IsUnavailable(s.Set(context.Background(), "k", "v", 0)))
}

func TestStore_RetriesUntilProbeSucceeds(t *testing.T) {
	for _, failures := range []int{0, 1, 3, 5} {
		srv := newFakeServer()
		srv.failPings = failures
		s, sleeps := newTestStore(t, srv, Options{Retries: 5, RetryInterval: 10 * time.Millisecond})

		require.NoError(t, s.EnsureConnected(context.Background()), "failures=%d", failures)
		assert.Equal(t, failures, sleeps.n)
		assert.Equal(t, time.Duration(failures)*10*time.Millisecond, sleeps.total)
		assert.Equal(t, failures+1, srv.dials)
		assert.Equal(t, StateConnected, s.State())
	}
}

func TestStore_RetriesExhausted(t *testing.T) {
	srv := newFakeServer()
	srv.failPings = -1
	s, sleeps := newTestStore(t, srv, Options{Retries: 5})

	err := s.EnsureConnected(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsUnavailable(err))
	assert.Contains(t, err.Error(), "retries exhausted")
	assert.Equal(t, 5, sleeps.n)
	assert.Equal(t, 6, srv.pings)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestStore_BudgetResetsPerCall(t *testing.T) {
	srv := newFakeServer()
	srv.failPings = 5
	s, sleeps := newTestStore(t, srv, Options{Retries: 3})
	ctx := context.Background()

	require.Error(t, s.EnsureConnected(ctx))
	assert.Equal(t, 3, sleeps.n)

	// One failing probe remains; a fresh budget absorbs it.
	require.NoError(t, s.EnsureConnected(ctx))
	assert.Equal(t, 4, sleeps.n)
}

func TestStore_BackoffHonorsContext(t *testing.T) {
	srv := newFakeServer()
	srv.failPings = -1
	s := New(srv.dial, Options{Retries: 5, RetryInterval: time.Hour})
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.EnsureConnected(ctx)
	assert.True(t, errors.IsUnavailable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestStore_DialFailure(t *testing.T) {
	s := New(func(context.Context) (Backend, error) { return nil, errDown }, Options{})

	err := s.EnsureConnected(context.Background())
	assert.True(t, errors.IsUnavailable(err))
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestStore_CloseAndReuse(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestStore(t, srv, Options{})
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", 0))
	require.NoError(t, s.Close())
	assert.Equal(t, StateDisconnected, s.State())
	assert.Equal(t, 1, srv.closes)

	var got string
	require.NoError(t, s.Get(ctx, "k", &got))
	assert.Equal(t, "v", got)
	assert.Equal(t, 2, srv.dials)
}

func TestStore_ConcurrentUse(t *testing.T) {
	s, _ := newTestStore(t, newFakeServer(), Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.CacheSet(ctx, "shared", "v", 0)
			var got string
			s.CacheGet(ctx, "shared", &got)
		}()
	}
	wg.Wait()
	assert.Equal(t, StateConnected, s.State())
}

func TestStore_CloseDoesNotBreakInFlightCalls(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestStore(t, srv, Options{})
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "v", 0))

	var wg sync.WaitGroup
	errs := make(chan error, 400)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				var got string
				if err := s.Get(ctx, "k", &got); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			_ = s.Close()
		}
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
