// Package store is a namespaced key-value cache client that reconnects to
// its backend with a bounded, fixed-interval retry budget.
//
// Get and Set report failures to the caller. CacheGet and CacheSet are the
// degrading variants used for best-effort caching: they swallow every error.
package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/R3E-Network/scoring_api/internal/errors"
	"github.com/R3E-Network/scoring_api/internal/logging"
	"github.com/R3E-Network/scoring_api/internal/metrics"
)

// State is the connection state of a Store.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

const (
	DefaultRetries       = 5
	DefaultRetryInterval = 200 * time.Millisecond
)

// Options configures a Store.
type Options struct {
	// Prefix namespaces every key as "<prefix>:<key>".
	Prefix string
	// Retries is the number of reconnect attempts per EnsureConnected call.
	Retries int
	// RetryInterval is the fixed pause before each reconnect.
	RetryInterval time.Duration
	Logger        *logging.Logger
	// Sleep replaces the backoff pause; tests use it to count pauses.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Store is safe for concurrent use.
type Store struct {
	dial Dialer
	opts Options

	mu      sync.Mutex
	backend Backend
	state   State
}

// New creates a disconnected Store. Zero option values take the defaults;
// a negative Retries disables reconnects.
func New(dial Dialer, opts Options) *Store {
	if opts.Retries == 0 {
		opts.Retries = DefaultRetries
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	return &Store{dial: dial, opts: opts}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// State returns the current connection state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Key returns the namespaced form of key. The separator is always present,
// so an empty prefix yields ":<key>".
func (s *Store) Key(key string) string {
	return s.opts.Prefix + ":" + key
}

// EnsureConnected makes sure a healthy backend handle exists. A failed probe
// is followed by up to Retries reconnects, each after RetryInterval. The
// budget is not carried over between calls.
func (s *Store) EnsureConnected(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.connected(ctx)
	return err
}

// connected returns a probed backend handle. Callers hold s.mu for as long
// as they use the handle, so Close and reconnects never pull it from under
// an operation in flight.
func (s *Store) connected(ctx context.Context) (Backend, error) {
	if s.backend == nil {
		if err := s.open(ctx); err != nil {
			return nil, err
		}
	}

	budget := s.opts.Retries
	for {
		err := s.backend.Ping(ctx)
		if err == nil {
			s.state = StateConnected
			return s.backend, nil
		}
		s.state = StateDisconnected

		if budget <= 0 {
			metrics.RecordStoreFailure("connect")
			return nil, &errors.ConnectivityError{
				Op:  "connect",
				Err: fmt.Errorf("retries exhausted after %d attempts: %w", s.opts.Retries, err),
			}
		}

		s.opts.Logger.WithContext(ctx).WithError(err).WithField("remaining", budget).
			Warn("store probe failed, reconnecting")

		if err := s.opts.Sleep(ctx, s.opts.RetryInterval); err != nil {
			return nil, &errors.ConnectivityError{Op: "connect", Err: err}
		}
		budget--
		metrics.RecordReconnect()

		_ = s.backend.Close()
		s.backend = nil
		if err := s.open(ctx); err != nil {
			return nil, err
		}
	}
}

// open dials a new handle. Callers hold s.mu.
func (s *Store) open(ctx context.Context) error {
	s.state = StateConnecting
	b, err := s.dial(ctx)
	if err != nil {
		s.state = StateDisconnected
		metrics.RecordStoreFailure("dial")
		return &errors.ConnectivityError{Op: "dial", Err: err}
	}
	s.backend = b
	return nil
}

// Get decodes the value stored under key into dst. A missing key or an
// empty payload yields a NotFoundError.
func (s *Store) Get(ctx context.Context, key string, dst any) error {
	payload, err := s.fetch(ctx, key)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return errors.NewNotFoundError("key", key)
	}

	if err := decode(payload, dst); err != nil {
		return fmt.Errorf("store: decode %q: %w", key, err)
	}
	return nil
}

func (s *Store) fetch(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.connected(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := b.Get(ctx, s.Key(key))
	if err != nil {
		metrics.RecordStoreFailure("get")
		return nil, &errors.ConnectivityError{Op: "get", Err: err}
	}
	return payload, nil
}

// CacheGet is Get with every error swallowed. It reports whether dst was
// filled.
func (s *Store) CacheGet(ctx context.Context, key string, dst any) bool {
	err := s.Get(ctx, key, dst)
	if err != nil && !errors.IsNotFound(err) {
		s.opts.Logger.WithContext(ctx).WithError(err).Debug("cache read skipped")
	}
	metrics.RecordCacheLookup(err == nil)
	return err == nil
}

// Set stores value under key. A zero ttl means no expiry.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := encode(value)
	if err != nil {
		return fmt.Errorf("store: encode %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.connected(ctx)
	if err != nil {
		return err
	}

	if err := b.Set(ctx, s.Key(key), payload, ttl); err != nil {
		metrics.RecordStoreFailure("set")
		return &errors.ConnectivityError{Op: "set", Err: err}
	}
	return nil
}

// CacheSet is a best-effort Set. An empty key or a zero value is not
// written; failures are logged and dropped.
func (s *Store) CacheSet(ctx context.Context, key string, value any, ttl time.Duration) {
	if key == "" || isEmpty(value) {
		return
	}
	if err := s.Set(ctx, key, value, ttl); err != nil {
		s.opts.Logger.WithContext(ctx).WithError(err).Debug("cache write skipped")
	}
}

// Close releases the backend handle. The Store may be reused afterwards;
// the next call dials again.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateDisconnected
	if s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	return err
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	default:
		return rv.IsZero()
	}
}
