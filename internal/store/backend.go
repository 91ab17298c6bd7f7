package store

import (
	"context"
	"time"
)

// Backend is a raw key-value connection. Get returns (nil, nil) for a key
// that does not exist.
type Backend interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Dialer opens a new Backend connection.
type Dialer func(ctx context.Context) (Backend, error)
