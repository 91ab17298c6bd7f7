package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig addresses one Redis database.
type RedisConfig struct {
	Host        string
	Port        int
	DB          int
	Password    string
	DialTimeout time.Duration
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type redisBackend struct {
	client *redis.Client
}

// RedisDialer returns a Dialer that opens go-redis clients for cfg. The
// client connects lazily, so an unreachable server surfaces on Ping.
func RedisDialer(cfg RedisConfig) Dialer {
	return func(ctx context.Context) (Backend, error) {
		if cfg.Host == "" {
			return nil, fmt.Errorf("redis: empty host")
		}
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Addr(),
			DB:           cfg.DB,
			Password:     cfg.Password,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.DialTimeout,
			WriteTimeout: cfg.DialTimeout,
			MaxRetries:   -1,
		})
		return &redisBackend{client: client}, nil
	}
}

func (b *redisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *redisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (b *redisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

func (b *redisBackend) Close() error {
	return b.client.Close()
}
