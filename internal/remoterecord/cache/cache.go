// Package cache keeps fetched payloads between handler instances.
//
// Handlers memoize per instance only. Wrapping a handler type's retriever
// with Wrap lets independent references to the same remote record share one
// fetch, either in process (MemoryCache) or across processes (RedisCache).
package cache

import (
	"context"
	"errors"
	"time"
)

// Cache is a byte store with per-entry expiry
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Config holds settings common to all backends
type Config struct {
	// DefaultTTL applies when Set is called with a zero ttl
	DefaultTTL time.Duration
	// Prefix is prepended to every key
	Prefix string
}

// DefaultConfig returns the default backend settings
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 5 * time.Minute,
		Prefix:     "remoterecord:",
	}
}

// ErrCacheMiss is returned when a key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// IsCacheMiss reports whether err is a miss
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

func ttlOrDefault(ttl time.Duration, cfg Config) time.Duration {
	if ttl == 0 {
		return cfg.DefaultTTL
	}
	return ttl
}
