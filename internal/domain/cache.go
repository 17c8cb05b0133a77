package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations. It holds weather
// snapshots for the session and submission counters; it is injected rather
// than held as a process-wide singleton so tests and callers own its
// lifecycle.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetSnapshot retrieves a cached weather snapshot for a region.
	GetSnapshot(ctx context.Context, region string) (*WeatherSnapshot, error)

	// SetSnapshot caches a weather snapshot for a region.
	SetSnapshot(ctx context.Context, region string, snapshot *WeatherSnapshot, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns new value.
	// Used for per-farmer submission throttling.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
