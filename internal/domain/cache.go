package domain

import (
	"context"
	"time"
)

// Cache defines the interface for the audit read-model cache.
// Supports two-phase caching: local LRU + Redis for distributed mode.
// All methods require tenantID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetAudit retrieves a cached audit by measurement ID.
	GetAudit(ctx context.Context, tenantID string, measurementID string) (*Audit, error)

	// SetAudit caches the audit read model for a measurement.
	SetAudit(ctx context.Context, tenantID string, measurementID string, audit *Audit, ttl time.Duration) error

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

	// Redis settings (distributed mode)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
