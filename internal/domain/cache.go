package domain

import (
	"context"
	"fmt"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetAnalysis retrieves a cached analysis outcome. The key is
	// derived from the document hash via AnalysisCacheKey.
	GetAnalysis(ctx context.Context, tenantID string, key string) (*AnalysisCache, error)

	// SetAnalysis caches an analysis outcome under a key derived from
	// the document hash. Identical text against an unchanged registry
	// snapshot yields an identical result, so hash-keyed caching is
	// sound.
	SetAnalysis(ctx context.Context, tenantID string, key string, data *AnalysisCache, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns new value.
	// Used for per-tenant rate limiting of analysis submissions.
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// AnalysisCacheKey derives the analysis cache key from a document hash
// and the registry snapshot generation. Registry writes advance the
// generation, so results cached before the change are no longer served
// and simply age out.
func AnalysisCacheKey(sha256 string, generation uint64) string {
	return fmt.Sprintf("%s:g%d", sha256, generation)
}

// AnalysisCache holds the cached outcome of a completed screening run.
type AnalysisCache struct {
	AnalysisID  string    `json:"analysisId"`
	Score       int       `json:"score"`
	OverallRisk RiskLevel `json:"overallRisk"`
	Summary     string    `json:"summary"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
