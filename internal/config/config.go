package config

import (
	"context"
	"time"
)

// ListenerConfig holds the network settings for the local HTTP listener.
type ListenerConfig struct {
	Port              int
	ReadHeaderTimeout time.Duration
}

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

const (
	ModeProd    = "prod"
	ModeTesting = "testing"
)

// Config holds all configuration for the chat store.
type Config struct {
	// Mode controls identity behavior: "prod" (default) or "testing".
	Mode string

	// Path of the embedded database file. ":memory:" is accepted in testing.
	DBPath string

	// Datastore backend type.
	DatastoreType string // "sqlite"

	// Run datastore migrations on startup.
	DatastoreMigrateAtStart bool

	// Aggregate cache backend type.
	CacheType string // "ristretto" or "none"

	// TTL for cached chat aggregates. Caches hold disposable snapshots;
	// the TTL bounds how stale a snapshot can get if an invalidation is
	// missed.
	CacheAggregateTTL time.Duration

	// Default page size for message listing.
	MessagePageSize int

	// Maximum accepted HTTP request body.
	MaxBodySize int64

	// Emit an access log line per HTTP request.
	AccessLog bool

	// Logging level: debug, info, warn, error.
	LogLevel string

	// Constant labels added to all Prometheus metrics.
	MetricsLabels string

	Listener ListenerConfig
}

// DefaultConfig returns the configuration defaults. Flags and environment
// variables applied by the CLI commands override these.
func DefaultConfig() Config {
	return Config{
		Mode:                    ModeProd,
		DBPath:                  "chat-store.db",
		DatastoreType:           "sqlite",
		DatastoreMigrateAtStart: true,
		CacheType:               "ristretto",
		CacheAggregateTTL:       30 * time.Second,
		MessagePageSize:         50,
		MaxBodySize:             1024 * 1024,
		AccessLog:               false,
		LogLevel:                "info",
		Listener: ListenerConfig{
			Port:              8080,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}
