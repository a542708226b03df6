package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/peerchat/chat-store/internal/chat/aggregate"
)

type aggregateCacheKey struct{}

// WithAggregateCacheContext returns a new context carrying the given
// ChatAggregateCache.
func WithAggregateCacheContext(ctx context.Context, c ChatAggregateCache) context.Context {
	return context.WithValue(ctx, aggregateCacheKey{}, c)
}

// AggregateCacheFromContext retrieves the ChatAggregateCache from the
// context. Returns nil if none was set.
func AggregateCacheFromContext(ctx context.Context) ChatAggregateCache {
	c, _ := ctx.Value(aggregateCacheKey{}).(ChatAggregateCache)
	return c
}

// ChatAggregateCache caches assembled chat aggregates per user. The cache
// holds disposable snapshots only; the store stays the source of truth and
// every write path invalidates the affected users.
type ChatAggregateCache interface {
	Available() bool
	Get(ctx context.Context, userID string) ([]aggregate.Chat, bool)
	Set(ctx context.Context, userID string, chats []aggregate.Chat, ttl time.Duration)
	Remove(ctx context.Context, userID string)
}

// Loader creates a cache from config.
type Loader func(ctx context.Context) (ChatAggregateCache, error)

// Plugin represents a cache plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a cache plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered cache plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named cache plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown cache %q; valid: %v", name, Names())
}
