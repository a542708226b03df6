// Package ristretto provides the in-process chat aggregate cache. The cache
// holds per-user snapshots only; every write path invalidates the affected
// users and the TTL bounds staleness if an invalidation is missed.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/peerchat/chat-store/internal/chat/aggregate"
	"github.com/peerchat/chat-store/internal/registry/cache"
)

func init() {
	cache.Register(cache.Plugin{
		Name: "ristretto",
		Loader: func(ctx context.Context) (cache.ChatAggregateCache, error) {
			inner, err := ristretto.NewCache(&ristretto.Config[string, []aggregate.Chat]{
				NumCounters: 10_000,
				MaxCost:     1_000,
				BufferItems: 64,
			})
			if err != nil {
				return nil, err
			}
			return &aggregateCache{inner: inner}, nil
		},
	})
}

type aggregateCache struct {
	inner *ristretto.Cache[string, []aggregate.Chat]
}

func (c *aggregateCache) Available() bool { return true }

func (c *aggregateCache) Get(_ context.Context, userID string) ([]aggregate.Chat, bool) {
	return c.inner.Get(userID)
}

func (c *aggregateCache) Set(_ context.Context, userID string, chats []aggregate.Chat, ttl time.Duration) {
	c.inner.SetWithTTL(userID, chats, 1, ttl)
}

func (c *aggregateCache) Remove(_ context.Context, userID string) {
	c.inner.Del(userID)
	// Del only removes committed entries; wait out the set buffer so a
	// racing Set cannot resurrect the dropped snapshot past the TTL.
	c.inner.Wait()
}

var _ cache.ChatAggregateCache = (*aggregateCache)(nil)
