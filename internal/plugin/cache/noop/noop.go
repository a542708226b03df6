package noop

import (
	"context"
	"time"

	"github.com/peerchat/chat-store/internal/chat/aggregate"
	"github.com/peerchat/chat-store/internal/registry/cache"
)

func init() {
	cache.Register(cache.Plugin{
		Name: "none",
		Loader: func(ctx context.Context) (cache.ChatAggregateCache, error) {
			return &noopAggregateCache{}, nil
		},
	})
}

type noopAggregateCache struct{}

func (n *noopAggregateCache) Available() bool { return false }
func (n *noopAggregateCache) Get(_ context.Context, _ string) ([]aggregate.Chat, bool) {
	return nil, false
}
func (n *noopAggregateCache) Set(_ context.Context, _ string, _ []aggregate.Chat, _ time.Duration) {
}
func (n *noopAggregateCache) Remove(_ context.Context, _ string) {}

var _ cache.ChatAggregateCache = (*noopAggregateCache)(nil)
