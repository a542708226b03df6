package ristretto

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerchat/chat-store/internal/chat/aggregate"
	"github.com/peerchat/chat-store/internal/registry/cache"
)

func setupCache(t *testing.T) *aggregateCache {
	t.Helper()
	loader, err := cache.Select("ristretto")
	require.NoError(t, err)
	c, err := loader(context.Background())
	require.NoError(t, err)
	return c.(*aggregateCache)
}

func TestCacheSetAndGet(t *testing.T) {
	c := setupCache(t)
	ctx := context.Background()
	assert.True(t, c.Available())

	chats := []aggregate.Chat{{ID: uuid.New(), CreatedAt: time.Now()}}
	c.Set(ctx, "alice", chats, time.Minute)
	c.inner.Wait()

	got, ok := c.Get(ctx, "alice")
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, chats[0].ID, got[0].ID)

	_, ok = c.Get(ctx, "bob")
	assert.False(t, ok)
}

func TestCacheRemove(t *testing.T) {
	c := setupCache(t)
	ctx := context.Background()

	c.Set(ctx, "alice", []aggregate.Chat{{ID: uuid.New()}}, time.Minute)
	c.inner.Wait()

	c.Remove(ctx, "alice")
	_, ok := c.Get(ctx, "alice")
	assert.False(t, ok)
}
