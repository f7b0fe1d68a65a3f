package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elcreado/TiktokTTS-Web/internal/domain"
)

func setupTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		url = "redis://localhost:6379/15"
	}

	client, err := NewClient(context.Background(), url)
	if err != nil {
		t.Skipf("redis not available at %s: %v", url, err)
	}
	t.Cleanup(func() {
		_ = client.Del(context.Background(), historyKey).Err()
		_ = client.Close()
	})

	require.NoError(t, client.Del(context.Background(), historyKey).Err())
	return client
}

func TestHistoryCache_PushAndRecent(t *testing.T) {
	client := setupTestClient(t)
	cache := NewHistoryCache(client, 10)
	ctx := context.Background()

	first := domain.NewChatMessage("bob", "first", "alice", time.Now().UTC())
	second := domain.NewChatMessage("carol", "second", "alice", time.Now().UTC())
	require.NoError(t, cache.Push(ctx, first))
	require.NoError(t, cache.Push(ctx, second))

	messages, err := cache.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	// Newest first
	assert.Equal(t, "carol", messages[0].User)
	assert.Equal(t, "bob", messages[1].User)
	assert.Equal(t, first.ID, messages[1].ID)
}

func TestHistoryCache_TrimsToSize(t *testing.T) {
	client := setupTestClient(t)
	cache := NewHistoryCache(client, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		msg := domain.NewChatMessage(fmt.Sprintf("user%d", i), fmt.Sprintf("msg%d", i), "alice", time.Now().UTC())
		require.NoError(t, cache.Push(ctx, msg))
	}

	messages, err := cache.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "user4", messages[0].User)
	assert.Equal(t, "user2", messages[2].User)
}

func TestHistoryCache_RecentRespectsLimit(t *testing.T) {
	client := setupTestClient(t)
	cache := NewHistoryCache(client, 10)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		msg := domain.NewChatMessage(fmt.Sprintf("user%d", i), "hi", "alice", time.Now().UTC())
		require.NoError(t, cache.Push(ctx, msg))
	}

	messages, err := cache.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func TestHistoryCache_SkipsMalformedEntries(t *testing.T) {
	client := setupTestClient(t)
	cache := NewHistoryCache(client, 10)
	ctx := context.Background()

	require.NoError(t, client.LPush(ctx, historyKey, "{not valid json").Err())
	require.NoError(t, cache.Push(ctx, domain.NewChatMessage("bob", "hi", "alice", time.Now().UTC())))

	messages, err := cache.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "bob", messages[0].User)
}

func TestHistoryCache_EmptyList(t *testing.T) {
	client := setupTestClient(t)
	cache := NewHistoryCache(client, 10)

	messages, err := cache.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
