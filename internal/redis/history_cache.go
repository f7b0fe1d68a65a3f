package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/elcreado/TiktokTTS-Web/internal/domain"
)

const historyKey = "chat:history"

// HistoryCache keeps the most recent chat messages in a capped Redis list.
// Newest messages sit at the head of the list.
type HistoryCache struct {
	rdb  *redis.Client
	size int
}

// NewHistoryCache creates a cache capped at size entries.
func NewHistoryCache(rdb *redis.Client, size int) *HistoryCache {
	return &HistoryCache{rdb: rdb, size: size}
}

// Push prepends a message and trims the list to the configured size.
func (c *HistoryCache) Push(ctx context.Context, message domain.ChatMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	pipe := c.rdb.Pipeline()
	pipe.LPush(ctx, historyKey, data)
	pipe.LTrim(ctx, historyKey, 0, int64(c.size-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push chat history: %w", err)
	}
	return nil
}

// Recent returns up to limit messages, newest first. Entries that fail to
// decode are skipped.
func (c *HistoryCache) Recent(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	entries, err := c.rdb.LRange(ctx, historyKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	messages := make([]domain.ChatMessage, 0, len(entries))
	for _, entry := range entries {
		var m domain.ChatMessage
		if err := json.Unmarshal([]byte(entry), &m); err != nil {
			slog.Warn("Skipping malformed chat history entry", "error", err)
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// Size returns the configured cache capacity.
func (c *HistoryCache) Size() int {
	return c.size
}
