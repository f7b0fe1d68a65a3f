package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"golang.org/x/sync/singleflight"

	"github.com/elcreado/TiktokTTS-Web/internal/domain"
	"github.com/elcreado/TiktokTTS-Web/internal/metrics"
	"github.com/elcreado/TiktokTTS-Web/internal/redis"
)

// ChatLog composes the durable Postgres repository with the Redis recent
// history cache. Writes go through a circuit breaker so a struggling
// database cannot stall the live event path. Reads are deduplicated with
// singleflight.
type ChatLog struct {
	repo    domain.ChatRepository
	cache   *redis.HistoryCache
	breaker circuitbreaker.CircuitBreaker[any]
	group   singleflight.Group
}

var _ domain.ChatSink = (*ChatLog)(nil)
var _ domain.HistoryService = (*ChatLog)(nil)

// NewChatLog creates a chat log. cache may be nil when Redis is not
// configured; history then always comes from the repository.
func NewChatLog(repo domain.ChatRepository, cache *redis.HistoryCache) *ChatLog {
	breaker := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Persistence circuit breaker state changed",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			metrics.PersistenceBreakerState.Set(breakerStateToFloat(e.NewState))
		}).
		Build()

	return &ChatLog{repo: repo, cache: cache, breaker: breaker}
}

func breakerStateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

// Save writes the message to Postgres behind the circuit breaker and
// updates the history cache. The cache update happens even when the
// database write is skipped or fails.
func (l *ChatLog) Save(ctx context.Context, message domain.ChatMessage) error {
	var saveErr error
	if l.breaker.TryAcquirePermit() {
		if err := l.repo.Save(ctx, message); err != nil {
			l.breaker.RecordError(err)
			metrics.PersistenceFailuresTotal.Inc()
			saveErr = fmt.Errorf("database save failed: %w", err)
		} else {
			l.breaker.RecordSuccess()
		}
	} else {
		metrics.PersistenceFailuresTotal.Inc()
		saveErr = fmt.Errorf("database save skipped: %w", circuitbreaker.ErrOpen)
	}

	if l.cache != nil {
		if err := l.cache.Push(ctx, message); err != nil {
			slog.Warn("Failed to update chat history cache", "error", err)
		}
	}

	return saveErr
}

// History returns up to limit recent messages, newest first. Requests that
// fit in the cache are served from Redis; larger requests and cache
// failures fall through to Postgres. Concurrent identical requests share
// one lookup.
func (l *ChatLog) History(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	key := fmt.Sprintf("history:%d", limit)
	result, err, _ := l.group.Do(key, func() (any, error) {
		if l.cache != nil && limit <= l.cache.Size() {
			messages, err := l.cache.Recent(ctx, limit)
			if err == nil {
				return messages, nil
			}
			slog.Warn("Chat history cache read failed, falling back to database", "error", err)
		}
		return l.repo.ListRecent(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.ChatMessage), nil
}

// BreakerState reports the persistence circuit breaker state.
func (l *ChatLog) BreakerState() circuitbreaker.State {
	return l.breaker.State()
}
