package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elcreado/TiktokTTS-Web/internal/domain"
)

type fakeRepo struct {
	mu        sync.Mutex
	saved     []domain.ChatMessage
	saveErr   error
	listed    []domain.ChatMessage
	listCalls int
}

func (r *fakeRepo) Save(_ context.Context, message domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, message)
	return nil
}

func (r *fakeRepo) ListRecent(_ context.Context, limit int) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if limit < len(r.listed) {
		return r.listed[:limit], nil
	}
	return r.listed, nil
}

func TestChatLog_SaveWritesToRepo(t *testing.T) {
	repo := &fakeRepo{}
	log := NewChatLog(repo, nil)

	msg := domain.NewChatMessage("bob", "hello", "alice", time.Now())
	require.NoError(t, log.Save(context.Background(), msg))

	require.Len(t, repo.saved, 1)
	assert.Equal(t, "bob", repo.saved[0].User)
}

func TestChatLog_SaveReturnsRepoError(t *testing.T) {
	repo := &fakeRepo{saveErr: fmt.Errorf("connection refused")}
	log := NewChatLog(repo, nil)

	err := log.Save(context.Background(), domain.NewChatMessage("bob", "hi", "alice", time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestChatLog_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	repo := &fakeRepo{saveErr: fmt.Errorf("db down")}
	log := NewChatLog(repo, nil)

	msg := domain.NewChatMessage("bob", "hi", "alice", time.Now())
	for i := 0; i < 10; i++ {
		_ = log.Save(context.Background(), msg)
	}

	assert.Equal(t, circuitbreaker.OpenState, log.BreakerState())

	err := log.Save(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
}

func TestChatLog_HistoryFallsBackToRepoWithoutCache(t *testing.T) {
	repo := &fakeRepo{listed: []domain.ChatMessage{
		domain.NewChatMessage("bob", "hello", "alice", time.Now()),
	}}
	log := NewChatLog(repo, nil)

	messages, err := log.History(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "bob", messages[0].User)
	assert.Equal(t, 1, repo.listCalls)
}

func TestChatLog_HistoryRespectsLimit(t *testing.T) {
	repo := &fakeRepo{listed: []domain.ChatMessage{
		domain.NewChatMessage("a", "1", "alice", time.Now()),
		domain.NewChatMessage("b", "2", "alice", time.Now()),
		domain.NewChatMessage("c", "3", "alice", time.Now()),
	}}
	log := NewChatLog(repo, nil)

	messages, err := log.History(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}
