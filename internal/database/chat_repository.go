package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elcreado/TiktokTTS-Web/internal/domain"
)

// ChatRepo persists chat messages in Postgres.
type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

func (r *ChatRepo) Save(ctx context.Context, message domain.ChatMessage) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_messages (id, stream_user, username, message, received_at)
		VALUES ($1, $2, $3, $4, $5)
	`, message.ID, message.StreamUser, message.User, message.Message, message.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

// ListRecent returns up to limit messages, newest first.
func (r *ChatRepo) ListRecent(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, stream_user, username, message, received_at
		FROM chat_messages
		ORDER BY received_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ChatMessage, error) {
		var m domain.ChatMessage
		err := row.Scan(&m.ID, &m.StreamUser, &m.User, &m.Message, &m.ReceivedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan chat messages: %w", err)
	}
	return messages, nil
}
