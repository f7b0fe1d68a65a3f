package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel values substituted when an upstream comment arrives with
// missing fields. Extraction never fails; it degrades to these.
const (
	AnonymousUser = "anonymous"
	EmptyMessage  = "empty message"
)

var (
	// ErrEmptyUsername is returned by Connect when the username is empty
	// after normalization. The only supervisor error surfaced synchronously.
	ErrEmptyUsername = errors.New("username is empty")

	// ErrUserOffline means the target account exists but is not live.
	ErrUserOffline = errors.New("upstream user is not live")

	// ErrUserNotFound means the target account could not be resolved.
	ErrUserNotFound = errors.New("upstream user not found")
)

// ChatMessage is the immutable record created for every accepted comment.
// Consumers (broadcaster, persistence) never mutate it.
type ChatMessage struct {
	ID         uuid.UUID `json:"id"`
	User       string    `json:"user"`
	Message    string    `json:"message"`
	StreamUser string    `json:"stream_user"`
	ReceivedAt time.Time `json:"received_at"`
}

// NewChatMessage builds a ChatMessage, substituting sentinel values for
// missing user or text.
func NewChatMessage(user, message, streamUser string, receivedAt time.Time) ChatMessage {
	if user == "" {
		user = AnonymousUser
	}
	if message == "" {
		message = EmptyMessage
	}
	return ChatMessage{
		ID:         uuid.New(),
		User:       user,
		Message:    message,
		StreamUser: streamUser,
		ReceivedAt: receivedAt,
	}
}

// SessionSnapshot is the diagnostic view of the supervisor session,
// served by GET /api/connection-details.
type SessionSnapshot struct {
	State           string `json:"state"`
	Connected       bool   `json:"connected"`
	Username        string `json:"username"`
	Generation      uint64 `json:"generation"`
	HasClient       bool   `json:"has_client"`
	AcceptingEvents bool   `json:"accepting_events"`
	TTSEnabled      bool   `json:"tts_enabled"`
}
