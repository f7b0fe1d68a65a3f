package domain

import "context"

// Broadcaster fans a payload out to every registered WebSocket subscriber.
// Fanout must not block the caller beyond enqueueing.
type Broadcaster interface {
	Fanout(payload any)
}

// ChatSink is the persistence boundary the supervisor writes through.
// Failures are the caller's to log; they must never block fan-out.
type ChatSink interface {
	Save(ctx context.Context, msg ChatMessage) error
}

// ChatRepository is the durable store for chat messages.
type ChatRepository interface {
	Save(ctx context.Context, msg ChatMessage) error
	ListRecent(ctx context.Context, limit int) ([]ChatMessage, error)
}

// HistoryService serves recent chat history, newest first.
type HistoryService interface {
	History(ctx context.Context, limit int) ([]ChatMessage, error)
}

// SupervisorService is the control surface the HTTP gateway drives.
// Connect returns before the upstream confirms liveness; the outcome
// arrives asynchronously as a connection_status broadcast. Disconnect and
// ForceDisconnect never fail observably.
type SupervisorService interface {
	Connect(rawUsername string) error
	Disconnect()
	ForceDisconnect()
	Snapshot() SessionSnapshot
	ToggleTTS() bool
	TTSEnabled() bool
	InjectComment(user, text string)
}
