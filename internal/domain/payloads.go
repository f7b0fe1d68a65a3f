package domain

import "time"

// WebSocket frame types.
const (
	FrameConnectionStatus = "connection_status"
	FrameChatMessage      = "chat_message"
	FrameTTSStatus        = "tts_status"
	FrameViewerCount      = "viewer_count"
)

// ConnectionStatusPayload is broadcast whenever the supervisor's connection
// state changes. Error carries the classified failure message, if any.
type ConnectionStatusPayload struct {
	Type      string `json:"type"`
	Connected bool   `json:"connected"`
	Username  string `json:"username,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ChatMessagePayload is the outbound frame for one accepted comment.
type ChatMessagePayload struct {
	Type       string `json:"type"`
	User       string `json:"user"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
	TTSEnabled bool   `json:"tts_enabled"`
}

// TTSStatusPayload is broadcast when the process-wide TTS flag flips.
type TTSStatusPayload struct {
	Type      string `json:"type"`
	Enabled   bool   `json:"enabled"`
	Timestamp string `json:"timestamp"`
}

// ViewerCountPayload is broadcast on upstream viewer-count updates.
type ViewerCountPayload struct {
	Type      string `json:"type"`
	Count     int    `json:"count"`
	Timestamp string `json:"timestamp"`
}

// AsPayload converts a ChatMessage into its outbound WebSocket frame.
func (m ChatMessage) AsPayload(ttsEnabled bool) ChatMessagePayload {
	return ChatMessagePayload{
		Type:       FrameChatMessage,
		User:       m.User,
		Message:    m.Message,
		Timestamp:  m.ReceivedAt.Format(time.RFC3339),
		TTSEnabled: ttsEnabled,
	}
}
