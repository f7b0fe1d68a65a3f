package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/elcreado/TiktokTTS-Web/internal/domain"
	apperrors "github.com/elcreado/TiktokTTS-Web/internal/errors"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

func (s *Server) handleStatus(c echo.Context) error {
	snapshot := s.supervisor.Snapshot()
	return c.JSON(http.StatusOK, map[string]any{
		"connected":   snapshot.Connected,
		"username":    snapshot.Username,
		"tts_enabled": snapshot.TTSEnabled,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleConnect(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
	}
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	if err := s.supervisor.Connect(req.Username); err != nil {
		if errors.Is(err, domain.ErrEmptyUsername) {
			return apperrors.ValidationError("username must not be empty")
		}
		return apperrors.InternalError("failed to initiate connection", err)
	}

	snapshot := s.supervisor.Snapshot()
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Connecting to @" + snapshot.Username,
	})
}

func (s *Server) handleDisconnect(c echo.Context) error {
	s.supervisor.Disconnect()
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Disconnected",
	})
}

func (s *Server) handleForceDisconnect(c echo.Context) error {
	s.supervisor.ForceDisconnect()
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Force disconnected",
	})
}

func (s *Server) handleConnectionDetails(c echo.Context) error {
	return c.JSON(http.StatusOK, s.supervisor.Snapshot())
}

func (s *Server) handleToggleTTS(c echo.Context) error {
	enabled := s.supervisor.ToggleTTS()
	return c.JSON(http.StatusOK, map[string]any{"tts_enabled": enabled})
}

func (s *Server) handleChatHistory(c echo.Context) error {
	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return apperrors.ValidationError("limit must be an integer").WithField("limit", raw)
		}
		limit = parsed
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	messages, err := s.history.History(c.Request().Context(), limit)
	if err != nil {
		return apperrors.InternalError("failed to load chat history", err)
	}

	items := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		items = append(items, map[string]any{
			"id":        m.ID,
			"user":      m.User,
			"message":   m.Message,
			"timestamp": m.ReceivedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": items})
}
