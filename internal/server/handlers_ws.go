package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/elcreado/TiktokTTS-Web/internal/metrics"
)

// clientFrame is the only inbound message clients may send.
type clientFrame struct {
	Type    string `json:"type"`
	User    string `json:"user"`
	Message string `json:"message"`
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	allowed, reason := s.limits.Acquire(ip)
	if !allowed {
		metrics.WebSocketConnectionsRejectedTotal.WithLabelValues(string(reason)).Inc()
		slog.Warn("WebSocket connection rejected", "ip", ip, "reason", reason)
		return echo.NewHTTPError(http.StatusTooManyRequests, "connection limit exceeded")
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.limits.Release(ip)
		slog.Warn("WebSocket upgrade failed", "ip", ip, "error", err)
		return nil
	}

	if err := s.broadcaster.Register(conn); err != nil {
		s.limits.Release(ip)
		_ = conn.Close()
		slog.Warn("WebSocket registration failed", "ip", ip, "error", err)
		return nil
	}

	defer func() {
		s.broadcaster.Unregister(conn)
		s.limits.Release(ip)
	}()

	// Clients are read-only except for pongs and test message injection.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if frame.Type != "test_message" {
			continue
		}

		user := frame.User
		if user == "" {
			user = "TestUser"
		}
		message := frame.Message
		if message == "" {
			message = "Test message"
		}
		s.supervisor.InjectComment(user, message)
	}
}
