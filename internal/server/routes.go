package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Stream control
	s.echo.GET("/api/status", s.handleStatus)
	s.echo.POST("/api/connect", s.handleConnect)
	s.echo.POST("/api/disconnect", s.handleDisconnect)
	s.echo.POST("/api/force-disconnect", s.handleForceDisconnect)
	s.echo.GET("/api/connection-details", s.handleConnectionDetails)
	s.echo.POST("/api/toggle-tts", s.handleToggleTTS)

	// Chat history
	s.echo.GET("/api/chat-history", s.handleChatHistory)

	// WebSocket fan-out
	s.echo.GET("/api/ws", s.handleWebSocket)
}
