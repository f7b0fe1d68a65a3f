package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/elcreado/TiktokTTS-Web/internal/broadcast"
	"github.com/elcreado/TiktokTTS-Web/internal/config"
	"github.com/elcreado/TiktokTTS-Web/internal/domain"
	apperrors "github.com/elcreado/TiktokTTS-Web/internal/errors"
)

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	supervisor  domain.SupervisorService
	history     domain.HistoryService
	broadcaster *broadcast.Broadcaster
	limits      *ConnectionLimits
	pool        *pgxpool.Pool
	redisClient *goredis.Client
	upgrader    websocket.Upgrader
	startTime   time.Time
}

func NewServer(
	cfg *config.Config,
	supervisor domain.SupervisorService,
	history domain.HistoryService,
	broadcaster *broadcast.Broadcaster,
	pool *pgxpool.Pool,
	redisClient *goredis.Client,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:        e,
		config:      cfg,
		supervisor:  supervisor,
		history:     history,
		broadcaster: broadcaster,
		limits: NewConnectionLimits(
			cfg.WSMaxClients,
			cfg.WSMaxPerIP,
			cfg.WSConnectionsRate,
			cfg.WSConnectionBurst,
		),
		pool:        pool,
		redisClient: redisClient,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The overlay page may be served from anywhere.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		startTime: time.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
