package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/elcreado/TiktokTTS-Web/internal/app"
	"github.com/elcreado/TiktokTTS-Web/internal/broadcast"
	"github.com/elcreado/TiktokTTS-Web/internal/config"
	"github.com/elcreado/TiktokTTS-Web/internal/database"
	"github.com/elcreado/TiktokTTS-Web/internal/logging"
	"github.com/elcreado/TiktokTTS-Web/internal/redis"
	"github.com/elcreado/TiktokTTS-Web/internal/server"
	"github.com/elcreado/TiktokTTS-Web/internal/supervisor"
	"github.com/elcreado/TiktokTTS-Web/internal/upstream"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config) *goredis.Client {
	if cfg.RedisURL == "" {
		slog.Info("Redis not configured, chat history served from database only")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, sup *supervisor.Supervisor, broadcaster *broadcast.Broadcaster) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		sup.Disconnect()
		broadcaster.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(cfg)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	chatRepo := database.NewChatRepo(pool)
	var historyCache *redis.HistoryCache
	if redisClient != nil {
		historyCache = redis.NewHistoryCache(redisClient, cfg.HistoryCacheSize)
	}
	chatLog := app.NewChatLog(chatRepo, historyCache)

	broadcaster := broadcast.NewBroadcaster(clock, 0)

	factory := upstream.Factory(cfg.UpstreamBridgeURL, cfg.UpstreamAPIKey)
	sup := supervisor.New(factory, broadcaster, chatLog, clock)

	srv := server.NewServer(cfg, sup, chatLog, broadcaster, pool, redisClient)

	done := runGracefulShutdown(srv, sup, broadcaster)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
