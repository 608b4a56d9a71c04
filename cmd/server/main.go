// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/yudh/internal/auth"
	"github.com/jason-s-yu/yudh/internal/cache"
	"github.com/jason-s-yu/yudh/internal/config"
	"github.com/jason-s-yu/yudh/internal/database"
	"github.com/jason-s-yu/yudh/internal/game"
	"github.com/jason-s-yu/yudh/internal/handlers"
	"github.com/jason-s-yu/yudh/internal/middleware"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	logger := cfg.Logger()

	if err := auth.Init(cfg.TokenExpire); err != nil {
		logger.Fatalf("failed to initialize auth keys: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Accounts, match history and ratings need Postgres; play works without it.
	if dsn := cfg.PostgresDSN(); dsn != "" {
		if err := database.ConnectDB(ctx, dsn); err != nil {
			logger.Fatalf("failed to connect to database: %v", err)
		}
		defer database.Close()
		if err := database.EnsureSchema(ctx); err != nil {
			logger.Fatalf("failed to apply schema: %v", err)
		}
		logger.Info("connected to Postgres")
	} else {
		logger.Warn("Postgres not configured; accounts and match history are disabled")
	}

	opts := game.MatchOptions{Timing: &cfg.Timing}
	if cfg.RedisAddr != "" {
		q, err := cache.NewActionQueue(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.HistorianQueue)
		if err != nil {
			logger.Fatalf("failed to connect to Redis: %v", err)
		}
		defer q.Close()
		opts.Actions = q
		logger.WithField("queue", cfg.HistorianQueue).Info("publishing match actions to Redis")
	}

	ms := handlers.NewMatchServer(logger, opts)
	logged := middleware.LogMiddleware(logger)

	mux := http.NewServeMux()
	mux.Handle("/user/create", logged(http.HandlerFunc(handlers.CreateUserHandler)))
	mux.Handle("/user/login", logged(http.HandlerFunc(handlers.LoginHandler)))
	mux.Handle("/user/claim", logged(http.HandlerFunc(handlers.ClaimGuestHandler)))
	mux.Handle("/match/list", logged(handlers.ListMatchesHandler(ms)))
	mux.Handle("/healthz", handlers.HealthHandler(ms))
	mux.Handle("/ws", logged(handlers.MatchWSHandler(ms)))

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	l, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		logger.Fatalf("failed to listen: %v", err)
	}
	logger.Infof("listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("failed to serve: %v", err)
		}
	case <-ctx.Done():
		logger.Info("terminating")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
}
