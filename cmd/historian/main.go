// cmd/historian/main.go is the historian service: it pops match actions from the
// Redis queue and persists them to Postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/yudh/internal/cache"
	"github.com/jason-s-yu/yudh/internal/config"
	"github.com/jason-s-yu/yudh/internal/database"
	"github.com/jason-s-yu/yudh/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn := cfg.PostgresDSN()
	if dsn == "" {
		logger.Fatal("historian requires Postgres (PG_HOST, PG_DATABASE)")
	}
	if err := database.ConnectDB(ctx, dsn); err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()
	if err := database.EnsureSchema(ctx); err != nil {
		logger.Fatalf("failed to apply schema: %v", err)
	}

	redisAddr := cfg.RedisAddr
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	q, err := cache.NewActionQueue(ctx, redisAddr, cfg.RedisDB, cfg.HistorianQueue)
	if err != nil {
		logger.Fatalf("failed to connect to Redis: %v", err)
	}
	defer q.Close()

	hs := historian.New(q, historian.DatabaseSink{}, historian.Options{
		BatchSize:  cfg.HistorianBatchSize,
		FlushDelay: cfg.HistorianFlush,
		Inactivity: cfg.MatchInactivity,
		Logger:     logger.WithField("service", "historian"),
	})
	hs.Run(ctx)
	logger.Info("historian shutdown complete")
}
