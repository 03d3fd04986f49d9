// cmd/historian/main.go is an asynchronous historian service that pops finished games
// from the Redis journal and archives them in PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/hungrygod/internal/cache"
	"github.com/jason-s-yu/hungrygod/internal/config"
	"github.com/jason-s-yu/hungrygod/internal/database"
	"github.com/jason-s-yu/hungrygod/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if !cfg.JournalEnabled() {
		logger.Fatal("REDIS_ADDR is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()

	store := database.NewResultStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatalf("database: %v", err)
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	historian.New(rdb, cfg.ResultsQueueName, store, logger).Run(ctx)
	logger.Info("Historian shutdown complete.")
}
