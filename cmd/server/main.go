// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/hungrygod/internal/auth"
	"github.com/jason-s-yu/hungrygod/internal/cache"
	"github.com/jason-s-yu/hungrygod/internal/config"
	"github.com/jason-s-yu/hungrygod/internal/game"
	"github.com/jason-s-yu/hungrygod/internal/handlers"
	"github.com/jason-s-yu/hungrygod/internal/middleware"
	"github.com/jason-s-yu/hungrygod/internal/reconciler"
	"github.com/jason-s-yu/hungrygod/internal/registry"
	"github.com/jason-s-yu/hungrygod/internal/room"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

var version = "dev"

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	ttl, err := auth.ParseTokenTTL(cfg.TokenExpireTime)
	if err != nil {
		logger.Fatalf("invalid TOKEN_EXPIRE_TIME: %v", err)
	}
	if err := auth.Init(ttl); err != nil {
		logger.Fatalf("auth init: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []game.Option
	if cfg.JournalEnabled() {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		opts = append(opts, game.WithResultRecorder(cache.NewJournal(rdb, cfg.ResultsQueueName)))
		logger.WithField("queue", cfg.ResultsQueueName).Info("journaling game results to redis")
	}

	reg := registry.New()
	lc := room.NewLifecycle(reg, cfg.Settings(), logger)
	hub := handlers.NewHub(logger)
	engine := game.NewEngine(lc, hub, logger, opts...)
	svc := game.NewService(engine, lc, hub, auth.RejoinTokens{}, logger)
	rec := reconciler.New(engine, reg, lc, hub, cfg.ReconcileInterval, logger)

	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(logger)
	mux.Handle("/ws", logged(handlers.RoomWSHandler(logger, svc, hub)))
	mux.Handle("/health", logged(handlers.HealthHandler(version, reg)))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	reconcilerDone := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(reconcilerDone)
	}()

	go func() {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server exited: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	hub.CloseAll(handlers.ServerShutdownError, "server shutting down")
	<-reconcilerDone
	logger.Info("shutdown complete")
}
