// Package main runs the background worker that processes billing webhook
// events and chat usage rollups from the Redis job queue.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atriumhq/console/config"
	"github.com/atriumhq/console/internal/auth"
	"github.com/atriumhq/console/internal/billing"
	"github.com/atriumhq/console/internal/chat"
	"github.com/atriumhq/console/internal/realtime"
	"github.com/atriumhq/console/internal/worker"
	"github.com/atriumhq/console/pkg/database"
	"github.com/atriumhq/console/pkg/queue"
	"github.com/atriumhq/console/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)
	notifier := realtime.NewRedisPubSub(rdb.Client, logger)

	processor := worker.NewProcessor(
		auth.NewRepository(pool),
		billing.NewRepository(pool),
		chat.NewRepository(pool),
		jobQueue,
		notifier,
		logger,
	)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutdown signal received")
		cancel()
	}()

	logger.Info("worker started")
	processor.Run(ctx)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
