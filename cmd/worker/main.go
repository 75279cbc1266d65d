package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/cache"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/config"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/database"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/log"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/notify"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/queue"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/repository"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level).With().Str("component", "worker").Logger()
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Redis.Addr == "" {
		logger.Fatal().Msg("redis.addr is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	// Untyped nil keeps purge tasks a logged no-op without a database.
	var purger tasks.Purger
	if cfg.Postgres.DSN != "" {
		dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}
		defer dbPool.Close()
		purger = repository.NewAccountRepository(dbPool)
	} else {
		logger.Warn().Msg("postgres.dsn empty, purge tasks will be skipped")
	}

	smtp := notify.NewSMTPNotifier(cfg.Mail, logger)
	if !smtp.Configured() {
		logger.Warn().Msg("smtp not configured, notify tasks will not be delivered")
	}

	processor := tasks.NewProcessor(smtp, purger, logger)
	consumer := queue.NewConsumer(
		client,
		cfg.Queue.Stream,
		cfg.Queue.Group,
		cfg.Queue.Consumer,
		cfg.Queue.ClaimInterval,
		logger,
		processor,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	logger.Info().Str("stream", cfg.Queue.Stream).Str("consumer", cfg.Queue.Consumer).Msg("worker started")
	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
