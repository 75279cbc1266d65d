package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/access"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/cache"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/config"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/database"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/handlers"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/jobs"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/log"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/notify"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/ratelimit"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/repository"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/security"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/server"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	var closers []func()

	var (
		store  service.AccountStore
		checks []handlers.HealthCheck
		purger *repository.AccountRepository
	)
	if cfg.Postgres.DSN != "" {
		dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}
		closers = append(closers, dbPool.Close)
		if err := database.EnsureSchema(ctx, dbPool); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure schema")
		}
		purger = repository.NewAccountRepository(dbPool)
		store = purger
		checks = append(checks, handlers.HealthCheck{Name: "postgres", Ping: dbPool.Ping})
	} else {
		logger.Warn().Msg("postgres.dsn empty, accounts are kept in memory and lost on restart")
		store = repository.NewMemoryStore()
	}

	// Untyped nil when disabled so the limiter and notifier see no client.
	var redisClient redis.UniversalClient
	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				logger.Error().Err(err).Msg("redis close error")
			}
		})
		redisClient = client
		checks = append(checks, handlers.HealthCheck{Name: "redis", Ping: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	} else {
		logger.Warn().Msg("redis.addr empty, attempt limits disabled")
	}

	matrix, overrides, err := access.LoadMatrix(cfg.Access.RolesFile, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid permission overrides")
	}
	resolver := access.NewResolver(matrix, overrides, access.LoadAllowlist(cfg.Access.AdminFiles, logger))

	secret := cfg.Security.SessionSecret
	if secret == "" {
		secret, err = security.NewSigningKey()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to generate signing key")
		}
		logger.Warn().Msg("security.sessionsecret empty, using a per-process key; sessions end on restart")
	}

	hasher := security.NewPasswordHasher(argon2Params(cfg.Security.Argon2), cfg.Security.MaxPasswordBytes)
	tokens := security.NewSessionTokens(secret, cfg.Security.SessionTTL)
	codeNotifier, resetNotifier := buildNotifiers(cfg, redisClient, logger)
	limiter := ratelimit.New(redisClient, ratelimit.Config{Rules: map[ratelimit.Scope]ratelimit.Rule{
		ratelimit.ScopeLogin:         rule(cfg.RateLimit.Login),
		ratelimit.ScopeTwoFactor:     rule(cfg.RateLimit.TwoFactor),
		ratelimit.ScopePasswordReset: rule(cfg.RateLimit.PasswordReset),
	}})

	authService := service.NewAuthService(
		store,
		hasher,
		tokens,
		resolver,
		service.NewTwoFactorManager(store, codeNotifier, cfg.Security.TwoFactorTTL, cfg.Security.TwoFactorDigits, logger),
		service.NewResetManager(store, resetNotifier, cfg.Security.ResetTTL, cfg.URLs.APIBase, logger),
		limiter,
		logger,
	)
	adminService := service.NewAdminService(store, resolver, logger)

	handlerSet := handlers.NewHandlerSet(logger, cfg.Environment, authService, adminService, checks...)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled && redisClient != nil && purger != nil {
		scheduler = jobs.NewScheduler(redisClient, cfg.Queue.Stream, logger)
		if err := scheduler.Start(cfg.Jobs.PurgeSchedule); err != nil {
			logger.Error().Err(err).Msg("scheduler start failed")
			scheduler = nil
		}
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, closers)
}

// buildNotifiers returns the notifier for 2FA codes and the one for reset
// links. Codes go through the worker when asynchronous delivery is on and a
// stream is available. Reset links are always sent inline, because a failed
// delivery has to reach the caller as ErrDeliveryFailed.
func buildNotifiers(cfg *config.AppConfig, client redis.UniversalClient, logger zerolog.Logger) (codes, resets notify.Notifier) {
	smtp := notify.NewSMTPNotifier(cfg.Mail, logger)
	if !smtp.Configured() {
		logger.Warn().Msg("smtp not configured, codes and reset links will not be delivered")
	}

	if cfg.Mail.Async {
		if client != nil {
			return notify.NewStreamNotifier(client, cfg.Queue.Stream, logger), smtp
		}
		logger.Warn().Msg("mail.async set without redis, sending codes inline")
	}
	return smtp, smtp
}

func argon2Params(c config.Argon2Config) security.Argon2Params {
	return security.Argon2Params{
		Time:    c.Time,
		Memory:  c.MemoryKiB,
		Threads: c.Threads,
		KeyLen:  c.KeyLength,
		SaltLen: c.SaltLength,
	}
}

func rule(r config.RateLimitRule) ratelimit.Rule {
	return ratelimit.Rule{MaxAttempts: r.MaxAttempts, Window: r.Window}
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, closers []func()) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	if scheduler != nil {
		scheduler.Stop()
	}

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}

	logger.Info().Msg("server exited cleanly")
}
