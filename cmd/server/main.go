package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/enroll/queue-server-go/internal/config"
	"github.com/enroll/queue-server-go/internal/database"
	"github.com/enroll/queue-server-go/internal/handler"
	"github.com/enroll/queue-server-go/internal/jobs"
	"github.com/enroll/queue-server-go/internal/middleware"
	"github.com/enroll/queue-server-go/internal/redis"
	"github.com/enroll/queue-server-go/internal/repository"
	"github.com/enroll/queue-server-go/internal/service"
	"github.com/enroll/queue-server-go/internal/sms"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

	if cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.LogFile).Msg("failed to open log file")
		}
		defer logFile.Close()
		log.Logger = log.Output(zerolog.MultiLevelWriter(
			zerolog.ConsoleWriter{Out: os.Stderr},
			logFile,
		))
	}

	smsCfg := cfg.SMS()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	if err := database.EnsureSchema(ctx, db, smsCfg.Enabled()); err != nil {
		log.Fatal().Err(err).Msg("failed to prepare schema")
	}
	cancel()
	log.Info().Str("driver", cfg.DatabaseDriver).Msg("database connected")

	queueRepo := repository.NewQueueRepository(db.DB)
	settingRepo := repository.NewSettingRepository(db.DB)

	var (
		turns    *service.TurnNotifier
		notifier *jobs.Notifier
	)
	if smsCfg.Enabled() {
		smsClient := sms.NewClient(smsCfg)
		turns = service.NewTurnNotifier(queueRepo, settingRepo, smsClient, smsClient.Sender())

		notifier = jobs.NewNotifier(cfg.NotifyWorkers, cfg.NotifyQueueSize, config.SMSSendTimeout)
		notifier.Start()
		defer notifier.Stop()
		log.Info().Int("workers", cfg.NotifyWorkers).Msg("sms notifications enabled")
	} else {
		log.Warn().Msg("sms notifications disabled: transport not configured")
	}

	var tasks service.TaskSubmitter
	if notifier != nil {
		tasks = notifier
	}
	queueService := service.NewQueueService(queueRepo, settingRepo, turns, tasks, smsCfg.Enabled())

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	var limiter middleware.Limiter
	if redisClient != nil {
		limiter = middleware.NewRedisRateLimiter(redisClient.Client, config.RegisterRateLimitWindow)
		log.Info().Msg("redis connected")
	} else {
		limiter = middleware.NewRateLimiter(config.RegisterRateLimitWindow)
	}
	registerLimit := middleware.NewIPRateLimitMiddleware(limiter, cfg.RegisterRateLimitPerMin, "register")

	adminAuth := middleware.NewAdminAuthMiddleware(cfg.AdminUsername, cfg.AdminPasswordHash, nil)
	if !cfg.AdminAuthEnabled() {
		log.Warn().Msg("admin routes are open: ADMIN_PASSWORD_HASH not set")
	}

	statsJob := jobs.NewQueueStatsJob(queueRepo, config.QueueStatsInterval)
	statsJob.Start()
	defer statsJob.Stop()

	isProduction := os.Getenv("FLY_APP_NAME") != ""

	router := handler.NewRouter(handler.RouterConfig{
		QueueService:  queueService,
		DB:            db,
		StaticDir:     cfg.StaticDir,
		AdminAuth:     adminAuth.Handler,
		RegisterLimit: registerLimit.Handler,
		HSTS:          isProduction,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
