// CoachHub backend server
//
// Entry point for the messaging and email sync service. It:
//  1. Loads configuration from the environment (and CONFIG_PATH overlay)
//  2. Connects to PostgreSQL and, when configured, Redis
//  3. Starts the websocket hub, the email sync scheduler and the HTTP API
//  4. Optionally starts the SMTP relay listener
//  5. Shuts everything down on SIGTERM/SIGINT
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/welldanyogia/coachhub-backend/internal/api"
	"github.com/welldanyogia/coachhub-backend/internal/api/middleware"
	"github.com/welldanyogia/coachhub-backend/internal/config"
	"github.com/welldanyogia/coachhub-backend/internal/database"
	"github.com/welldanyogia/coachhub-backend/internal/events"
	"github.com/welldanyogia/coachhub-backend/internal/gmail"
	"github.com/welldanyogia/coachhub-backend/internal/logger"
	"github.com/welldanyogia/coachhub-backend/internal/repository"
	"github.com/welldanyogia/coachhub-backend/internal/services"
	"github.com/welldanyogia/coachhub-backend/internal/smtp"
	"github.com/welldanyogia/coachhub-backend/internal/storage"
	"github.com/welldanyogia/coachhub-backend/internal/synclock"
	"github.com/welldanyogia/coachhub-backend/internal/websocket"
)

const (
	shutdownTimeout       = 15 * time.Second
	rateLimitEvictEvery   = time.Minute
	rateLimitIdleDuration = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithValidation()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(log)
	log.Info("starting CoachHub backend")
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---
	db, err := database.Connect(database.Options{
		URL:             cfg.DatabaseURL,
		AppEnv:          cfg.AppEnv,
		MaxOpenConns:    cfg.DBPool.MaxOpenConns,
		MaxIdleConns:    cfg.DBPool.MaxIdleConns,
		ConnMaxLifetime: cfg.DBPool.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return err
	}

	// --- Redis (optional) ---
	var (
		publisher events.Publisher = events.NewLogPublisher(log)
		locker    synclock.Locker  = synclock.NewLocalLocker()
		redisPing *events.RedisPublisher
	)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()

		redisPublisher := events.NewRedisPublisher(rdb, cfg.EventsQueue, log)
		if err := redisPublisher.Ping(ctx); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("connected to Redis", slog.String("events_queue", cfg.EventsQueue))

		publisher = redisPublisher
		locker = synclock.NewRedisLocker(rdb, cfg.EmailSync.LockTTL, log)
		redisPing = redisPublisher
	}

	// --- Storage ---
	fileStorage, err := storage.NewLocalStorage(cfg.UploadStoragePath)
	if err != nil {
		return err
	}

	// --- Realtime hub ---
	hub := websocket.NewHub(log)
	go hub.Run()

	// --- Repositories ---
	conversationRepo := repository.NewConversationRepository(db)
	directMessageRepo := repository.NewDirectMessageRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)
	accountRepo := repository.NewEmailAccountRepository(db)
	threadRepo := repository.NewEmailThreadRepository(db)
	emailMessageRepo := repository.NewEmailMessageRepository(db)

	// --- Services ---
	if !cfg.GmailConfigured() {
		log.Warn("Google OAuth client is not configured; expired mailbox tokens cannot be refreshed")
	}
	gmailClient := gmail.NewClient(gmail.Config{
		BaseURL:      cfg.GmailAPIBaseURL,
		TokenURL:     cfg.GoogleTokenURL,
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		HTTPClient:   &http.Client{Timeout: cfg.EmailSync.HTTPTimeout},
	})

	messagingService := services.NewMessagingService(
		conversationRepo, directMessageRepo, directoryRepo,
		hub, publisher,
		services.MessagingConfig{SupportChatName: cfg.SupportChatName},
		log,
	)
	emailSyncService := services.NewEmailSyncService(
		accountRepo, threadRepo, emailMessageRepo, directoryRepo,
		gmailClient, locker, hub, publisher,
		services.EmailSyncConfig{
			ListLimit:  cfg.EmailSync.ListLimit,
			FetchLimit: cfg.EmailSync.FetchLimit,
			Lookback:   cfg.EmailSync.Lookback,
			RunTimeout: cfg.EmailSync.RunTimeout,
		},
		log,
	)

	scheduler := services.NewSyncScheduler(emailSyncService, services.SyncSchedulerConfig{
		Interval: cfg.EmailSync.Interval,
	}, log)
	scheduler.Start()
	defer scheduler.Stop()
	if cfg.EmailSync.SyncOnStart {
		scheduler.TriggerNow()
	}

	secLogger := logger.NewSecurityLogger()

	// --- HTTP API ---
	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimitRequests), cfg.RateLimitBurst)
	go limiter.RunEviction(ctx, rateLimitEvictEvery, rateLimitIdleDuration)

	routerCfg := &api.RouterConfig{
		DB:             db,
		Messaging:      messagingService,
		EmailSync:      emailSyncService,
		FileStorage:    fileStorage,
		Hub:            hub,
		Logger:         log,
		SecLogger:      secLogger,
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: middleware.ParseOrigins(cfg.AllowedOrigins, cfg.AppEnv == "production"),
		RateLimiter:    limiter,
	}
	if redisPing != nil {
		routerCfg.Redis = redisPing
	}
	e := api.NewRouter(routerCfg)

	errCh := make(chan error, 2)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		log.Info("HTTP API listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// --- SMTP relay (optional) ---
	var relay interface{ Shutdown(context.Context) error }
	if cfg.SMTPRelayEnabled {
		backend := smtp.NewBackend(&smtp.BackendConfig{
			Accounts:  accountRepo,
			Ingester:  emailSyncService,
			Domain:    cfg.SMTPRelayDomain,
			Logger:    log,
			SecLogger: secLogger,
		})
		server := smtp.NewSecureServer(backend, &smtp.ServerConfig{
			Addr:   fmt.Sprintf(":%d", cfg.SMTPRelayPort),
			Domain: cfg.SMTPRelayDomain,
		})
		relay = server

		go func() {
			log.Info("SMTP relay listening",
				slog.String("addr", server.Addr),
				slog.String("domain", cfg.SMTPRelayDomain))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, gosmtp.ErrServerClosed) {
				errCh <- fmt.Errorf("smtp relay: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.Error("server failed", slog.Any("error", err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP API", slog.Any("error", err))
	}
	if relay != nil {
		if err := relay.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to stop SMTP relay", slog.Any("error", err))
		}
	}

	log.Info("server stopped")
	return nil
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}
