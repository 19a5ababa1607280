package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/chat-relay/internal/adapter/api"
	"github.com/V4T54L/chat-relay/internal/adapter/api/handler"
	"github.com/V4T54L/chat-relay/internal/adapter/api/middleware"
	"github.com/V4T54L/chat-relay/internal/adapter/metrics"
	"github.com/V4T54L/chat-relay/internal/adapter/notifier"
	"github.com/V4T54L/chat-relay/internal/adapter/phone"
	"github.com/V4T54L/chat-relay/internal/adapter/repository/file"
	"github.com/V4T54L/chat-relay/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/chat-relay/internal/adapter/repository/redis"
	"github.com/V4T54L/chat-relay/internal/adapter/repository/sessionstore"
	"github.com/V4T54L/chat-relay/internal/adapter/transport/wsbridge"
	"github.com/V4T54L/chat-relay/internal/domain"
	"github.com/V4T54L/chat-relay/internal/pkg/config"
	"github.com/V4T54L/chat-relay/internal/pkg/logger"
	"github.com/V4T54L/chat-relay/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	m := metrics.NewRelayMetrics(prometheus.DefaultRegisterer)

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Credential Store ---
	var credRepo domain.CredentialRepository
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			logger.Error("failed to prepare postgres schema", "error", err)
			os.Exit(1)
		}
		credRepo = postgres.NewCredentialRepository(db, logger, cfg.CredentialCacheTTL, m)
		logger.Info("using postgres credential store")
	} else {
		fileRepo, err := file.NewCredentialRepository(cfg.CredentialsFile, logger)
		if err != nil {
			logger.Error("failed to open credential file", "error", err, "path", cfg.CredentialsFile)
			os.Exit(1)
		}
		go func() {
			if err := fileRepo.Watch(ctx); err != nil {
				logger.Warn("credential file watch stopped", "error", err)
			}
		}()
		credRepo = fileRepo
		logger.Info("using file credential store", "path", cfg.CredentialsFile)
	}

	// --- Dispatch Audit Stream (optional) ---
	var audit domain.DispatchBuffer
	var inspector handler.DispatchInspector
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("could not connect to redis, dispatch audit paused until it recovers", "error", err)
		}

		dispatchRepo := redisrepo.NewDispatchRepository(redisClient, logger, cfg.DispatchStream, cfg.DispatchGroup, m)
		go dispatchRepo.StartHealthCheck(ctx, cfg.RedisHealthInterval)
		audit = dispatchRepo

		adminRepo := redisrepo.NewAdminRepository(redisClient, logger)
		inspector = usecase.NewAdminDispatchUseCase(adminRepo, cfg.DispatchStream)
	} else {
		logger.Info("REDIS_ADDR not set, dispatch audit stream disabled")
	}

	// --- Sessions ---
	storage, err := sessionstore.NewSessionStorage(cfg.SessionDataDir, logger)
	if err != nil {
		logger.Error("failed to prepare session storage", "error", err, "dir", cfg.SessionDataDir)
		os.Exit(1)
	}
	dialer, err := wsbridge.NewDialer(cfg.DriverURL, logger)
	if err != nil {
		logger.Error("invalid driver url", "error", err)
		os.Exit(1)
	}

	sseBroker := handler.NewSSEBroker(ctx, logger)
	manager := usecase.NewSessionManager(
		usecase.NewRegistry(),
		dialer,
		storage,
		usecase.SessionManagerConfig{MaxQRAttempts: cfg.QRMaxAttempts, QRWindow: cfg.QRWindow},
		logger,
		usecase.WithNotifier(notifier.NewLogNotifier(logger)),
		usecase.WithPublisher(sseBroker),
		usecase.WithMetrics(m),
	)

	credentials := usecase.NewCredentialService(credRepo, logger)
	tenants := usecase.NewTenantAdmin(credentials, manager, storage, logger)

	normalizer := phone.NewNormalizer(phone.Options{
		CountryCode:    cfg.PhoneCountryCode,
		LocalMinDigits: cfg.PhoneLocalMinDigits,
		LocalMaxDigits: cfg.PhoneLocalMaxDigits,
		MinDigits:      cfg.PhoneMinDigits,
		MaxDigits:      cfg.PhoneMaxDigits,
		ChatIDSuffix:   cfg.ChatIDSuffix,
	})
	gateway := usecase.NewDispatchGateway(manager, normalizer, audit, m, logger)

	if cfg.RestoreSessions {
		if n, err := tenants.RestoreSessions(ctx); err != nil {
			logger.Warn("some sessions could not be restored", "restored", n, "error", err)
		}
	}

	// --- Admin and Metrics Server ---
	adminRouter := api.NewAdminRouter(api.AdminDeps{
		APIKey:        cfg.AdminAPIKey,
		Gatherer:      prometheus.DefaultGatherer,
		Tenants:       tenants,
		Sessions:      manager,
		Events:        sseBroker,
		Dispatches:    inspector,
		DispatchGroup: cfg.DispatchGroup,
	}, logger)
	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: adminRouter,
	}

	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
			stop()
		}
	}()

	// --- Relay Server ---
	limiter := middleware.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow, m, logger)
	go limiter.StartCleanup(ctx)

	// Sends block until the transport answers, so the write timeout follows SEND_TIMEOUT.
	relayServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewRouter(cfg, logger, tenants, manager, gateway, limiter),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.SendTimeout + 5*time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		logger.Info("starting relay server", "addr", relayServer.Addr)
		if err := relayServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("relay server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := relayServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("relay server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}

	manager.Shutdown()
	logger.Info("servers shut down gracefully")
}
