package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/chat-relay/internal/adapter/metrics"
	"github.com/V4T54L/chat-relay/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/chat-relay/internal/adapter/repository/redis"
	"github.com/V4T54L/chat-relay/internal/pkg/config"
	"github.com/V4T54L/chat-relay/internal/pkg/logger"
	"github.com/V4T54L/chat-relay/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting dispatch archiver")

	if cfg.RedisAddr == "" || cfg.PostgresURL == "" {
		log.Error("the archiver needs both REDIS_ADDR and POSTGRES_URL")
		os.Exit(1)
	}

	// Create a context that we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stopChan
		log.Info("shutdown signal received, stopping archiver...")
		cancel()
	}()

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to redis")

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Error("failed to prepare postgres schema", "error", err)
		os.Exit(1)
	}
	log.Info("connected to postgres")

	// Create a unique consumer name for this instance
	consumerName, err := os.Hostname()
	if err != nil {
		log.Warn("could not get hostname for consumer name, using default", "error", err)
		consumerName = "archiver-default"
	}

	m := metrics.NewRelayMetrics(prometheus.DefaultRegisterer)

	// Instantiate repositories
	dispatchRepo := redisrepo.NewDispatchRepository(redisClient, log, cfg.DispatchStream, cfg.DispatchGroup, m)
	archiveRepo := postgres.NewDispatchArchiveRepository(db, log)

	// Instantiate the use case
	archiver := usecase.NewArchiveDispatchUseCase(
		dispatchRepo, archiveRepo, m, log,
		cfg.DispatchGroup, consumerName,
		cfg.ArchiveRetryCount, cfg.ArchiveRetryBackoff,
	)

	log.Info("archiver started", "stream", cfg.DispatchStream, "group", cfg.DispatchGroup, "consumer", consumerName)
	archiver.Run(ctx, cfg.ArchiveInterval)

	log.Info("dispatch archiver shut down gracefully")
}
