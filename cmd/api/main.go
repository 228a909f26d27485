package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/vidcache/internal/api/handler"
	"github.com/hszk-dev/vidcache/internal/api/middleware"
	"github.com/hszk-dev/vidcache/internal/config"
	"github.com/hszk-dev/vidcache/internal/domain/repository"
	"github.com/hszk-dev/vidcache/internal/infrastructure/cache"
	"github.com/hszk-dev/vidcache/internal/infrastructure/postgres"
	"github.com/hszk-dev/vidcache/internal/infrastructure/queue"
	"github.com/hszk-dev/vidcache/internal/infrastructure/sqlite"
	"github.com/hszk-dev/vidcache/internal/infrastructure/storage"
	"github.com/hszk-dev/vidcache/internal/media"
	"github.com/hszk-dev/vidcache/internal/usecase"
	"github.com/hszk-dev/vidcache/internal/videocache"
)

const healthCheckTimeout = 2 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Ensure temp directory exists
	if err := os.MkdirAll(cfg.Media.TempDir, 0755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	checks := make(map[string]handler.Check)

	// Object storage backs uploads and, optionally, the cache state
	var storageClient *storage.Client
	if cfg.MinIO.Enabled {
		storageClient, err = storage.NewClient(ctx, storage.ClientConfig{
			Endpoint:       cfg.MinIO.Endpoint,
			PublicEndpoint: cfg.MinIO.PublicEndpoint,
			AccessKey:      cfg.MinIO.AccessKey,
			SecretKey:      cfg.MinIO.SecretKey,
			Bucket:         cfg.MinIO.Bucket,
			UseSSL:         cfg.MinIO.UseSSL,
			CreateBucket:   cfg.MinIO.CreateBucket,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to MinIO: %w", err)
		}
		checks["minio"] = storageClient.Ping
		logger.Info("connected to MinIO", slog.String("bucket", storageClient.Bucket()))
	}

	store, closeStore, err := openStateStore(ctx, cfg, storageClient, checks, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var events repository.EventPublisher
	if cfg.RabbitMQ.Enabled {
		queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer queueClient.Close()
		events = queueClient
		logger.Info("connected to RabbitMQ")
	}

	// Initialize the cache
	decoder := media.NewFFmpegDecoder(media.FFmpegConfig{
		FFmpegPath:  cfg.Media.FFmpegPath,
		FFprobePath: cfg.Media.FFprobePath,
	})

	opts := []videocache.Option{videocache.WithLogger(logger)}
	if cfg.Media.PreviewEnabled {
		previewCfg := media.DefaultPreviewConfig()
		previewCfg.FFmpegPath = cfg.Media.FFmpegPath
		opts = append(opts, videocache.WithPreviewGenerator(media.NewFFmpegPreviewGenerator(previewCfg)))
	}

	cacheCfg := videocache.DefaultConfig()
	cacheCfg.MaxEntries = cfg.Cache.MaxEntries
	cacheCfg.MaxBytes = cfg.Cache.MaxBytes
	cacheCfg.Expiry = cfg.Cache.Expiry
	cacheCfg.StateKey = cfg.Cache.StateKey
	cacheCfg.TempDir = cfg.Media.TempDir

	videoCache, err := videocache.New(ctx, cacheCfg, store, decoder, opts...)
	if err != nil {
		return fmt.Errorf("failed to create video cache: %w", err)
	}
	logger.Info("video cache ready",
		slog.String("backend", cfg.Cache.Backend),
		slog.Int("entries", videoCache.Stats().Entries),
	)

	if cfg.Cache.CleanupInterval > 0 {
		go videoCache.RunJanitor(ctx, cfg.Cache.CleanupInterval)
	}

	var uploadSvc usecase.UploadService
	if storageClient != nil {
		uploadSvc = usecase.NewUploadService(videoCache, storageClient, events, usecase.UploadServiceConfig{
			DownloadURLExpiry: cfg.Upload.DownloadURLExpiry,
		})
	}

	r := setupRouter(logger,
		handler.NewCacheHandler(videoCache, uploadSvc, cfg.Server.MaxUploadBytes),
		handler.NewHealthHandler(checks, healthCheckTimeout),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	// Stop the janitor before draining requests
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// openStateStore connects the configured state backend and registers its health check.
func openStateStore(
	ctx context.Context,
	cfg *config.Config,
	storageClient *storage.Client,
	checks map[string]handler.Check,
	logger *slog.Logger,
) (repository.StateStore, func(), error) {
	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		store, err := sqlite.NewStateStore(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open SQLite state store: %w", err)
		}
		checks["state"] = store.Ping
		logger.Info("opened SQLite state store", slog.String("path", cfg.SQLite.Path))
		return store, func() { _ = store.Close() }, nil

	case config.BackendRedis:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		checks["state"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		logger.Info("connected to Redis")
		return cache.NewRedisStateStore(redisClient), func() { _ = redisClient.Close() }, nil

	case config.BackendPostgres:
		pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		repo := postgres.NewStateRepository(pgClient.Pool())
		if err := repo.EnsureSchema(ctx); err != nil {
			pgClient.Close()
			return nil, nil, fmt.Errorf("failed to prepare PostgreSQL schema: %w", err)
		}
		checks["state"] = pgClient.Ping
		logger.Info("connected to PostgreSQL")
		return repo, pgClient.Close, nil

	case config.BackendMinIO:
		if storageClient == nil {
			return nil, nil, fmt.Errorf("cache backend %q requires MinIO", config.BackendMinIO)
		}
		return storage.NewStateObjectStore(storageClient), func() {}, nil

	case config.BackendMemory:
		logger.Warn("using in-memory state store, cache will not survive restarts")
		return cache.NewMemoryStateStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

func setupRouter(logger *slog.Logger, cacheHandler *handler.CacheHandler, healthHandler *handler.HealthHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", cacheHandler.Register)

	return r
}
