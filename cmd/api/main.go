package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/api"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/audit"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/auth"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/cache"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/catalog"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/config"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/database"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/face"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/matching"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/metrics"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/provider"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/ratelimit"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/repository"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/service"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/storage"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/worker"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/ws"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const persistTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting CelebMatch API",
		slog.String("version", version),
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("provider", cfg.ProviderType),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	poolCfg := database.DefaultPoolConfig(cfg.DatabaseURL)
	if cfg.AutoMigrate {
		if err := migrate(poolCfg, logger); err != nil {
			return err
		}
	}

	pool, err := database.NewPgxPool(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	// Catalog and descriptor cache
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	logger.Info("catalog loaded", slog.Int("celebrities", cat.Len()))

	descriptorProvider, err := face.NewDescriptorProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}

	fetcher := catalog.NewFetcher(catalog.FetcherConfig{
		RequestsPerSecond: cfg.FetchRPS,
		Burst:             cfg.FetchBurst,
		MaxBytes:          cfg.FetchMaxBytes,
		Timeout:           cfg.BuildTaskTimeout,
	})

	descriptorCache := matching.NewDescriptorCache(fetcher, matching.BuildOptions{
		Concurrency:  cfg.BuildConcurrency,
		TaskTimeout:  cfg.BuildTaskTimeout,
		BuildTimeout: cfg.BuildTimeout,
	}, logger)

	engine, err := matching.NewEngine(matching.DefaultScoreScale(), cfg.DefaultTopK)
	if err != nil {
		return err
	}

	descriptors := repository.NewCelebrityDescriptorRepository(pool)
	model := provider.FingerprintOf(descriptorProvider)

	var seqOpts []matching.SequencerOption
	switch {
	case cfg.WarmStart && model == "":
		logger.Warn("warm start disabled, provider has no fingerprint")
	case cfg.WarmStart:
		seqOpts = append(seqOpts, matching.WithSeed(seedFrom(descriptors, model)))
	}
	sequencer := matching.NewSequencer(descriptorProvider, descriptorCache, cat, logger, seqOpts...)

	// Observability and push
	metricsManager := metrics.NewManager()

	hub := ws.NewHub()
	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	go hub.Run(hubCtx)

	sequencer.Observe(func(st matching.Status) {
		metricsManager.ObserveSequencer(st)
		hub.Broadcast(ws.EventInitState, st)
	})
	auditTrail := audit.NewSlogLogger(logger)

	descriptorCache.OnBuild(metricsManager.ObserveBuild)
	descriptorCache.OnBuild(audit.BuildObserver(auditTrail))
	descriptorCache.OnPublish(func(snap *matching.Snapshot) {
		metricsManager.ObserveSnapshot(snap)
		hub.Broadcast(ws.EventCachePublished, ws.CachePublished{Version: snap.Version(), Entries: snap.Len()})
	})
	if cfg.PersistDescriptors {
		descriptorCache.OnPublish(repository.NewDescriptorPersister(descriptors, model, persistTimeout, logger).Observe)
	}

	// Services
	matchService := service.NewMatchService(descriptorProvider, engine, sequencer, logger).
		WithRecorder(metricsManager).
		WithNotifier(hub).
		WithShareURL(cfg.PublicBaseURL).
		WithHistory(repository.NewMatchHistoryRepository(pool)).
		WithAudit(auditTrail)

	janitor := worker.NewJanitor(logger, cfg.CleanupInterval)

	memoStore, closeMemo, err := newMemoStore(ctx, cfg, pool)
	if err != nil {
		return err
	}
	defer closeMemo()
	if memoStore != nil {
		matchService.WithMemo(cache.NewDescriptorMemo(memoStore, cfg.MemoTTL, logger))
		if pgStore, ok := memoStore.(*cache.PGStore); ok {
			janitor.Register("cache_entries", pgStore)
		}
	}

	quota := ratelimit.NewQuotaLimiter(pool, time.Hour)
	matchService.WithQuota(quota, cfg.MatchQuotaPerHour)
	janitor.Register("rate_limit_counters", quota)

	if cfg.StorageEnabled() {
		store, err := storage.New(storage.Config{
			Endpoint:  cfg.StorageEndpoint,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			Bucket:    cfg.StorageBucket,
			UseSSL:    cfg.StorageUseSSL,
			PublicURL: cfg.StoragePublicURL,
		})
		if err != nil {
			return fmt.Errorf("failed to create object store: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to prepare bucket: %w", err)
		}
		matchService.WithUploads(store)
	} else {
		logger.Warn("object storage not configured, user photos will not be kept")
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	authService := service.NewAuthService(repository.NewUserRepository(pool), tokens, logger).
		WithAdminEmails(cfg.AdminEmails).
		WithAudit(auditTrail)

	go janitor.Start(ctx)
	defer janitor.Stop()

	// Initialization runs in the background; /ready and /v1/status report progress
	sequencer.Start(ctx)

	// Setup router
	router := api.NewRouter(logger, &api.Dependencies{
		Catalog:           cat,
		Initializer:       sequencer,
		MatchService:      matchService,
		AuthService:       authService,
		Tokens:            tokens,
		Quota:             quota,
		Hub:               hub,
		Metrics:           metricsManager,
		Version:           version,
		DefaultTopK:       cfg.DefaultTopK,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		RequestsPerMinute: cfg.RequestsPerMinute,
		MatchQuotaPerHour: cfg.MatchQuotaPerHour,
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	logger.Info("server stopped")

	return nil
}

func migrate(cfg database.PoolConfig, logger *slog.Logger) error {
	db, err := database.NewPool(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer func() { _ = db.Close() }()

	v, err := database.MigrateUp(db, "celebmatch")
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("database migrated", slog.Uint64("version", uint64(v)))
	return nil
}

// seedFrom restores the descriptors a previous run persisted with the same
// provider fingerprint
func seedFrom(repo *repository.CelebrityDescriptorRepository, model string) matching.SeedFunc {
	return func(ctx context.Context) ([]matching.Entry, error) {
		stored, err := repo.List(ctx, model)
		if err != nil {
			return nil, err
		}
		entries := make([]matching.Entry, 0, len(stored))
		for _, s := range stored {
			entries = append(entries, matching.Entry{CelebrityID: s.Celebrity.ID, Descriptor: s.Descriptor})
		}
		return entries, nil
	}
}
