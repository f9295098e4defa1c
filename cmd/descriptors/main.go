package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/catalog"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/config"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/database"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/face"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/matching"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/provider"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/repository"
)

// descriptors builds the celebrity descriptor cache once with the configured
// provider and exports it as JSON, optionally storing it for warm starts.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	out := flag.String("out", "descriptors.json", "Output file, - for stdout")
	persist := flag.Bool("persist", false, "Also replace the descriptors stored in Postgres")
	catalogPath := flag.String("catalog", "", "Catalog YAML (default: CATALOG_PATH or the built-in dataset)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	// Logs go to stderr so -out - stays clean
	logger := config.NewLoggerTo(cfg.Environment, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := cfg.CatalogPath
	if *catalogPath != "" {
		path = *catalogPath
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return err
	}

	p, err := face.NewDescriptorProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := p.Initialize(ctx); err != nil {
		return fmt.Errorf("provider initialize: %w", err)
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

	report, err := descriptorCache.Build(ctx, cat.Records(), p)
	if err != nil {
		return fmt.Errorf("build descriptors: %w", err)
	}
	for _, f := range report.Failures {
		logger.Warn("celebrity skipped",
			slog.String("celebrity_id", f.CelebrityID),
			slog.String("reason", string(f.Reason)),
		)
	}
	logger.Info("descriptors built",
		slog.Int("succeeded", report.Succeeded),
		slog.Int("total", report.Total),
		slog.Duration("duration", report.Duration),
	)

	snap := descriptorCache.Snapshot()

	if err := writeExport(*out, snap); err != nil {
		return err
	}

	if *persist {
		if err := persistSnapshot(ctx, cfg.DatabaseURL, provider.FingerprintOf(p), snap); err != nil {
			return err
		}
		logger.Info("descriptors persisted", slog.Uint64("version", snap.Version()))
	}

	return nil
}

func writeExport(path string, snap *matching.Snapshot) (err error) {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}
	if err := matching.WriteExport(w, snap); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

func persistSnapshot(ctx context.Context, dsn, model string, snap *matching.Snapshot) error {
	pool, err := database.NewPgxPool(ctx, database.DefaultPoolConfig(dsn))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	persister := repository.NewDescriptorPersister(repository.NewCelebrityDescriptorRepository(pool), model, 0, nil)
	_, err = persister.Persist(ctx, snap)
	return err
}
