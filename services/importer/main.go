package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/02loveslollipop/prix-carburants/internal/pgconn"
	"github.com/02loveslollipop/prix-carburants/services/importer/internal/brands"
	"github.com/02loveslollipop/prix-carburants/services/importer/internal/config"
	"github.com/02loveslollipop/prix-carburants/services/importer/internal/db"
	"github.com/02loveslollipop/prix-carburants/services/importer/internal/feed"
	"github.com/02loveslollipop/prix-carburants/services/importer/internal/models"
)

const (
	exitFailure = 1
	exitStale   = 3
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("importer failed", zap.Error(err))
		_ = logger.Sync()
		if errors.Is(err, db.ErrStaleImport) {
			os.Exit(exitStale)
		}
		os.Exit(exitFailure)
	}
	_ = logger.Sync()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	logger = logger.With(zap.String("run_id", uuid.NewString()))
	runTS := time.Now().UTC()

	if cfg.SkipFetch {
		logger.Info("skipping feed download", zap.String("xml", cfg.XMLPath))
	} else {
		client := &http.Client{Timeout: cfg.FetchTimeout}
		res, err := feed.Fetch(ctx, client, cfg.FeedURL, cfg.XMLPath, cfg.ArchiveDir, runTS)
		if err != nil {
			return err
		}
		logger.Info("feed downloaded",
			zap.String("xml", res.XMLPath),
			zap.String("archive", res.ArchivePath),
			zap.Int64("bytes", res.Bytes))
	}

	if info, err := os.Stat(cfg.XMLPath); err == nil {
		logger.Info("parsing feed", zap.String("xml", cfg.XMLPath), zap.Time("mtime", info.ModTime().UTC()))
	}
	stations, err := feed.ParseFile(cfg.XMLPath)
	if err != nil {
		return err
	}
	logger.Info("stations parsed", zap.Int("stations", len(stations)))

	dsn, err := cfg.Database.DSN()
	if err != nil {
		return err
	}
	pool, err := pgconn.Open(ctx, dsn, int32(max(4, cfg.Enrich.Workers/3)))
	if err != nil {
		return err
	}
	store := db.New(pool)
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	stats, err := store.ImportDay(ctx, stations, runTS)
	if err != nil {
		return err
	}
	logger.Info("import committed",
		zap.Int("stations", stats.Stations),
		zap.Int64("prices", stats.FuelPrices),
		zap.Int64("services", stats.Services),
		zap.Int64("replaced_prices", stats.ReplacedPrices),
		zap.Int64("replaced_services", stats.ReplacedServices))

	metrics, err := store.ImportMetrics(ctx, runTS)
	if err != nil {
		return err
	}
	logger.Info("import metrics",
		zap.String("day", metrics.Day.Format(time.DateOnly)),
		zap.Timep("last_import", metrics.LastImport),
		zap.Int64("rows_today", metrics.RowsToday),
		zap.Int64("stations_today", metrics.StationsToday))

	if cfg.RequireFresh {
		if err := store.CheckFreshness(ctx, time.Now()); err != nil {
			return err
		}
	}

	if cfg.SkipEnrich {
		logger.Info("skipping brand enrichment")
	} else if err := enrich(ctx, cfg, store, logger); err != nil {
		return err
	}

	if cfg.SampleSize == 0 {
		return nil
	}
	samples, err := store.SampleStations(ctx, cfg.SampleSize)
	if err != nil {
		return err
	}
	logSamples(logger, samples)
	return nil
}

func logSamples(logger *zap.Logger, samples []models.StationSample) {
	for _, sm := range samples {
		logger.Info("sample station",
			zap.Int64("id", sm.ID),
			zap.String("city", sm.City),
			zap.Stringp("brand", sm.BrandName),
			zap.Stringp("short", sm.BrandShortName))
	}
}

func enrich(ctx context.Context, cfg config.Config, store *db.Store, logger *zap.Logger) error {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = cfg.Enrich.Workers
	httpClient := &http.Client{Transport: transport, Timeout: cfg.Enrich.RequestTimeout}

	client := brands.NewClient(httpClient, brands.ClientConfig{
		BaseURL:     cfg.Enrich.APIBase,
		Retries:     cfg.Enrich.Retries,
		Timeout:     cfg.Enrich.RequestTimeout,
		BackoffStep: cfg.Enrich.BackoffStep,
		Debug:       cfg.Debug,
	}, logger.Named("brands"))

	if err := store.EnsureBrandColumns(ctx); err != nil {
		return err
	}

	enricher := brands.NewEnricher(client, store, brands.Options{
		OnlyMissing:   cfg.Enrich.OnlyMissing(),
		Limit:         cfg.Enrich.Limit,
		Workers:       cfg.Enrich.Workers,
		ProgressEvery: cfg.Enrich.ProgressEvery,
		PageSize:      cfg.Enrich.PageSize,
	}, logger.Named("enrich"))

	_, err := enricher.Run(ctx)
	return err
}
