package brands

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/02loveslollipop/prix-carburants/services/importer/internal/models"
)

const (
	defaultWorkers       = 12
	defaultProgressEvery = 25
	defaultPageSize      = 300
)

// Fetcher resolves the brand of one station.
type Fetcher interface {
	FetchBrand(ctx context.Context, stationID int64) models.BrandResult
}

// Store is the persistence the enricher reads candidates from and writes results to.
type Store interface {
	CandidateIDs(ctx context.Context, onlyMissing bool, limit int) ([]int64, error)
	ApplyBrandUpdates(ctx context.Context, updates []models.BrandUpdate, pageSize int) (int, error)
}

// Options tunes an enrichment run.
type Options struct {
	OnlyMissing   bool
	Limit         int
	Workers       int
	ProgressEvery int
	PageSize      int
}

// Summary is the aggregate outcome of an enrichment run.
type Summary struct {
	Candidates int
	Succeeded  int
	NotFound   int
	Failed     int
	Updated    int
	Elapsed    time.Duration
}

// Enricher fans station ids out to a bounded worker pool.
type Enricher struct {
	fetcher Fetcher
	store   Store
	opts    Options
	log     *zap.Logger
}

// NewEnricher builds an enricher, filling zero options with defaults.
func NewEnricher(fetcher Fetcher, store Store, opts Options, log *zap.Logger) *Enricher {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = defaultProgressEvery
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Enricher{fetcher: fetcher, store: store, opts: opts, log: log}
}

// Run reads candidate ids, enriches them and persists the successful results
// in one final batch. Individual station failures never fail the run; only
// store errors do.
func (e *Enricher) Run(ctx context.Context) (Summary, error) {
	ids, err := e.store.CandidateIDs(ctx, e.opts.OnlyMissing, e.opts.Limit)
	if err != nil {
		return Summary{}, fmt.Errorf("load candidate ids: %w", err)
	}
	if len(ids) == 0 {
		e.log.Info("no station to enrich", zap.Bool("only_missing", e.opts.OnlyMissing))
		return Summary{}, nil
	}

	e.log.Info("enriching brands", zap.Int("stations", len(ids)), zap.Int("workers", e.opts.Workers))

	summary, updates := e.Enrich(ctx, ids)

	updated, err := e.store.ApplyBrandUpdates(ctx, updates, e.opts.PageSize)
	if err != nil {
		return summary, fmt.Errorf("persist brands: %w", err)
	}
	summary.Updated = updated

	e.log.Info("enrichment done",
		zap.Duration("elapsed", summary.Elapsed),
		zap.Int("updated", summary.Updated),
		zap.Int("failed", summary.Failed),
		zap.Int("not_found", summary.NotFound))
	return summary, nil
}

// Enrich fetches every id with at most Workers requests in flight and returns
// the counters plus the updates for succeeded stations. Results are consumed
// in completion order.
func (e *Enricher) Enrich(ctx context.Context, ids []int64) (Summary, []models.BrandUpdate) {
	start := time.Now()
	summary := Summary{Candidates: len(ids)}
	updates := make([]models.BrandUpdate, 0, len(ids))

	results := make(chan models.BrandResult, e.opts.Workers)
	go func() {
		var g errgroup.Group
		g.SetLimit(e.opts.Workers)
		for _, id := range ids {
			g.Go(func() error {
				results <- e.fetcher.FetchBrand(ctx, id)
				return nil
			})
		}
		g.Wait()
		close(results)
	}()

	done := 0
	for res := range results {
		switch res.Outcome {
		case models.OutcomeSucceeded:
			summary.Succeeded++
			updates = append(updates, models.BrandUpdate{
				StationID: res.StationID,
				Name:      res.Name,
				ShortName: res.ShortName,
			})
		case models.OutcomeNotFound:
			summary.NotFound++
		default:
			summary.Failed++
		}

		done++
		if done%e.opts.ProgressEvery == 0 || done == len(ids) {
			e.log.Info("enrichment progress",
				zap.Int("done", done),
				zap.Int("total", len(ids)),
				zap.Int("pct", done*100/len(ids)),
				zap.Int("ok", summary.Succeeded),
				zap.Int("failed", summary.Failed),
				zap.Int("not_found", summary.NotFound))
		}
	}

	summary.Elapsed = time.Since(start)
	return summary, updates
}
