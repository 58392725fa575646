package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/02loveslollipop/prix-carburants/services/importer/internal/models"
	"github.com/02loveslollipop/prix-carburants/services/importer/internal/utils"
)

// ErrStaleImport is returned when the newest fact is not dated today (UTC).
var ErrStaleImport = errors.New("latest import is not from today")

// LatestImport returns the newest carburants timestamp, or nil when the table is empty.
func (s *Store) LatestImport(ctx context.Context) (*time.Time, error) {
	var latest *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT MAX(date_import) FROM carburants`).Scan(&latest); err != nil {
		return nil, err
	}
	return latest, nil
}

// CheckFreshness fails with ErrStaleImport unless the newest fact falls on now's UTC day.
func (s *Store) CheckFreshness(ctx context.Context, now time.Time) error {
	latest, err := s.LatestImport(ctx)
	if err != nil {
		return fmt.Errorf("read latest import: %w", err)
	}
	if latest == nil {
		return fmt.Errorf("%w: no import recorded", ErrStaleImport)
	}
	if !utils.SameUTCDay(*latest, now) {
		return fmt.Errorf("%w: last import %s", ErrStaleImport, latest.UTC().Format(time.RFC3339))
	}
	return nil
}

const importMetricsSQL = `
SELECT
  MAX(date_import),
  COUNT(*) FILTER (WHERE date_import >= $1 AND date_import < $2),
  COUNT(DISTINCT station_id) FILTER (WHERE date_import >= $1 AND date_import < $2)
FROM carburants`

// ImportMetrics summarizes the fuel-price facts of day's UTC calendar day.
func (s *Store) ImportMetrics(ctx context.Context, day time.Time) (models.ImportMetrics, error) {
	start, end := utils.DayBounds(day)
	m := models.ImportMetrics{Day: start}
	if err := s.pool.QueryRow(ctx, importMetricsSQL, start, end).Scan(&m.LastImport, &m.RowsToday, &m.StationsToday); err != nil {
		return m, err
	}
	return m, nil
}

// SampleStations returns up to n stations, branded ones first. A non-positive n
// returns nothing.
func (s *Store) SampleStations(ctx context.Context, n int) ([]models.StationSample, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, COALESCE(ville, ''), brand_name, brand_short_name
FROM stations
ORDER BY (brand_name IS NULL), id
LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.StationSample, 0, n)
	for rows.Next() {
		var sm models.StationSample
		if err := rows.Scan(&sm.ID, &sm.City, &sm.BrandName, &sm.BrandShortName); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}
