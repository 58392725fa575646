package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/02loveslollipop/prix-carburants/services/importer/internal/models"
	"github.com/02loveslollipop/prix-carburants/services/importer/internal/utils"
)

const stationPageSize = 500

// Store wraps the importer's database access.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an open pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS stations (
  id INTEGER PRIMARY KEY,
  code_postal TEXT,
  ville TEXT,
  adresse TEXT,
  latitude DOUBLE PRECISION,
  longitude DOUBLE PRECISION,
  automate INTEGER,
  brand_name TEXT,
  brand_short_name TEXT
)`,
	`ALTER TABLE stations ADD COLUMN IF NOT EXISTS adresse TEXT`,
	`CREATE TABLE IF NOT EXISTS carburants (
  station_id INTEGER REFERENCES stations(id),
  carburant TEXT,
  prix DOUBLE PRECISION,
  date_import TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS services (
  station_id INTEGER REFERENCES stations(id),
  service TEXT,
  date_import TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_carburants_station ON carburants(station_id)`,
	`CREATE INDEX IF NOT EXISTS idx_carburants_date ON carburants(date_import)`,
	`CREATE INDEX IF NOT EXISTS idx_carburants_station_carb ON carburants(station_id, carburant)`,
	`CREATE INDEX IF NOT EXISTS idx_services_station ON services(station_id)`,
	`CREATE INDEX IF NOT EXISTS idx_services_date ON services(date_import)`,
}

// EnsureSchema creates the tables and indexes if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return s.EnsureBrandColumns(ctx)
}

// ImportStats reports what one ImportDay call wrote.
type ImportStats struct {
	Stations         int
	FuelPrices       int64
	Services         int64
	ReplacedPrices   int64
	ReplacedServices int64
}

const upsertStationSQL = `INSERT INTO stations (id, ville, code_postal, adresse, latitude, longitude, automate)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE
SET ville = EXCLUDED.ville,
    code_postal = EXCLUDED.code_postal,
    adresse = EXCLUDED.adresse,
    latitude = EXCLUDED.latitude,
    longitude = EXCLUDED.longitude,
    automate = EXCLUDED.automate`

// ImportDay upserts stations and replaces the facts of ts's UTC day in one
// transaction. Facts of other days are left untouched.
func (s *Store) ImportDay(ctx context.Context, stations []models.Station, ts time.Time) (ImportStats, error) {
	ts = ts.UTC()
	stations = utils.DedupeStations(stations)
	rows := utils.BuildStationRows(stations)
	prices := utils.BuildFuelPriceFacts(stations, ts)
	services := utils.BuildServiceFacts(stations, ts)
	dayStart, dayEnd := utils.DayBounds(ts)

	stats := ImportStats{Stations: len(rows)}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := upsertStations(ctx, tx, rows); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM carburants WHERE date_import >= $1 AND date_import < $2`, dayStart, dayEnd)
		if err != nil {
			return fmt.Errorf("purge day prices: %w", err)
		}
		stats.ReplacedPrices = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `DELETE FROM services WHERE date_import >= $1 AND date_import < $2`, dayStart, dayEnd)
		if err != nil {
			return fmt.Errorf("purge day services: %w", err)
		}
		stats.ReplacedServices = tag.RowsAffected()

		stats.FuelPrices, err = tx.CopyFrom(ctx,
			pgx.Identifier{"carburants"},
			[]string{"station_id", "carburant", "prix", "date_import"},
			pgx.CopyFromSlice(len(prices), func(i int) ([]any, error) {
				p := prices[i]
				return []any{p.StationID, p.Fuel, p.Price, p.ImportedAt}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("insert prices: %w", err)
		}

		stats.Services, err = tx.CopyFrom(ctx,
			pgx.Identifier{"services"},
			[]string{"station_id", "service", "date_import"},
			pgx.CopyFromSlice(len(services), func(i int) ([]any, error) {
				f := services[i]
				return []any{f.StationID, f.Service, f.ImportedAt}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("insert services: %w", err)
		}
		return nil
	})
	if err != nil {
		return ImportStats{}, err
	}
	return stats, nil
}

func upsertStations(ctx context.Context, tx pgx.Tx, rows []models.StationRow) error {
	for start := 0; start < len(rows); start += stationPageSize {
		end := min(start+stationPageSize, len(rows))
		page := rows[start:end]

		batch := &pgx.Batch{}
		for _, r := range page {
			batch.Queue(upsertStationSQL, r.ID, r.City, r.PostalCode, r.Address, r.Latitude, r.Longitude, boolToInt(r.Automate))
		}

		res := tx.SendBatch(ctx, batch)
		for range page {
			if _, err := res.Exec(); err != nil {
				res.Close()
				return fmt.Errorf("upsert stations: %w", err)
			}
		}
		if err := res.Close(); err != nil {
			return fmt.Errorf("upsert stations: %w", err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
