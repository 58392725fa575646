package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/02loveslollipop/prix-carburants/services/importer/internal/models"
)

const defaultBrandPageSize = 300

// EnsureBrandColumns adds the brand columns to stores created before enrichment.
func (s *Store) EnsureBrandColumns(ctx context.Context) error {
	for _, stmt := range []string{
		`ALTER TABLE stations ADD COLUMN IF NOT EXISTS brand_name TEXT`,
		`ALTER TABLE stations ADD COLUMN IF NOT EXISTS brand_short_name TEXT`,
	} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure brand columns: %w", err)
		}
	}
	return nil
}

// CandidateIDs lists station ids to enrich, ordered by id. A limit <= 0 means no limit.
func (s *Store) CandidateIDs(ctx context.Context, onlyMissing bool, limit int) ([]int64, error) {
	query := `SELECT id FROM stations`
	if onlyMissing {
		query += ` WHERE brand_name IS NULL OR brand_short_name IS NULL`
	}
	query += ` ORDER BY id`

	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const applyBrandSQL = `UPDATE stations
SET brand_name = COALESCE($1, brand_name),
    brand_short_name = COALESCE($2, brand_short_name)
WHERE id = $3`

// ApplyBrandUpdates writes brand results in pages. A nil value never replaces
// an existing one. It returns the number of station rows touched.
func (s *Store) ApplyBrandUpdates(ctx context.Context, updates []models.BrandUpdate, pageSize int) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	if pageSize <= 0 {
		pageSize = defaultBrandPageSize
	}

	var touched int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for start := 0; start < len(updates); start += pageSize {
			page := updates[start:min(start+pageSize, len(updates))]

			batch := &pgx.Batch{}
			for _, u := range page {
				batch.Queue(applyBrandSQL, u.Name, u.ShortName, u.StationID)
			}

			res := tx.SendBatch(ctx, batch)
			for range page {
				tag, err := res.Exec()
				if err != nil {
					res.Close()
					return fmt.Errorf("apply brand updates: %w", err)
				}
				touched += tag.RowsAffected()
			}
			if err := res.Close(); err != nil {
				return fmt.Errorf("apply brand updates: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(touched), nil
}
