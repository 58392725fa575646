package db

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/02loveslollipop/prix-carburants/internal/pgconn"
)

// Store wraps database access helpers.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgconn.Open(ctx, databaseURL, 0)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Station represents a station metadata record.
type Station struct {
	ID             int64   `json:"id"`
	PostalCode     *string `json:"postal_code,omitempty"`
	City           *string `json:"city,omitempty"`
	Address        *string `json:"address,omitempty"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Automate24h    bool    `json:"automate_24h"`
	BrandName      *string `json:"brand_name,omitempty"`
	BrandShortName *string `json:"brand_short_name,omitempty"`
}

// StationQuery holds filters for listing stations.
type StationQuery struct {
	PostalPrefix string
	Limit        int
	Offset       int
}

// StationPage is one page of stations plus the total matching count.
type StationPage struct {
	Stations   []Station `json:"stations"`
	TotalCount int       `json:"total_count"`
}

const stationColumns = `id, code_postal, ville, adresse, COALESCE(latitude, 0), COALESCE(longitude, 0),
    COALESCE(automate, 0) = 1, brand_name, brand_short_name`

func scanStation(row pgx.Row, st *Station) error {
	return row.Scan(
		&st.ID,
		&st.PostalCode,
		&st.City,
		&st.Address,
		&st.Lat,
		&st.Lon,
		&st.Automate24h,
		&st.BrandName,
		&st.BrandShortName,
	)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix builds a LIKE pattern matching values that start with prefix literally.
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}

// ListStations returns one page of stations ordered by id.
func (s *Store) ListStations(ctx context.Context, q StationQuery) (*StationPage, error) {
	where := ""
	args := []any{}
	if q.PostalPrefix != "" {
		where = ` WHERE code_postal LIKE $1 ESCAPE '\'`
		args = append(args, likePrefix(q.PostalPrefix))
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM stations"+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	limitPos := len(args) + 1
	args = append(args, q.Limit, q.Offset)
	sql := "SELECT " + stationColumns + " FROM stations" + where +
		" ORDER BY id LIMIT $" + strconv.Itoa(limitPos) + " OFFSET $" + strconv.Itoa(limitPos+1)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stations := make([]Station, 0, q.Limit)
	for rows.Next() {
		var st Station
		if err := scanStation(rows, &st); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &StationPage{Stations: stations, TotalCount: total}, nil
}

// Price is one fuel price fact.
type Price struct {
	Fuel       string    `json:"fuel"`
	Price      float64   `json:"price"`
	ImportedAt time.Time `json:"imported_at"`
}

// StationDetail is a station with the facts of its latest import day.
type StationDetail struct {
	Station
	ImportDay *time.Time `json:"import_day,omitempty"`
	Prices    []Price    `json:"prices"`
	Services  []string   `json:"services"`
}

// GetStation returns a station and its latest facts, or nil when it does not exist.
func (s *Store) GetStation(ctx context.Context, id int64) (*StationDetail, error) {
	var detail StationDetail
	err := scanStation(s.pool.QueryRow(ctx, "SELECT "+stationColumns+" FROM stations WHERE id = $1", id), &detail.Station)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	detail.Prices = make([]Price, 0)
	detail.Services = make([]string, 0)

	var latest *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT MAX(date_import) FROM carburants WHERE station_id = $1`, id).Scan(&latest); err != nil {
		return nil, err
	}
	if latest == nil {
		return &detail, nil
	}
	u := latest.UTC()
	day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	detail.ImportDay = &day

	rows, err := s.pool.Query(ctx, `
SELECT carburant, prix, date_import
FROM carburants
WHERE station_id = $1 AND date_import >= $2 AND date_import < $3
ORDER BY carburant`, id, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var p Price
		if err := rows.Scan(&p.Fuel, &p.Price, &p.ImportedAt); err != nil {
			rows.Close()
			return nil, err
		}
		detail.Prices = append(detail.Prices, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	svcRows, err := s.pool.Query(ctx, `
SELECT service
FROM services
WHERE station_id = $1 AND date_import >= $2 AND date_import < $3
ORDER BY service`, id, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	defer svcRows.Close()
	for svcRows.Next() {
		var svc string
		if err := svcRows.Scan(&svc); err != nil {
			return nil, err
		}
		detail.Services = append(detail.Services, svc)
	}
	return &detail, svcRows.Err()
}

// ImportStatus describes the freshness of the fuel-price facts.
type ImportStatus struct {
	LastImport    *time.Time `json:"last_import,omitempty"`
	RowsToday     int64      `json:"rows_today"`
	StationsToday int64      `json:"stations_today"`
	Fresh         bool       `json:"fresh"`
}

const importStatusSQL = `
SELECT
  MAX(date_import),
  COUNT(*) FILTER (WHERE date_import >= $1 AND date_import < $2),
  COUNT(DISTINCT station_id) FILTER (WHERE date_import >= $1 AND date_import < $2)
FROM carburants`

// ImportStatus reports the facts imported on now's UTC day.
func (s *Store) ImportStatus(ctx context.Context, now time.Time) (*ImportStatus, error) {
	u := now.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)

	var st ImportStatus
	if err := s.pool.QueryRow(ctx, importStatusSQL, start, start.AddDate(0, 0, 1)).Scan(&st.LastImport, &st.RowsToday, &st.StationsToday); err != nil {
		return nil, err
	}
	st.Fresh = st.LastImport != nil && !st.LastImport.UTC().Before(start)
	return &st, nil
}
