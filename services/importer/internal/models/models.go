package models

import "time"

// Station is a normalized point of sale parsed from the feed.
type Station struct {
	ID             int64
	PostalCode     string
	City           string
	Address        string
	Latitude       float64
	Longitude      float64
	HasAutomate24h bool
	Services       []string
	Prices         []FuelPrice
}

// FuelPrice is one fuel code and its price for a station.
type FuelPrice struct {
	Fuel  string
	Price float64
}

// StationRow captures the descriptive station columns for the upsert.
type StationRow struct {
	ID         int64
	PostalCode string
	City       string
	Address    string
	Latitude   float64
	Longitude  float64
	Automate   bool
}

// FuelPriceFact is a carburants row.
type FuelPriceFact struct {
	StationID  int64
	Fuel       string
	Price      float64
	ImportedAt time.Time
}

// ServiceFact is a services row.
type ServiceFact struct {
	StationID  int64
	Service    string
	ImportedAt time.Time
}

// Outcome is the terminal state of a brand enrichment task.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSucceeded
	OutcomeNotFound
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// BrandResult is what one enrichment task produced for a station.
type BrandResult struct {
	StationID int64
	Name      *string
	ShortName *string
	Outcome   Outcome
	Attempts  int
}

// BrandUpdate is a COALESCE update applied to stations.
type BrandUpdate struct {
	StationID int64
	Name      *string
	ShortName *string
}

// ImportMetrics summarizes the fuel-price facts of one UTC day.
type ImportMetrics struct {
	Day           time.Time
	LastImport    *time.Time
	RowsToday     int64
	StationsToday int64
}

// StationSample is a short station view used by the end-of-run report.
type StationSample struct {
	ID             int64
	City           string
	BrandName      *string
	BrandShortName *string
}
