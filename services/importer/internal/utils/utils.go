package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/02loveslollipop/prix-carburants/services/importer/internal/models"
)

// CoordinateScale converts the feed's fixed-point coordinates to decimal degrees.
const CoordinateScale = 100000

var whitespaceRun = regexp.MustCompile(`\s+`)

// CollapseSpace turns any run of whitespace into one space and trims the result.
func CollapseSpace(s string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// ParseCoordinate parses a fixed-point feed coordinate into decimal degrees.
func ParseCoordinate(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	return v / CoordinateScale, nil
}

// ParsePrice parses a price that may use a comma as decimal separator.
func ParsePrice(raw string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."), 64)
}

// DayBounds returns the [start, end) UTC calendar day containing ts.
func DayBounds(ts time.Time) (time.Time, time.Time) {
	u := ts.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// SameUTCDay reports whether a and b fall on the same UTC calendar day.
func SameUTCDay(a, b time.Time) bool {
	sa, _ := DayBounds(a)
	sb, _ := DayBounds(b)
	return sa.Equal(sb)
}

// DedupeStations keeps the last occurrence of each station id, in first-seen order.
func DedupeStations(stations []models.Station) []models.Station {
	index := make(map[int64]int, len(stations))
	out := make([]models.Station, 0, len(stations))
	for _, st := range stations {
		if i, ok := index[st.ID]; ok {
			out[i] = st
			continue
		}
		index[st.ID] = len(out)
		out = append(out, st)
	}
	return out
}

// BuildStationRows converts parsed stations into database-ready station rows.
func BuildStationRows(stations []models.Station) []models.StationRow {
	rows := make([]models.StationRow, 0, len(stations))
	for _, st := range stations {
		rows = append(rows, models.StationRow{
			ID:         st.ID,
			PostalCode: st.PostalCode,
			City:       st.City,
			Address:    st.Address,
			Latitude:   st.Latitude,
			Longitude:  st.Longitude,
			Automate:   st.HasAutomate24h,
		})
	}
	return rows
}

// BuildFuelPriceFacts flattens station prices into fact rows stamped with ts.
func BuildFuelPriceFacts(stations []models.Station, ts time.Time) []models.FuelPriceFact {
	facts := make([]models.FuelPriceFact, 0, len(stations)*4)
	for _, st := range stations {
		for _, p := range st.Prices {
			facts = append(facts, models.FuelPriceFact{
				StationID:  st.ID,
				Fuel:       p.Fuel,
				Price:      p.Price,
				ImportedAt: ts,
			})
		}
	}
	return facts
}

// BuildServiceFacts flattens station services into fact rows stamped with ts.
func BuildServiceFacts(stations []models.Station, ts time.Time) []models.ServiceFact {
	facts := make([]models.ServiceFact, 0, len(stations)*8)
	for _, st := range stations {
		for _, svc := range st.Services {
			facts = append(facts, models.ServiceFact{
				StationID:  st.ID,
				Service:    svc,
				ImportedAt: ts,
			})
		}
	}
	return facts
}
