package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/02loveslollipop/prix-carburants/services/importer/internal/models"
	"github.com/02loveslollipop/prix-carburants/services/importer/internal/utils"
)

// ErrFeedMissing is returned when the feed XML is not on disk.
var ErrFeedMissing = errors.New("feed xml not found")

type pdvList struct {
	Stations []pdv `xml:"pdv"`
}

type pdv struct {
	ID        string    `xml:"id,attr"`
	CP        string    `xml:"cp,attr"`
	Latitude  string    `xml:"latitude,attr"`
	Longitude string    `xml:"longitude,attr"`
	Ville     string    `xml:"ville"`
	Adresse   string    `xml:"adresse"`
	Horaires  *horaires `xml:"horaires"`
	Services  []string  `xml:"services>service"`
	Prix      []prix    `xml:"prix"`
}

type horaires struct {
	Automate string `xml:"automate-24-24,attr"`
}

type prix struct {
	Nom    string `xml:"nom,attr"`
	Valeur string `xml:"valeur,attr"`
}

// ParseFile reads the feed at path and returns its normalized stations.
// Any malformed station aborts the whole parse.
func ParseFile(path string) ([]models.Station, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFeedMissing, path)
		}
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	dec.CharsetReader = charset.NewReaderLabel

	var doc pdvList
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode feed %s: %w", path, err)
	}

	stations := make([]models.Station, 0, len(doc.Stations))
	for i, raw := range doc.Stations {
		st, err := normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("station #%d: %w", i+1, err)
		}
		stations = append(stations, st)
	}
	return stations, nil
}

func normalize(raw pdv) (models.Station, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw.ID), 10, 64)
	if err != nil {
		return models.Station{}, fmt.Errorf("invalid id %q: %w", raw.ID, err)
	}
	lat, err := utils.ParseCoordinate(raw.Latitude)
	if err != nil {
		return models.Station{}, fmt.Errorf("station %d: invalid latitude %q: %w", id, raw.Latitude, err)
	}
	lon, err := utils.ParseCoordinate(raw.Longitude)
	if err != nil {
		return models.Station{}, fmt.Errorf("station %d: invalid longitude %q: %w", id, raw.Longitude, err)
	}

	st := models.Station{
		ID:             id,
		PostalCode:     raw.CP,
		City:           strings.TrimSpace(raw.Ville),
		Address:        utils.CollapseSpace(raw.Adresse),
		Latitude:       lat,
		Longitude:      lon,
		HasAutomate24h: raw.Horaires != nil && raw.Horaires.Automate == "1",
		Services:       make([]string, 0, len(raw.Services)),
	}

	for _, svc := range raw.Services {
		if svc = strings.TrimSpace(svc); svc != "" {
			st.Services = append(st.Services, svc)
		}
	}

	seen := make(map[string]int, len(raw.Prix))
	for _, p := range raw.Prix {
		if p.Nom == "" || p.Valeur == "" {
			continue
		}
		price, err := utils.ParsePrice(p.Valeur)
		if err != nil {
			return models.Station{}, fmt.Errorf("station %d: invalid price %q for %s: %w", id, p.Valeur, p.Nom, err)
		}
		if i, ok := seen[p.Nom]; ok {
			st.Prices[i].Price = price
			continue
		}
		seen[p.Nom] = len(st.Prices)
		st.Prices = append(st.Prices, models.FuelPrice{Fuel: p.Nom, Price: price})
	}

	return st, nil
}
