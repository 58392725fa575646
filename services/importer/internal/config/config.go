package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/02loveslollipop/prix-carburants/internal/pgconn"
)

const (
	defaultFeedURL        = "https://donnees.roulez-eco.fr/opendata/instantane"
	defaultXMLPath        = "data/actuel/PrixCarburants_instantane.xml"
	defaultArchiveDir     = "data/historique"
	defaultBrandAPIBase   = "https://api.prix-carburants.2aaz.fr/station/"
	defaultWorkers        = 12
	defaultRetries        = 3
	defaultRequestTimeout = 15 * time.Second
	defaultBackoffStep    = 600 * time.Millisecond
	defaultPageSize       = 300
	defaultProgressEvery  = 25
	defaultSampleSize     = 8
	defaultFetchTimeout   = 2 * time.Minute
)

// Config holds runtime configuration for the importer pipeline.
type Config struct {
	Database pgconn.Params `yaml:"database"`

	FeedURL      string        `yaml:"feed_url"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	XMLPath      string        `yaml:"xml_path"`
	ArchiveDir   string        `yaml:"archive_dir"`

	Enrich EnrichConfig `yaml:"enrich"`

	SkipFetch    bool `yaml:"skip_fetch"`
	SkipEnrich   bool `yaml:"skip_enrich"`
	RequireFresh bool `yaml:"require_fresh"`
	SampleSize   int  `yaml:"sample_size"`
	Debug        bool `yaml:"debug"`
}

// EnrichConfig tunes the brand enrichment stage.
type EnrichConfig struct {
	APIBase        string        `yaml:"api_base"`
	Workers        int           `yaml:"workers"`
	Limit          int           `yaml:"limit"`
	All            bool          `yaml:"all"`
	Retries        int           `yaml:"retries"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	BackoffStep    time.Duration `yaml:"backoff_step"`
	PageSize       int           `yaml:"page_size"`
	ProgressEvery  int           `yaml:"progress_every"`
}

// OnlyMissing reports whether enrichment is restricted to stations lacking brand data.
func (e EnrichConfig) OnlyMissing() bool {
	return !e.All
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		FeedURL:      defaultFeedURL,
		FetchTimeout: defaultFetchTimeout,
		XMLPath:      defaultXMLPath,
		ArchiveDir:   defaultArchiveDir,
		Enrich: EnrichConfig{
			APIBase:        defaultBrandAPIBase,
			Workers:        defaultWorkers,
			Retries:        defaultRetries,
			RequestTimeout: defaultRequestTimeout,
			BackoffStep:    defaultBackoffStep,
			PageSize:       defaultPageSize,
			ProgressEvery:  defaultProgressEvery,
		},
		RequireFresh: true,
		SampleSize:   defaultSampleSize,
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// PIPELINE_CONFIG, the environment (optionally .env) and finally args.
func Load(args []string) (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("PIPELINE_CONFIG")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}

	if err := applyFlags(&cfg, args); err != nil {
		return cfg, err
	}

	if _, err := cfg.Database.DSN(); err != nil {
		return cfg, err
	}
	if cfg.Enrich.Workers <= 0 {
		return cfg, fmt.Errorf("invalid worker count: %d", cfg.Enrich.Workers)
	}
	if cfg.Enrich.Retries <= 0 {
		return cfg, fmt.Errorf("invalid retry budget: %d", cfg.Enrich.Retries)
	}
	if cfg.Enrich.Limit < 0 {
		return cfg, fmt.Errorf("invalid limit: %d", cfg.Enrich.Limit)
	}
	if cfg.Enrich.PageSize <= 0 {
		return cfg, fmt.Errorf("invalid page size: %d", cfg.Enrich.PageSize)
	}
	if cfg.Enrich.ProgressEvery <= 0 {
		return cfg, fmt.Errorf("invalid progress interval: %d", cfg.Enrich.ProgressEvery)
	}
	if cfg.SampleSize < 0 {
		return cfg, fmt.Errorf("invalid sample size: %d", cfg.SampleSize)
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	cfg.Database = pgconn.FromEnv(getenv).Merge(cfg.Database)

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("FEED_URL", &cfg.FeedURL)
	str("XML_PATH", &cfg.XMLPath)
	str("XML_ARCHIVE_DIR", &cfg.ArchiveDir)
	str("FUEL_API_STATION_BASE", &cfg.Enrich.APIBase)

	ints := []struct {
		key string
		dst *int
	}{
		{"ENRICH_WORKERS", &cfg.Enrich.Workers},
		{"ENRICH_LIMIT", &cfg.Enrich.Limit},
		{"ENRICH_RETRIES", &cfg.Enrich.Retries},
		{"ENRICH_PAGE_SIZE", &cfg.Enrich.PageSize},
		{"ENRICH_PROGRESS_EVERY", &cfg.Enrich.ProgressEvery},
		{"SAMPLE_SIZE", &cfg.SampleSize},
	}
	for _, it := range ints {
		if v := strings.TrimSpace(getenv(it.key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", it.key, err)
			}
			*it.dst = n
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"FETCH_TIMEOUT", &cfg.FetchTimeout},
		{"ENRICH_TIMEOUT", &cfg.Enrich.RequestTimeout},
		{"ENRICH_BACKOFF", &cfg.Enrich.BackoffStep},
	}
	for _, it := range durations {
		if v := strings.TrimSpace(getenv(it.key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", it.key, err)
			}
			*it.dst = d
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"ENRICH_ALL", &cfg.Enrich.All},
		{"SKIP_FETCH", &cfg.SkipFetch},
		{"SKIP_ENRICH", &cfg.SkipEnrich},
		{"REQUIRE_FRESH", &cfg.RequireFresh},
		{"DEBUG", &cfg.Debug},
	}
	for _, it := range bools {
		if v := strings.TrimSpace(getenv(it.key)); v != "" {
			b, err := parseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", it.key, err)
			}
			*it.dst = b
		}
	}

	return nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, errors.New("expected a boolean")
}

func applyFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("importer", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.IntVar(&cfg.Enrich.Limit, "limit", cfg.Enrich.Limit, "Limit the number of station ids enriched (0 = no limit). Env: ENRICH_LIMIT")
	fs.IntVar(&cfg.Enrich.Workers, "workers", cfg.Enrich.Workers, "Concurrent brand API workers. Env: ENRICH_WORKERS")
	fs.BoolVar(&cfg.Enrich.All, "all", cfg.Enrich.All, "Enrich every station, not only those missing brand data. Env: ENRICH_ALL")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Log the raw Brand payload when no short name is found. Env: DEBUG")
	fs.BoolVar(&cfg.SkipFetch, "skip-fetch", cfg.SkipFetch, "Use the XML already on disk. Env: SKIP_FETCH")
	fs.BoolVar(&cfg.SkipEnrich, "skip-enrich", cfg.SkipEnrich, "Skip brand enrichment. Env: SKIP_ENRICH")
	fs.StringVar(&cfg.XMLPath, "xml", cfg.XMLPath, "Path of the feed XML. Env: XML_PATH")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
