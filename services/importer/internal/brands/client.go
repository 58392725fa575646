package brands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/02loveslollipop/prix-carburants/services/importer/internal/models"
)

const (
	defaultRetries     = 3
	defaultTimeout     = 15 * time.Second
	defaultBackoffStep = 600 * time.Millisecond
)

// ClientConfig tunes the brand API client.
type ClientConfig struct {
	BaseURL     string
	Retries     int
	Timeout     time.Duration
	BackoffStep time.Duration
	Debug       bool
}

// Client fetches per-station brand data from the brand API.
type Client struct {
	http  *http.Client
	cfg   ClientConfig
	log   *zap.Logger
	sleep func(context.Context, time.Duration) error
}

// NewClient builds a client sharing httpClient across all calls.
func NewClient(httpClient *http.Client, cfg ClientConfig, log *zap.Logger) *Client {
	if cfg.Retries <= 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BackoffStep <= 0 {
		cfg.BackoffStep = defaultBackoffStep
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{http: httpClient, cfg: cfg, log: log, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type stationPayload struct {
	Brand any `json:"Brand"`
}

// FetchBrand resolves one station. It never returns an error: every failure
// ends up as OutcomeFailed once the retry budget is spent.
func (c *Client) FetchBrand(ctx context.Context, stationID int64) models.BrandResult {
	res := models.BrandResult{StationID: stationID, Outcome: models.OutcomeFailed}
	url := c.cfg.BaseURL + strconv.FormatInt(stationID, 10)

	for attempt := 1; attempt <= c.cfg.Retries; attempt++ {
		res.Attempts = attempt

		payload, status, err := c.get(ctx, url)
		switch {
		case err == nil && status == http.StatusNotFound:
			res.Outcome = models.OutcomeNotFound
			return res
		case err == nil:
			brand, _ := payload.Brand.(map[string]any)
			res.Name, res.ShortName = ExtractBrand(brand)
			res.Outcome = models.OutcomeSucceeded
			if c.cfg.Debug && res.ShortName == nil {
				raw, _ := json.Marshal(payload.Brand)
				c.log.Debug("brand without short name", zap.Int64("station_id", stationID), zap.ByteString("brand", raw))
			}
			return res
		}

		c.log.Debug("brand request failed",
			zap.Int64("station_id", stationID),
			zap.Int("attempt", attempt),
			zap.Int("status", status),
			zap.Error(err))

		if attempt == c.cfg.Retries {
			break
		}
		if err := c.sleep(ctx, c.cfg.BackoffStep*time.Duration(attempt)); err != nil {
			break
		}
	}
	return res
}

// get performs one attempt. A nil error with status 404 means not found; any
// non-nil error is retryable.
func (c *Client) get(ctx context.Context, url string) (stationPayload, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return stationPayload{}, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return stationPayload{}, 0, fmt.Errorf("request brand: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return stationPayload{}, resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return stationPayload{}, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var payload stationPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return stationPayload{}, resp.StatusCode, fmt.Errorf("decode brand payload: %w", err)
	}
	return payload, resp.StatusCode, nil
}
