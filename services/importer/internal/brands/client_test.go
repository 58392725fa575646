package brands

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/02loveslollipop/prix-carburants/services/importer/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := NewClient(srv.Client(), ClientConfig{BaseURL: srv.URL + "/station/", Retries: 3}, nil)
	var sleeps []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return c, &sleeps
}

func TestFetchBrandSuccess(t *testing.T) {
	var path, accept string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path, accept = r.URL.Path, r.Header.Get("Accept")
		w.Write([]byte(`{"id": 42, "Brand": {"Name": "TotalEnergies", "short_name": "TE"}}`))
	})

	res := c.FetchBrand(context.Background(), 42)
	if res.Outcome != models.OutcomeSucceeded || res.Attempts != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if strOrNil(res.Name) != "TotalEnergies" || strOrNil(res.ShortName) != "TE" {
		t.Fatalf("unexpected brand %s / %s", strOrNil(res.Name), strOrNil(res.ShortName))
	}
	if path != "/station/42" {
		t.Fatalf("unexpected request path %s", path)
	}
	if !strings.Contains(accept, "application/json") {
		t.Fatalf("expected JSON accept header, got %q", accept)
	}
}

func TestFetchBrandNotFoundShortCircuits(t *testing.T) {
	var hits int32
	c, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	})

	res := c.FetchBrand(context.Background(), 7)
	if res.Outcome != models.OutcomeNotFound {
		t.Fatalf("expected not_found, got %s", res.Outcome)
	}
	if atomic.LoadInt32(&hits) != 1 || res.Attempts != 1 || len(*sleeps) != 0 {
		t.Fatalf("expected a single attempt without backoff, hits=%d sleeps=%v", hits, *sleeps)
	}
}

func TestFetchBrandServerErrorExhaustsRetries(t *testing.T) {
	var hits int32
	c, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	res := c.FetchBrand(context.Background(), 9)
	if res.Outcome != models.OutcomeFailed {
		t.Fatalf("expected failed, got %s", res.Outcome)
	}
	if atomic.LoadInt32(&hits) != 3 || res.Attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, hits=%d attempts=%d", hits, res.Attempts)
	}
	want := []time.Duration{600 * time.Millisecond, 1200 * time.Millisecond}
	if len(*sleeps) != len(want) {
		t.Fatalf("unexpected backoff schedule %v", *sleeps)
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Fatalf("backoff %d = %v, want %v", i, (*sleeps)[i], d)
		}
	}
}

func TestFetchBrandRetriesThenSucceeds(t *testing.T) {
	var hits int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.Write([]byte(`not json`))
		default:
			w.Write([]byte(`{"Brand": {"label": {"value": "Shell"}}}`))
		}
	})

	res := c.FetchBrand(context.Background(), 5)
	if res.Outcome != models.OutcomeSucceeded || res.Attempts != 3 {
		t.Fatalf("expected success on third attempt, got %+v", res)
	}
	if strOrNil(res.Name) != "Shell" || res.ShortName != nil {
		t.Fatalf("unexpected brand %s / %s", strOrNil(res.Name), strOrNil(res.ShortName))
	}
}

func TestFetchBrandWithoutBrandObject(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 1}`))
	})

	res := c.FetchBrand(context.Background(), 1)
	if res.Outcome != models.OutcomeSucceeded || res.Name != nil || res.ShortName != nil {
		t.Fatalf("expected success with empty brand, got %+v", res)
	}
}

func TestFetchBrandNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(&http.Client{Timeout: time.Second}, ClientConfig{BaseURL: base + "/", Retries: 2}, nil)
	c.sleep = func(context.Context, time.Duration) error { return nil }

	res := c.FetchBrand(context.Background(), 1)
	if res.Outcome != models.OutcomeFailed || res.Attempts != 2 {
		t.Fatalf("expected failure after 2 attempts, got %+v", res)
	}
}
