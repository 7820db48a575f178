package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/speedwagon-io/envmon/internal/lib/logger/sl"
)

func getHealth(t *testing.T, s *Server) (int, HealthResponse) {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rr.Code, resp
}

func TestHealthAggregatesCheckers(t *testing.T) {
	s := NewServer(sl.Discard(), ":0")
	s.AddChecker(NewStoreHealthChecker(func(context.Context) (int64, error) { return 3, nil }))
	s.AddChecker(NewTelemetryHealthChecker(func(context.Context) error { return nil }))

	code, resp := getHealth(t, s)
	if code != http.StatusOK || resp.Status != StatusHealthy {
		t.Fatalf("expected healthy 200, got %d %s", code, resp.Status)
	}
	if len(resp.Components) != 2 || resp.Components[0].Message != "3 rows" {
		t.Fatalf("unexpected components: %+v", resp.Components)
	}

	s.AddChecker(NewTelemetryHealthChecker(func(context.Context) error { return errors.New("dns") }))
	code, resp = getHealth(t, s)
	if code != http.StatusOK || resp.Status != StatusDegraded {
		t.Fatalf("expected degraded 200, got %d %s", code, resp.Status)
	}

	s.AddChecker(NewStoreHealthChecker(func(context.Context) (int64, error) { return 0, errors.New("locked") }))
	code, resp = getHealth(t, s)
	if code != http.StatusServiceUnavailable || resp.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy 503, got %d %s", code, resp.Status)
	}
}

func TestLoopHealthChecker(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var last time.Time

	c := NewLoopHealthChecker(func() time.Time { return last }, time.Minute)
	c.now = func() time.Time { return now }

	if status, _ := c.Check(context.Background()); status != StatusDegraded {
		t.Fatalf("expected degraded before the first cycle, got %s", status)
	}

	last = now.Add(-30 * time.Second)
	if status, _ := c.Check(context.Background()); status != StatusHealthy {
		t.Fatalf("expected healthy, got %s", status)
	}

	last = now.Add(-5 * time.Minute)
	if status, msg := c.Check(context.Background()); status != StatusDegraded || msg != "last cycle 5m0s ago" {
		t.Fatalf("expected stale loop to degrade, got %s %q", status, msg)
	}
}

func TestMetricsRoute(t *testing.T) {
	s := NewServer(sl.Discard(), ":0")
	s.SetMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("envmon_cycles_total 1\n"))
	}))

	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "envmon_cycles_total 1\n" {
		t.Fatalf("unexpected /metrics response: %d %q", rr.Code, rr.Body.String())
	}

	for _, path := range []string{"/ready", "/live"} {
		rr := httptest.NewRecorder()
		s.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}
