package analytics

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/speedwagon-io/envmon/internal/store"
	"github.com/speedwagon-io/envmon/internal/telemetry"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		r    float64
		want Strength
	}{
		{0.6, StrongPositive},
		{0.5, WeakPositive},
		{0.3, WeakPositive},
		{-0.3, WeakNegative},
		{-0.5, WeakNegative},
		{-0.6, StrongNegative},
		// Zero falls through every bucket; kept as the historical behavior.
		{0.0, StrongNegative},
		{math.NaN(), StrongNegative},
	}

	for _, tt := range tests {
		if got := Classify(tt.r); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.r, got, tt.want)
		}
	}
}

func points(values ...[3]float64) []Point {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Point, len(values))
	for i, v := range values {
		out[i] = Point{
			Time:        base.Add(time.Duration(i) * 15 * time.Second),
			Temperature: v[0],
			Humidity:    v[1],
			AirQuality:  v[2],
		}
	}
	return out
}

func TestCorrelate(t *testing.T) {
	report := Correlate(points(
		[3]float64{20, 60, 100},
		[3]float64{21, 58, 110},
		[3]float64{22, 56, 120},
		[3]float64{23, 54, 130},
	))

	if report.Samples != 4 || len(report.Pairs) != 3 {
		t.Fatalf("unexpected report shape: %+v", report)
	}

	want := []float64{-1, 1, -1}
	for i, p := range report.Pairs {
		if math.Abs(p.R-want[i]) > 1e-9 {
			t.Errorf("%s: r = %v, want %v", p.Name, p.R, want[i])
		}
		if p.N != 4 {
			t.Errorf("%s: n = %d, want 4", p.Name, p.N)
		}
	}
	if report.Pairs[1].Strength != StrongPositive {
		t.Errorf("expected strong positive, got %q", report.Pairs[1].Strength)
	}
}

func TestCorrelateDropsNaNPairwise(t *testing.T) {
	nan := math.NaN()
	report := Correlate(points(
		[3]float64{20, 60, nan},
		[3]float64{21, 62, 100},
		[3]float64{22, 64, nan},
		[3]float64{23, 66, 130},
	))

	if report.Pairs[0].N != 4 {
		t.Fatalf("temperature/humidity should keep all rows, got %d", report.Pairs[0].N)
	}
	if report.Pairs[1].N != 2 || report.Pairs[2].N != 2 {
		t.Fatalf("air quality pairs should drop NaN rows, got %d/%d", report.Pairs[1].N, report.Pairs[2].N)
	}
	if math.Abs(report.Pairs[1].R-1) > 1e-9 {
		t.Fatalf("expected r = 1 over the remaining rows, got %v", report.Pairs[1].R)
	}
}

func TestCorrelateTooFewRows(t *testing.T) {
	report := Correlate(points([3]float64{20, 60, 100}))
	for _, p := range report.Pairs {
		if !math.IsNaN(p.R) {
			t.Fatalf("%s: expected NaN for a single row, got %v", p.Name, p.R)
		}
	}
}

func TestReportWrite(t *testing.T) {
	var buf bytes.Buffer
	report := Report{Samples: 2, Pairs: []Pair{{Name: "Temperature ↔ Humidity", R: 0.87, N: 2, Strength: StrongPositive}}}
	if err := report.Write(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "0.87  strong positive (n=2)") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

type stubRecent struct {
	rows []store.Row
	err  error
	n    int
}

func (s *stubRecent) Recent(_ context.Context, n int) ([]store.Row, error) {
	s.n = n
	return s.rows, s.err
}

func TestStoreSourceOrdersChronologically(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	st := &stubRecent{rows: []store.Row{
		{Timestamp: t0.Add(30 * time.Second), Temperature: 22, Humidity: 50, AirQuality: -1},
		{Timestamp: t0, Temperature: 21, Humidity: 51, AirQuality: 300},
	}}

	pts, err := NewStoreSource(st).Points(context.Background(), DefaultSamples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.n != 20 {
		t.Fatalf("expected n=20 to be passed through, got %d", st.n)
	}
	if len(pts) != 2 || !pts[0].Time.Equal(t0) || pts[1].AirQuality != -1 {
		t.Fatalf("unexpected points: %+v", pts)
	}

	st.err = store.ErrAccessDenied
	if _, err := NewStoreSource(st).Points(context.Background(), 5); !errors.Is(err, store.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

type stubFeed struct {
	entries []telemetry.FeedEntry
}

func (s *stubFeed) Fetch(context.Context, int) ([]telemetry.FeedEntry, error) {
	return s.entries, nil
}

func TestFeedSourceKeepsMissingValues(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	feed := &stubFeed{entries: []telemetry.FeedEntry{
		{CreatedAt: t0, Temperature: 22, Humidity: math.NaN(), AirQuality: 400},
	}}

	pts, err := NewFeedSource(feed).Points(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pts) != 1 || !math.IsNaN(pts[0].Humidity) || pts[0].AirQuality != 400 {
		t.Fatalf("unexpected points: %+v", pts)
	}
}

func TestPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.png")

	err := Plot(points(
		[3]float64{20, 60, 100},
		[3]float64{21, math.NaN(), 110},
		[3]float64{22, 56, 120},
	), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Fatalf("expected a non-empty png, got %v", err)
	}

	if err := Plot(nil, path); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}
