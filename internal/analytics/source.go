package analytics

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/speedwagon-io/envmon/internal/store"
	"github.com/speedwagon-io/envmon/internal/telemetry"
)

// Point is one sample in chronological analysis order. Missing values are
// NaN.
type Point struct {
	Time        time.Time
	Temperature float64
	Humidity    float64
	AirQuality  float64
}

type Source interface {
	Points(ctx context.Context, n int) ([]Point, error)
}

type recentReader interface {
	Recent(ctx context.Context, n int) ([]store.Row, error)
}

type StoreSource struct {
	store recentReader
}

func NewStoreSource(st recentReader) *StoreSource {
	return &StoreSource{store: st}
}

func (s *StoreSource) Points(ctx context.Context, n int) ([]Point, error) {
	rows, err := s.store.Recent(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent rows: %w", err)
	}
	return FromRows(rows), nil
}

type feedFetcher interface {
	Fetch(ctx context.Context, n int) ([]telemetry.FeedEntry, error)
}

type FeedSource struct {
	feed feedFetcher
}

func NewFeedSource(feed feedFetcher) *FeedSource {
	return &FeedSource{feed: feed}
}

func (s *FeedSource) Points(ctx context.Context, n int) ([]Point, error) {
	entries, err := s.feed.Fetch(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	return FromFeed(entries), nil
}

func FromRows(rows []store.Row) []Point {
	points := make([]Point, 0, len(rows))
	for _, r := range rows {
		points = append(points, Point{
			Time:        r.Timestamp,
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
			AirQuality:  float64(r.AirQuality),
		})
	}
	sortByTime(points)
	return points
}

func FromFeed(entries []telemetry.FeedEntry) []Point {
	points := make([]Point, 0, len(entries))
	for _, e := range entries {
		points = append(points, Point{
			Time:        e.CreatedAt,
			Temperature: e.Temperature,
			Humidity:    e.Humidity,
			AirQuality:  e.AirQuality,
		})
	}
	sortByTime(points)
	return points
}

func sortByTime(points []Point) {
	slices.SortStableFunc(points, func(a, b Point) int {
		return a.Time.Compare(b.Time)
	})
}
