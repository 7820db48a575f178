package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/speedwagon-io/envmon/internal/config"
)

// FeedEntry is one row of the channel history. Missing or non-numeric
// fields come back as NaN. Rows without a parseable created_at are dropped.
type FeedEntry struct {
	CreatedAt   time.Time
	Temperature float64
	Humidity    float64
	AirQuality  float64
}

type FeedClient struct {
	log       *slog.Logger
	baseURL   string
	channelID string
	apiKey    string
	client    *http.Client
}

func NewFeedClient(log *slog.Logger, cfg *config.TelemetryConfig) *FeedClient {
	return &FeedClient{
		log:       log,
		baseURL:   strings.TrimRight(cfg.FeedURL, "/"),
		channelID: cfg.ChannelID,
		apiKey:    cfg.ReadAPIKey,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type feedResponse struct {
	Feeds []struct {
		CreatedAt string `json:"created_at"`
		Field1    any    `json:"field1"`
		Field2    any    `json:"field2"`
		Field3    any    `json:"field3"`
	} `json:"feeds"`
}

// Fetch returns the last n entries of the channel feed in the order the
// endpoint lists them.
func (c *FeedClient) Fetch(ctx context.Context, n int) ([]FeedEntry, error) {
	u, err := url.Parse(fmt.Sprintf("%s/channels/%s/feeds.json", c.baseURL, url.PathEscape(c.channelID)))
	if err != nil {
		return nil, fmt.Errorf("failed to build feed url: %w", err)
	}

	q := u.Query()
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	q.Set("results", strconv.Itoa(n))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", redact(err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}

	entries := make([]FeedEntry, 0, len(body.Feeds))
	for _, f := range body.Feeds {
		created, err := time.Parse(time.RFC3339, f.CreatedAt)
		if err != nil {
			c.log.Warn("dropping feed entry with invalid created_at",
				slog.String("created_at", f.CreatedAt),
			)
			continue
		}
		entries = append(entries, FeedEntry{
			CreatedAt:   created,
			Temperature: toFloat(f.Field1),
			Humidity:    toFloat(f.Field2),
			AirQuality:  toFloat(f.Field3),
		})
	}

	return entries, nil
}

func toFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
