// Package telemetry pushes each cycle's sample to the cloud channel. A push
// is attempted once; failures are returned to the caller and never queued.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/speedwagon-io/envmon/internal/config"
	"github.com/speedwagon-io/envmon/internal/model"
)

var ErrForward = errors.New("telemetry push failed")

type Forwarder interface {
	Push(ctx context.Context, sample model.Sample) error
	Health(ctx context.Context) error
	Close() error
}

type HTTPForwarder struct {
	log     *slog.Logger
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPForwarder(log *slog.Logger, cfg *config.TelemetryConfig) *HTTPForwarder {
	return &HTTPForwarder{
		log:     log,
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (f *HTTPForwarder) Push(ctx context.Context, sample model.Sample) error {
	logMasked(f.log, "http", sample)

	u, err := url.Parse(f.baseURL)
	if err != nil {
		return fmt.Errorf("%w: invalid endpoint: %w", ErrForward, err)
	}

	temperature, humidity, airQuality := sample.Fields()
	q := u.Query()
	q.Set("api_key", f.apiKey)
	q.Set("field1", temperature)
	q.Set("field2", humidity)
	q.Set("field3", airQuality)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %w", ErrForward, redact(err))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to execute request: %w", ErrForward, redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		f.log.Info("telemetry accepted", slog.Int("status", resp.StatusCode))
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%w: unexpected status code %d: %s", ErrForward, resp.StatusCode, strings.TrimSpace(string(body)))
}

// Health reports whether the endpoint answers at all. It does not push.
func (f *HTTPForwarder) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

func (f *HTTPForwarder) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// redact drops the request URL from client errors; it carries the api key.
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}

func logMasked(log *slog.Logger, transport string, sample model.Sample) {
	m := sample.Masked()
	log.Info("sending telemetry",
		slog.String("transport", transport),
		slog.String("temperature", m.Temperature),
		slog.String("humidity", m.Humidity),
		slog.String("air_quality", m.AirQuality),
	)
}

// LogForwarder logs masked samples instead of sending them (dry-run)
type LogForwarder struct {
	log *slog.Logger
}

func NewLogForwarder(log *slog.Logger) *LogForwarder {
	return &LogForwarder{log: log}
}

func (f *LogForwarder) Push(_ context.Context, sample model.Sample) error {
	logMasked(f.log, "log", sample)
	return nil
}

func (f *LogForwarder) Health(context.Context) error { return nil }

func (f *LogForwarder) Close() error { return nil }
