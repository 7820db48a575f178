// Package acquire turns flaky single-shot sensor reads into at most one
// Reading per cycle.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/speedwagon-io/envmon/internal/lib/logger/sl"
	"github.com/speedwagon-io/envmon/internal/model"
	"github.com/speedwagon-io/envmon/internal/sensor"
)

// ErrSensorUnavailable means every climate attempt failed and the cycle
// must be skipped.
var ErrSensorUnavailable = errors.New("climate sensor unavailable after retries")

type Controller struct {
	log     *slog.Logger
	climate sensor.ClimateReader
	gas     sensor.GasReader
	channel int
	policy  RetryPolicy
	wait    WaitFunc
}

type Option func(*Controller)

func WithWait(wait WaitFunc) Option {
	return func(c *Controller) { c.wait = wait }
}

func NewController(
	log *slog.Logger,
	climate sensor.ClimateReader,
	gas sensor.GasReader,
	channel int,
	policy RetryPolicy,
	opts ...Option,
) *Controller {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	c := &Controller{
		log:     log,
		climate: climate,
		gas:     gas,
		channel: channel,
		policy:  policy,
		wait:    Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Acquire produces one Reading, or ErrSensorUnavailable when the climate
// sensor never answers. Gas faults are folded into model.AirQualityFault.
func (c *Controller) Acquire(ctx context.Context) (model.Reading, error) {
	humidity, temperature, err := c.readClimate(ctx)
	if err != nil {
		return model.Reading{}, err
	}

	airQuality, err := c.gas.ReadGasChannel(ctx, c.channel)
	if err != nil {
		c.log.Warn("adc read failed, using fault sentinel",
			slog.Int("channel", c.channel),
			sl.Err(err),
		)
		airQuality = model.AirQualityFault
	}

	return model.NewReading(temperature, humidity, airQuality), nil
}

func (c *Controller) readClimate(ctx context.Context) (float64, float64, error) {
	var lastErr error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		humidity, temperature, err := c.climate.ReadClimate(ctx)
		if err == nil {
			if attempt > 1 {
				c.log.Debug("climate read recovered", slog.Int("attempt", attempt))
			}
			return humidity, temperature, nil
		}

		lastErr = err
		c.log.Warn("climate read attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.policy.MaxAttempts),
			sl.Err(err),
		)

		if attempt < c.policy.MaxAttempts {
			if err := c.wait(ctx, c.policy.NextDelay(attempt)); err != nil {
				return 0, 0, err
			}
		}
	}

	return 0, 0, fmt.Errorf("%w: all %d attempts failed: %w", ErrSensorUnavailable, c.policy.MaxAttempts, lastErr)
}
