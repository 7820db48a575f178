// Package sensor holds the single-shot hardware reads used by the
// acquisition loop. Nothing in here retries; callers decide.
package sensor

import (
	"context"
	"errors"
)

var (
	ErrUnavailable    = errors.New("climate sensor unavailable")
	ErrInvalidChannel = errors.New("adc channel must be between 0 and 7")
	ErrShortResponse  = errors.New("spi response too short")
)

// ClimateReader reads humidity and temperature as one atomic pair.
type ClimateReader interface {
	ReadClimate(ctx context.Context) (humidity, temperature float64, err error)
}

// GasReader performs one analog conversion on an ADC channel.
type GasReader interface {
	ReadGasChannel(ctx context.Context, channel int) (int, error)
}

// Indicator drives the alert status LED.
type Indicator interface {
	Set(on bool) error
	Close() error
}

type NopIndicator struct{}

func (NopIndicator) Set(bool) error { return nil }
func (NopIndicator) Close() error   { return nil }
