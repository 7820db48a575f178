package sensor

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Simulated stands in for both sensors when running away from the board.
// Values follow a bounded random walk; climate reads fail at FailureRate.
type Simulated struct {
	FailureRate float64

	rng         *rand.Rand
	temperature float64
	humidity    float64
	gas         float64
}

func NewSimulated(failureRate float64, seed int64) *Simulated {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulated{
		FailureRate: failureRate,
		rng:         rand.New(rand.NewSource(seed)),
		temperature: 24,
		humidity:    50,
		gas:         300,
	}
}

func (s *Simulated) ReadClimate(ctx context.Context) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if s.rng.Float64() < s.FailureRate {
		return 0, 0, ErrUnavailable
	}

	s.temperature = clamp(s.temperature+s.rng.NormFloat64()*0.5, 0, 50)
	s.humidity = clamp(s.humidity+s.rng.NormFloat64()*1.5, 20, 90)

	// DHT11 resolution is a whole unit
	return math.Round(s.humidity), math.Round(s.temperature), nil
}

func (s *Simulated) ReadGasChannel(ctx context.Context, channel int) (int, error) {
	if channel < 0 || channel >= mcp3008Channels {
		return 0, ErrInvalidChannel
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.gas = clamp(s.gas+s.rng.NormFloat64()*10, 0, 1023)
	return int(s.gas), nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
