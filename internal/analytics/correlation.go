// Package analytics computes pairwise Pearson correlation over recent
// readings and renders them as a chart.
package analytics

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/stat"
)

const DefaultSamples = 20

type Strength string

const (
	StrongPositive Strength = "strong positive"
	WeakPositive   Strength = "weak positive"
	WeakNegative   Strength = "weak negative"
	StrongNegative Strength = "strong negative"
)

// Classify buckets r by fixed thresholds. Anything outside the first three
// buckets, including r == 0 and NaN, is reported as strong negative.
func Classify(r float64) Strength {
	switch {
	case r > 0.5:
		return StrongPositive
	case r > 0 && r <= 0.5:
		return WeakPositive
	case r >= -0.5 && r < 0:
		return WeakNegative
	default:
		return StrongNegative
	}
}

type Pair struct {
	Name     string
	R        float64
	N        int
	Strength Strength
}

type Report struct {
	Samples int
	Pairs   []Pair
}

// Correlate computes r for temperature/humidity, temperature/air quality and
// humidity/air quality. Rows with NaN in either column are dropped for that
// pair only; fewer than two usable rows yields NaN.
func Correlate(points []Point) Report {
	temperature := make([]float64, len(points))
	humidity := make([]float64, len(points))
	airQuality := make([]float64, len(points))
	for i, p := range points {
		temperature[i] = p.Temperature
		humidity[i] = p.Humidity
		airQuality[i] = p.AirQuality
	}

	return Report{
		Samples: len(points),
		Pairs: []Pair{
			pair("Temperature ↔ Humidity", temperature, humidity),
			pair("Temperature ↔ Air Quality", temperature, airQuality),
			pair("Humidity ↔ Air Quality", humidity, airQuality),
		},
	}
}

func pair(name string, x, y []float64) Pair {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}

	r := math.NaN()
	if len(xs) >= 2 {
		r = stat.Correlation(xs, ys, nil)
	}

	return Pair{Name: name, R: r, N: len(xs), Strength: Classify(r)}
}

func (r Report) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Correlation analysis over %d samples:\n", r.Samples); err != nil {
		return err
	}
	for _, p := range r.Pairs {
		if _, err := fmt.Fprintf(w, "  %-26s %6.2f  %s (n=%d)\n", p.Name+":", p.R, p.Strength, p.N); err != nil {
			return err
		}
	}
	return nil
}
