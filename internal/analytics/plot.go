package analytics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

var ErrNoData = errors.New("no data to plot")

// Plot draws the three series against time and saves the chart to path.
// The image format follows the file extension.
func Plot(points []Point, path string) error {
	if len(points) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = "Sensor readings"
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "Reading"
	p.X.Tick.Marker = plot.TimeTicks{Format: "01-02 15:04"}
	p.Add(plotter.NewGrid())

	series := []struct {
		name  string
		value func(Point) float64
	}{
		{"Temperature (°C)", func(pt Point) float64 { return pt.Temperature }},
		{"Humidity (%)", func(pt Point) float64 { return pt.Humidity }},
		{"Air quality", func(pt Point) float64 { return pt.AirQuality }},
	}

	drawn := 0
	for i, s := range series {
		xys := make(plotter.XYs, 0, len(points))
		for _, pt := range points {
			v := s.value(pt)
			if math.IsNaN(v) {
				continue
			}
			xys = append(xys, plotter.XY{X: float64(pt.Time.Unix()), Y: v})
		}
		if len(xys) == 0 {
			continue
		}

		line, scatter, err := plotter.NewLinePoints(xys)
		if err != nil {
			return fmt.Errorf("failed to build %s series: %w", s.name, err)
		}
		line.Color = plotutil.Color(i)
		scatter.Color = plotutil.Color(i)
		scatter.Shape = plotutil.Shape(i)

		p.Add(line, scatter)
		p.Legend.Add(s.name, line, scatter)
		drawn++
	}

	if drawn == 0 {
		return ErrNoData
	}

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
