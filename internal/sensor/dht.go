package sensor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	iioTemperature = "in_temp_input"
	iioHumidity    = "in_humidityrelative_input"
)

// DHT reads a DHT11 through the kernel dht11 IIO driver. The driver does the
// single-wire timing and exposes milli-degrees and milli-percent.
type DHT struct {
	dir string
}

func NewDHT(deviceDir string) *DHT {
	return &DHT{dir: deviceDir}
}

func (d *DHT) ReadClimate(ctx context.Context) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	temperature, err := d.readMilli(iioTemperature)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	humidity, err := d.readMilli(iioHumidity)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return humidity, temperature, nil
}

func (d *DHT) readMilli(name string) (float64, error) {
	raw, err := os.ReadFile(filepath.Join(d.dir, name))
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", name, err)
	}

	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}

	return float64(v) / 1000, nil
}
