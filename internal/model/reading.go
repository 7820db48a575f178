package model

import (
	"strconv"
	"strings"
	"time"
)

// AirQualityFault marks a cycle whose gas channel conversion failed.
const AirQualityFault = -1

// Reading is the output of one acquisition cycle. Climate fields are always
// valid; air quality may carry AirQualityFault.
type Reading struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	AirQuality  int       `json:"air_quality"`
}

func NewReading(temperature, humidity float64, airQuality int) Reading {
	return Reading{
		Timestamp:   time.Now().UTC(),
		Temperature: temperature,
		Humidity:    humidity,
		AirQuality:  airQuality,
	}
}

func (r Reading) AirQualityFaulted() bool {
	return r.AirQuality == AirQualityFault
}

func (r Reading) Sample() Sample {
	return Sample{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		AirQuality:  r.AirQuality,
	}
}

// Sample is the key/value set pushed to the telemetry endpoint.
type Sample struct {
	Temperature float64 `json:"field1"`
	Humidity    float64 `json:"field2"`
	AirQuality  int     `json:"field3"`
}

// Fields returns the sample in telemetry field order, formatted the same way
// the values are masked.
func (s Sample) Fields() (temperature, humidity, airQuality string) {
	return FormatFloat(s.Temperature), FormatFloat(s.Humidity), strconv.Itoa(s.AirQuality)
}

// FormatFloat renders a float the way the device has always reported it:
// shortest representation, whole numbers keep a trailing ".0".
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if strings.ContainsAny(s, ".eNI") {
		return s
	}
	return s + ".0"
}
