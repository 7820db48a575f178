package model

import (
	"strconv"
	"strings"
)

const MaskChar = "*"

// Mask replaces every character of s with MaskChar.
func Mask(s string) string {
	return strings.Repeat(MaskChar, len(s))
}

func MaskFloat(v float64) string {
	return Mask(FormatFloat(v))
}

func MaskInt(v int) string {
	return Mask(strconv.Itoa(v))
}

// MaskedSample is the trace-only view of a Sample.
type MaskedSample struct {
	Temperature string
	Humidity    string
	AirQuality  string
}

func (s Sample) Masked() MaskedSample {
	return MaskedSample{
		Temperature: MaskFloat(s.Temperature),
		Humidity:    MaskFloat(s.Humidity),
		AirQuality:  MaskInt(s.AirQuality),
	}
}
