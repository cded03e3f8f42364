// Package units handles display-unit conversion and formatting. Upstream
// data is always metric; imperial is derived at render time.
package units

import (
	"fmt"
	"math"
)

// Unit systems for display.
const (
	Metric   = "metric"
	Imperial = "imperial"
)

// Valid reports whether unit is a known unit system.
func Valid(unit string) bool {
	return unit == Metric || unit == Imperial
}

// ConvertTemperature converts a temperature between unit systems. Same-unit
// conversion is the identity.
func ConvertTemperature(temp float64, fromUnit, toUnit string) float64 {
	switch {
	case fromUnit == toUnit:
		return temp
	case fromUnit == Metric && toUnit == Imperial:
		return temp*9/5 + 32
	case fromUnit == Imperial && toUnit == Metric:
		return (temp - 32) * 5 / 9
	default:
		return temp
	}
}

// FormatTemperature rounds and renders a temperature with its unit symbol,
// e.g. "18°C" or "64°F".
func FormatTemperature(temp float64, unit string) string {
	symbol := "°C"
	if unit == Imperial {
		symbol = "°F"
	}
	return fmt.Sprintf("%d%s", int(math.Round(temp)), symbol)
}

// FormatWindSpeed renders a metric wind speed (m/s) to one decimal in the
// requested unit system, e.g. "4.1 m/s" or "9.2 mph".
func FormatWindSpeed(metersPerSecond float64, unit string) string {
	if unit == Imperial {
		return fmt.Sprintf("%.1f mph", ConvertWindSpeed(metersPerSecond, Imperial))
	}
	return fmt.Sprintf("%.1f m/s", metersPerSecond)
}

// ConvertWindSpeed converts a metric wind speed (m/s) for display in the
// requested unit system (mph for imperial).
func ConvertWindSpeed(metersPerSecond float64, toUnit string) float64 {
	if toUnit == Imperial {
		return metersPerSecond * 2.2369362920544
	}
	return metersPerSecond
}

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE",
	"E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW",
	"W", "WNW", "NW", "NNW",
}

// WindDirection maps a bearing in degrees to its 16-point compass name.
func WindDirection(degrees float64) string {
	index := int(math.Round(math.Mod(degrees, 360)/22.5)) % 16
	if index < 0 {
		index += 16
	}
	return compassPoints[index]
}

// IconURL builds the OpenWeather icon image URL for a condition icon code.
// size is the upstream scale suffix, "2x" or "4x"; an empty code yields an
// empty URL.
func IconURL(iconCode, size string) string {
	if iconCode == "" {
		return ""
	}
	if size == "" {
		size = "2x"
	}
	return fmt.Sprintf("https://openweathermap.org/img/wn/%s@%s.png", iconCode, size)
}
