package units

import (
	"math"
	"testing"
)

func TestConvertTemperature(t *testing.T) {
	tests := []struct {
		name     string
		temp     float64
		from, to string
		want     float64
	}{
		{"celsius to fahrenheit", 20, Metric, Imperial, 68},
		{"freezing point", 0, Metric, Imperial, 32},
		{"negative celsius", -40, Metric, Imperial, -40},
		{"fahrenheit to celsius", 68, Imperial, Metric, 20},
		{"same unit is identity", 17.3, Metric, Metric, 17.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertTemperature(tt.temp, tt.from, tt.to)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ConvertTemperature(%v, %s, %s) = %v, want %v",
					tt.temp, tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestFormatTemperature(t *testing.T) {
	tests := []struct {
		temp float64
		unit string
		want string
	}{
		{17.6, Metric, "18°C"},
		{-0.6, Metric, "-1°C"},
		{64.4, Imperial, "64°F"},
	}
	for _, tt := range tests {
		if got := FormatTemperature(tt.temp, tt.unit); got != tt.want {
			t.Errorf("FormatTemperature(%v, %s) = %q, want %q", tt.temp, tt.unit, got, tt.want)
		}
	}
}

func TestFormatWindSpeed(t *testing.T) {
	if got := FormatWindSpeed(4.1, Metric); got != "4.1 m/s" {
		t.Errorf("metric wind = %q, want %q", got, "4.1 m/s")
	}
	if got := FormatWindSpeed(4.1, Imperial); got != "9.2 mph" {
		t.Errorf("imperial wind = %q, want %q", got, "9.2 mph")
	}
}

func TestWindDirection(t *testing.T) {
	tests := []struct {
		degrees float64
		want    string
	}{
		{0, "N"},
		{90, "E"},
		{180, "S"},
		{270, "W"},
		{22.5, "NNE"},
		{337.5, "NNW"},
		{359, "N"},
		{360, "N"},
		{450, "E"},
	}
	for _, tt := range tests {
		if got := WindDirection(tt.degrees); got != tt.want {
			t.Errorf("WindDirection(%v) = %q, want %q", tt.degrees, got, tt.want)
		}
	}
}

func TestIconURL(t *testing.T) {
	if got := IconURL("10d", "4x"); got != "https://openweathermap.org/img/wn/10d@4x.png" {
		t.Errorf("IconURL = %q", got)
	}
	if got := IconURL("10d", ""); got != "https://openweathermap.org/img/wn/10d@2x.png" {
		t.Errorf("IconURL default size = %q", got)
	}
	if got := IconURL("", "2x"); got != "" {
		t.Errorf("IconURL empty code = %q, want empty", got)
	}
}
