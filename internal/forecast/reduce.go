package forecast

import (
	"math"
	"time"

	"github.com/mvikstrom/weatherdash/internal/models"
)

// MaxDays caps the reduced forecast length.
const MaxDays = 5

// Sample is one 3-hourly forecast observation in location-local time.
type Sample struct {
	Time        time.Time
	Temp        float64
	Description string
	Icon        string
	Humidity    int
	WindSpeed   float64
}

// Reduce collapses 3-hourly samples into at most MaxDays daily entries. Each
// calendar day keeps the single sample whose hour is closest to noon; ties go
// to the sample seen first (strict less-than). Days are emitted in the order
// they first appear in the input, not re-sorted.
func Reduce(samples []Sample) []models.DailyForecastEntry {
	type pick struct {
		hour  int
		entry models.DailyForecastEntry
	}

	picks := make(map[string]pick)
	var order []string

	for _, s := range samples {
		day := s.Time.Format("2006-01-02")
		hour := s.Time.Hour()

		cur, seen := picks[day]
		if !seen {
			order = append(order, day)
		}
		if !seen || noonDistance(hour) < noonDistance(cur.hour) {
			picks[day] = pick{hour: hour, entry: entryFor(s)}
		}
	}

	if len(order) > MaxDays {
		order = order[:MaxDays]
	}
	out := make([]models.DailyForecastEntry, 0, len(order))
	for _, day := range order {
		out = append(out, picks[day].entry)
	}
	return out
}

func noonDistance(hour int) int {
	d := hour - 12
	if d < 0 {
		return -d
	}
	return d
}

func entryFor(s Sample) models.DailyForecastEntry {
	return models.DailyForecastEntry{
		Day:         s.Time.Format("Mon"),
		Date:        s.Time.Format("Jan 2"),
		Temp:        int(math.Round(s.Temp)),
		Description: s.Description,
		Icon:        s.Icon,
		Humidity:    s.Humidity,
		WindSpeed:   s.WindSpeed,
	}
}
