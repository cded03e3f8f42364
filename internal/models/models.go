package models

import "strconv"

// Location is a place the user selected, searched for, or saved.
// Saved-list identity is the exact Name; cache identity is the (lat, lon) key.
type Location struct {
	Lat     float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon     float64 `json:"lon" validate:"gte=-180,lte=180"`
	Name    string  `json:"name" validate:"required"`
	Country string  `json:"country,omitempty"`
	State   string  `json:"state,omitempty"`
}

// Key returns the cache key for a location, formed from its coordinates.
func (l Location) Key() string {
	return FormatKey(l.Lat, l.Lon)
}

// FormatKey builds a "<lat>-<lon>" cache key from raw coordinates.
func FormatKey(lat, lon float64) string {
	return formatCoord(lat) + "-" + formatCoord(lon)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CurrentWeather is a read-only snapshot of conditions for the selected
// location. A new snapshot replaces the old one wholesale; temperatures are
// integer degrees Celsius, sunrise/sunset are epoch milliseconds.
type CurrentWeather struct {
	Temperature int     `json:"temperature"`
	FeelsLike   int     `json:"feelsLike"`
	Description string  `json:"description"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
	Pressure    int     `json:"pressure"`
	Icon        string  `json:"icon"`
	City        string  `json:"city"`
	Country     string  `json:"country"`
	Sunrise     int64   `json:"sunrise"`
	Sunset      int64   `json:"sunset"`
	LastUpdated string  `json:"lastUpdated"`
}

// DailyForecastEntry is one day of the reduced forecast.
type DailyForecastEntry struct {
	Day         string  `json:"day"`
	Date        string  `json:"date"`
	Temp        int     `json:"temp"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
}

// SavedWeather is the compact per-location entry served by the batch
// endpoint and held by the saved-location cache. Timestamp is epoch millis
// of the fetch; the entry counts as stale one hour later.
type SavedWeather struct {
	Temp      int    `json:"temp"`
	Icon      string `json:"icon"`
	Timestamp int64  `json:"timestamp"`
}

// CityPhoto is the result of a place-photo lookup: a media URL the caller
// loads directly, never the photo bytes.
type CityPhoto struct {
	PhotoURL  string `json:"photoUrl"`
	PlaceName string `json:"placeName,omitempty"`
}
