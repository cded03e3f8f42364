package validation

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// ErrCoordinateMissing is returned when lat or lon is absent from the query.
var ErrCoordinateMissing = errors.New("missing latitude or longitude")

// ErrCoordinateInvalid is returned when lat or lon is not a number or is out
// of range (lat in [-90, 90], lon in [-180, 180]).
var ErrCoordinateInvalid = errors.New("invalid latitude or longitude")

// ErrQueryEmpty is returned when a search query is empty or whitespace-only.
var ErrQueryEmpty = errors.New("query is required")

// ErrQueryTooLong is returned when a search query exceeds the maximum length.
var ErrQueryTooLong = errors.New("query too long")

// ErrQueryInvalidChars is returned when a query contains disallowed characters.
var ErrQueryInvalidChars = errors.New("query contains invalid characters")

// ParseCoordinates validates a lat/lon query-parameter pair. The literal
// strings are returned unchanged (aside from trimming) so the proxy forwards
// exactly what the caller sent; range checks use the parsed values.
func ParseCoordinates(lat, lon string) (string, string, error) {
	lat = strings.TrimSpace(lat)
	lon = strings.TrimSpace(lon)
	if lat == "" || lon == "" {
		return "", "", ErrCoordinateMissing
	}

	latF, err := strconv.ParseFloat(lat, 64)
	if err != nil || latF < -90 || latF > 90 {
		return "", "", ErrCoordinateInvalid
	}
	lonF, err := strconv.ParseFloat(lon, 64)
	if err != nil || lonF < -180 || lonF > 180 {
		return "", "", ErrCoordinateInvalid
	}
	return lat, lon, nil
}

// ValidateQuery trims the input, enforces a maximum length (in runes), and
// restricts to letters (Unicode), digits, space, comma, period, apostrophe,
// and hyphen. Returns the trimmed string or an error suitable for a 400.
func ValidateQuery(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrQueryEmpty
	}
	if maxLen > 0 && len(r) > maxLen {
		return "", ErrQueryTooLong
	}
	for _, c := range r {
		if !isAllowedQueryRune(c) {
			return "", ErrQueryInvalidChars
		}
	}
	return s, nil
}

func isAllowedQueryRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '.', '\'', '-':
		return true
	}
	return false
}
