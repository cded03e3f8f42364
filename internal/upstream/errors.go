package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential is returned when a client is invoked without its
	// server-held API key.
	ErrMissingCredential = errors.New("missing API credential")

	// ErrMalformedResponse is returned when a 2xx upstream body lacks an
	// expected field. Treated as an upstream error, never a silent zero value.
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrNoPlace is returned by the photo lookup when the text search yields
	// no places for the city.
	ErrNoPlace = errors.New("no places found for this city")

	// ErrNoPhoto is returned when no found place carries a photo.
	ErrNoPhoto = errors.New("no photos found for this city")
)

// StatusError mirrors an upstream non-2xx response so handlers can propagate
// the original status code with the upstream's status text and body.
type StatusError struct {
	API        string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: upstream returned %s", e.API, e.Status)
}

// AsStatusError unwraps err into a StatusError if one is in the chain.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
