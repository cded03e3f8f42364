package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/mvikstrom/weatherdash/internal/upstream"
)

// errorBody is the JSON error envelope shared by every endpoint.
type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw writes an upstream JSON body verbatim.
func writeRaw(w http.ResponseWriter, status int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError writes the error envelope, attaching the correlation ID from
// request context when present.
func writeError(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	writeErrorDetails(w, r, status, errMsg, "", "")
}

func writeErrorDetails(w http.ResponseWriter, r *http.Request, status int, errMsg, message, details string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, errorBody{
		Error:     errMsg,
		Message:   message,
		Details:   details,
		RequestID: corrID,
	})
}

// writeUpstreamError maps a client error to the shared taxonomy: credential
// missing is an internal error, a mirrored upstream status stays mirrored,
// no-result lookups are 404, an open breaker is 503, a malformed 2xx body is
// 502, and anything else is a 500 with the given generic message.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error, genericMsg string) {
	logger := loggerFromRequest(r)

	switch {
	case errors.Is(err, upstream.ErrMissingCredential):
		writeError(w, r, http.StatusInternalServerError, "API key configuration missing")
	case errors.Is(err, upstream.ErrNoPlace):
		writeError(w, r, http.StatusNotFound, "No places found for this city")
	case errors.Is(err, upstream.ErrNoPhoto):
		writeError(w, r, http.StatusNotFound, "No photos found for this city")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		writeError(w, r, http.StatusServiceUnavailable, genericMsg)
	case errors.Is(err, upstream.ErrMalformedResponse):
		writeErrorDetails(w, r, http.StatusBadGateway, genericMsg, err.Error(), "")
	default:
		if se, ok := upstream.AsStatusError(err); ok {
			writeErrorDetails(w, r, se.StatusCode, genericMsg, se.Status, se.Body)
			break
		}
		writeError(w, r, http.StatusInternalServerError, genericMsg)
	}

	if logger != nil {
		logger.Debug("upstream error", zap.Error(err))
	}
}

func loggerFromRequest(r *http.Request) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok {
		return logger
	}
	return nil
}
