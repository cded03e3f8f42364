package httpapi

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mvikstrom/weatherdash/internal/lifecycle"
)

// HealthConfig holds the health handler's knowledge of the deployment.
type HealthConfig struct {
	// PhotoAPIConfigured reports whether the places credential is set;
	// the photo feature degrades gracefully when it is not.
	PhotoAPIConfigured bool
	// StorePing, when set, checks persistence reachability. Used when the
	// store backend is memcached.
	StorePing func() error
}

// HealthHandler serves GET /health, logging status transitions.
type HealthHandler struct {
	config   *HealthConfig
	logger   *zap.Logger
	mu       sync.Mutex
	prevStat string
}

// NewHealthHandler returns a HealthHandler.
func NewHealthHandler(config *HealthConfig, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{config: config, logger: logger}
}

// GetHealth handles GET /health. Shutting-down and an unreachable store are
// reported as 503; a missing photo credential only degrades the photo check.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	statusCode := http.StatusOK
	checks := map[string]string{
		"weatherApi": "healthy",
	}

	if h.config != nil {
		if h.config.PhotoAPIConfigured {
			checks["placesApi"] = "healthy"
		} else {
			checks["placesApi"] = "unconfigured"
		}
		if h.config.StorePing != nil {
			if h.config.StorePing() == nil {
				checks["store"] = "healthy"
			} else {
				checks["store"] = "unhealthy"
				status = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}
	}

	if lifecycle.IsShuttingDown() {
		status = "shutting-down"
		statusCode = http.StatusServiceUnavailable
	}

	h.mu.Lock()
	if h.prevStat != "" && h.prevStat != status && h.logger != nil {
		h.logger.Info("health status transition",
			zap.String("previous_status", h.prevStat),
			zap.String("current_status", status))
	}
	h.prevStat = status
	h.mu.Unlock()

	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"service":   "weatherdash",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
