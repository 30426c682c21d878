// ===============================
// FILE: internal/handlers/api/v1/health/health_controller.go
// ===============================

package health

import (
	"net/http"
	"time"

	"wavehub/internal/response"
	"wavehub/internal/services"
	"wavehub/internal/utils/appinfo"

	"go.uber.org/zap"
)

// HealthController serves the liveness/readiness endpoint.
type HealthController struct {
	collection *services.ServiceCollection
	writer     *response.Writer
	logger     *zap.Logger
	startTime  time.Time
}

// NewHealthController creates a health controller.
func NewHealthController(collection *services.ServiceCollection, writer *response.Writer, logger *zap.Logger) *HealthController {
	return &HealthController{
		collection: collection,
		writer:     writer,
		logger:     logger,
		startTime:  time.Now(),
	}
}

// Healthz pings the database and cache. 200 when both answer, 503
// otherwise, with per-dependency detail either way.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	deps := c.collection.Health(r.Context())

	status := http.StatusOK
	overall := "healthy"
	for _, v := range deps {
		if v != "healthy" {
			status = http.StatusServiceUnavailable
			overall = "degraded"
			break
		}
	}

	c.writer.JSON(w, r, status, map[string]interface{}{
		"status":       overall,
		"version":      appinfo.Version(),
		"dependencies": deps,
		"uptime":       time.Since(c.startTime).String(),
	})
}
