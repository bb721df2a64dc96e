package handlers

import (
	"net/http"
	"time"

	"cropguard-web/models"
	"cropguard-web/services"
	"cropguard-web/version"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports liveness and build information
type HealthHandler struct {
	sessions *services.SessionStore
	info     version.Info
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(sessions *services.SessionStore, info version.Info) *HealthHandler {
	return &HealthHandler{sessions: sessions, info: info}
}

// HealthCheck handles health check requests
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:         "healthy",
		Service:        h.info.Service,
		Version:        h.info.Version,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ActiveSessions: h.sessions.Len(),
	})
}

// Version returns the build information
func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, h.info)
}
