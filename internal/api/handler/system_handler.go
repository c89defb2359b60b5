package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/polaris-foundation/polaris-locations-api/internal/service"
	"github.com/polaris-foundation/polaris-locations-api/pkg/response"
)

// SystemHandler serves liveness, version and the development reset.
type SystemHandler struct {
	locationSvc service.LocationService
	version     string
}

// NewSystemHandler creates a SystemHandler.
func NewSystemHandler(locationSvc service.LocationService, version string) *SystemHandler {
	return &SystemHandler{locationSvc: locationSvc, version: version}
}

// Running GET /running
func (h *SystemHandler) Running(c *gin.Context) {
	response.OK(c, gin.H{"running": true})
}

// Version GET /version
func (h *SystemHandler) Version(c *gin.Context) {
	response.OK(c, gin.H{"version": h.version})
}

// DropData POST /drop_data
// Only routed when server.allow_drop_data is set.
func (h *SystemHandler) DropData(c *gin.Context) {
	start := time.Now()
	if err := h.locationSvc.Reset(c.Request.Context()); err != nil {
		_ = c.Error(err)
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{
		"complete":   true,
		"time_taken": time.Since(start).String(),
	})
}
