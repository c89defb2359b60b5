package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/polaris-foundation/polaris-locations-api/internal/api/middleware"
	"github.com/polaris-foundation/polaris-locations-api/internal/service"
	"github.com/polaris-foundation/polaris-locations-api/pkg/response"
)

// Scope names carried by bearer tokens.
const (
	ScopeWriteLocation     = "write:location"
	ScopeWriteGDMLocation  = "write:gdm_location"
	ScopeWriteSENDLocation = "write:send_location"
	ScopeReadLocationAll   = "read:location_all"
	ScopeReadGDMAll        = "read:gdm_location_all"
	ScopeReadGDMLocation   = "read:gdm_location"
	ScopeReadSENDLocation  = "read:send_location"
	ScopeReadLocationByODS = "read:location_by_ods"
)

// LocationIDsHeader lists the locations a clinician is attached to.
const LocationIDsHeader = "X-Location-Ids"

// MustGetUserID returns the authenticated subject, writing a 401 when absent.
// Callers return immediately when ok is false.
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(middleware.ContextUserID)
	if !exists {
		response.Unauthorized(c, 10002, "not authenticated")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "not authenticated")
		return "", false
	}
	return s, true
}

// visibilityFrom restricts clinicians to the locations in X-Location-Ids.
// Tokens with a read-all scope are unrestricted.
func visibilityFrom(c *gin.Context) *service.Visibility {
	if !middleware.HasScope(c, ScopeReadGDMLocation) ||
		middleware.HasScope(c, ScopeReadGDMAll) ||
		middleware.HasScope(c, ScopeReadLocationAll) {
		return nil
	}

	vis := &service.Visibility{UUIDs: []string{}}
	for _, id := range strings.Split(c.GetHeader(LocationIDsHeader), ",") {
		if id = strings.TrimSpace(id); id != "" {
			vis.UUIDs = append(vis.UUIDs, id)
		}
	}
	return vis
}
