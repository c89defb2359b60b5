package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polaris-foundation/polaris-locations-api/internal/api/middleware"
	"github.com/polaris-foundation/polaris-locations-api/internal/dto"
	"github.com/polaris-foundation/polaris-locations-api/internal/service"
	apperrors "github.com/polaris-foundation/polaris-locations-api/pkg/errors"
	"github.com/polaris-foundation/polaris-locations-api/pkg/response"
)

// LocationHandler serves /dhos/v1/location.
type LocationHandler struct {
	locationSvc service.LocationService
}

// NewLocationHandler creates a LocationHandler.
func NewLocationHandler(locationSvc service.LocationService) *LocationHandler {
	return &LocationHandler{locationSvc: locationSvc}
}

// CreateLocation POST /dhos/v1/location
func (h *LocationHandler) CreateLocation(c *gin.Context) {
	var req dto.CreateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	location, err := h.locationSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		handleLocationError(c, err)
		return
	}

	response.OK(c, location)
}

// CreateLocations POST /dhos/v1/location/bulk
func (h *LocationHandler) CreateLocations(c *gin.Context) {
	var reqs []dto.CreateLocationRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		bindError(c, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.locationSvc.CreateMany(c.Request.Context(), reqs, callerID)
	if err != nil {
		handleLocationError(c, err)
		return
	}

	response.OK(c, result)
}

// UpdateLocation PATCH /dhos/v1/location/:location_id
func (h *LocationHandler) UpdateLocation(c *gin.Context) {
	var req dto.UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	location, err := h.locationSvc.Update(c.Request.Context(), c.Param("location_id"), &req, callerID)
	if err != nil {
		handleLocationError(c, err)
		return
	}

	response.OK(c, location)
}

// GetLocation GET /dhos/v1/location/:location_id
//
// With return_parent_of_type the nearest ancestor of that type is returned
// instead of the location itself.
func (h *LocationHandler) GetLocation(c *gin.Context) {
	var form dto.LocationGetForm
	if err := c.ShouldBindQuery(&form); err != nil {
		response.BadRequest(c, 10001, "invalid query parameters")
		return
	}

	id := c.Param("location_id")
	var (
		location *dto.LocationResponse
		err      error
	)
	if form.ReturnParentOfType != "" {
		location, err = h.locationSvc.GetParentOfType(c.Request.Context(), id, form.ReturnParentOfType)
	} else {
		location, err = h.locationSvc.GetByID(c.Request.Context(), id, form.Children)
	}
	if err != nil {
		handleLocationError(c, err)
		return
	}

	response.OK(c, location)
}

// SearchLocations GET /dhos/v1/location/search
func (h *LocationHandler) SearchLocations(c *gin.Context) {
	q, ok := searchQuery(c)
	if !ok {
		return
	}
	h.search(c, q)
}

// SearchLocationsByUUID POST /dhos/v1/location/search with a uuid list body.
func (h *LocationHandler) SearchLocationsByUUID(c *gin.Context) {
	q, ok := searchQuery(c)
	if !ok {
		return
	}

	var uuids []string
	if err := c.ShouldBindJSON(&uuids); err != nil {
		bindError(c, err)
		return
	}
	q.UUIDs = uuids

	h.search(c, q)
}

func (h *LocationHandler) search(c *gin.Context, q *dto.LocationSearchQuery) {
	result, err := h.locationSvc.Search(c.Request.Context(), q, visibilityFrom(c))
	if err != nil {
		handleLocationError(c, err)
		return
	}

	response.OK(c, result)
}

// searchQuery binds the search query string. Filtering by ods code needs
// its own scope.
func searchQuery(c *gin.Context) (*dto.LocationSearchQuery, bool) {
	var form dto.LocationSearchForm
	if err := c.ShouldBindQuery(&form); err != nil {
		response.BadRequest(c, 10001, "invalid query parameters")
		return nil, false
	}

	q, err := form.Query()
	if err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid query parameters", err.Error())
		return nil, false
	}
	if q.ODSCode != nil && !middleware.HasScope(c, ScopeReadLocationByODS) {
		response.Forbidden(c, 10003, "searching by ods_code requires "+ScopeReadLocationByODS)
		return nil, false
	}
	return q, true
}

func bindError(c *gin.Context, err error) {
	if middleware.IsBodyTooLarge(err) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "request body too large")
		return
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid request body", err.Error())
}

// handleLocationError maps service errors onto status codes.
func handleLocationError(c *gin.Context, err error) {
	switch apperrors.KindOf(err) {
	case apperrors.KindNotFound:
		response.NotFound(c, 17001, err.Error())
	case apperrors.KindDuplicateResource:
		response.Conflict(c, 17002, err.Error())
	case apperrors.KindInvalidArgument:
		response.BadRequest(c, 17003, err.Error())
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
