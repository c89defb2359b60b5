package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/polaris-foundation/polaris-locations-api/internal/service"
	"github.com/polaris-foundation/polaris-locations-api/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler serves spreadsheet exports.
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler creates an ExportHandler.
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportLocations GET /dhos/v1/location/export
// Accepts the same query string as search.
func (h *ExportHandler) ExportLocations(c *gin.Context) {
	q, ok := searchQuery(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportLocations(c.Request.Context(), q, visibilityFrom(c))
	if err != nil {
		if errors.Is(err, service.ErrExportGenerateFail) {
			response.ErrorWithDetails(c, http.StatusInternalServerError, 17101, "export failed", err.Error())
			return
		}
		handleLocationError(c, err)
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
