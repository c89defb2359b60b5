package handler

import (
	"github.com/polaris-foundation/polaris-locations-api/config"
	"github.com/polaris-foundation/polaris-locations-api/internal/service"
)

// Handler groups the HTTP handlers.
type Handler struct {
	Location *LocationHandler
	Export   *ExportHandler
	System   *SystemHandler
}

// NewHandler builds the handlers over svc.
func NewHandler(svc *service.Service, cfg *config.ServerConfig) *Handler {
	return &Handler{
		Location: NewLocationHandler(svc.Location),
		Export:   NewExportHandler(svc.Export),
		System:   NewSystemHandler(svc.Location, cfg.Version),
	}
}
