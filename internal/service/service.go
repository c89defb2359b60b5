package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/polaris-foundation/polaris-locations-api/internal/repository"
	"github.com/polaris-foundation/polaris-locations-api/pkg/events"
)

// ChainCache stores encoded ancestor chains keyed by location uuid under a
// generation that Invalidate advances. Implemented by pkg/redis.Client.
type ChainCache interface {
	GetChains(ctx context.Context, uuids []string) (int64, map[string][]byte, error)
	PutChains(ctx context.Context, gen int64, chains map[string][]byte) error
	Invalidate(ctx context.Context) error
}

// EventPublisher emits location change events. Implemented by pkg/events.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.LocationEvent) error
}

// Service aggregates the services.
type Service struct {
	Location LocationService
	Export   ExportService
}

// NewService wires the services. cache and publisher may be nil.
func NewService(
	repo *repository.Repository,
	cache ChainCache,
	publisher EventPublisher,
	logger *zap.Logger,
) *Service {
	location := NewLocationService(repo, cache, publisher, logger)
	return &Service{
		Location: location,
		Export:   NewExportService(location, logger),
	}
}
