package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/polaris-foundation/polaris-locations-api/internal/dto"
	"github.com/polaris-foundation/polaris-locations-api/internal/model"
	"github.com/polaris-foundation/polaris-locations-api/internal/repository"
	apperrors "github.com/polaris-foundation/polaris-locations-api/pkg/errors"
	"github.com/polaris-foundation/polaris-locations-api/pkg/events"
)

// CreateMany inserts every location of reqs in one transaction. A parent may
// be another member of the batch, referenced by uuid or ods code. Any failure
// leaves the store unchanged.
func (s *locationService) CreateMany(ctx context.Context, reqs []dto.CreateLocationRequest, actor string) (*dto.CreateManyResponse, error) {
	if len(reqs) == 0 {
		return &dto.CreateManyResponse{Created: 0}, nil
	}

	// assign ids up front so members can reference each other
	ids := make([]string, len(reqs))
	batchIDs := make(map[string]bool, len(reqs))
	batchODS := make(map[string]string)
	for i := range reqs {
		ids[i] = uuid.NewString()
		if reqs[i].UUID != nil {
			ids[i] = *reqs[i].UUID
		}
		if batchIDs[ids[i]] {
			return nil, apperrors.Duplicate(nil, "duplicate uuid creating locations")
		}
		batchIDs[ids[i]] = true
		if code := reqs[i].ODSCode; code != nil {
			batchODS[*code] = ids[i]
		}
	}

	var created []string
	err := s.runInTx(ctx, func(tx *repository.Repository) error {
		parents, err := s.resolveBatchParents(ctx, tx, reqs, batchIDs, batchODS)
		if err != nil {
			return err
		}

		now := s.now()
		locs := make([]*model.Location, len(reqs))
		for i := range reqs {
			req := reqs[i]
			req.UUID = &ids[i]
			loc, err := newLocationModel(&req, parents[i], actor, now)
			if err != nil {
				return err
			}
			locs[i] = loc
		}

		ordered, err := parentsFirst(locs)
		if err != nil {
			return err
		}

		if err := tx.Location.CreateMany(ctx, ordered); err != nil {
			if errors.Is(err, repository.ErrDuplicateODSCode) {
				return apperrors.Duplicate(err, "duplicate ods_code creating locations")
			}
			s.logger.Error("bulk create locations failed", zap.Int("count", len(ordered)), zap.Error(err))
			return err
		}
		created = ids
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.LocationsCreated, created, actor)
	return &dto.CreateManyResponse{Created: len(created)}, nil
}

// resolveBatchParents returns the parent uuid of each request. References
// outside the batch are checked with one query per kind.
func (s *locationService) resolveBatchParents(
	ctx context.Context,
	tx *repository.Repository,
	reqs []dto.CreateLocationRequest,
	batchIDs map[string]bool,
	batchODS map[string]string,
) ([]*string, error) {
	var externalCodes, externalIDs []string
	for i := range reqs {
		if code := reqs[i].ParentODSCode; code != nil {
			if _, ok := batchODS[*code]; !ok {
				externalCodes = append(externalCodes, *code)
			}
		} else if p := reqs[i].Parent; p != nil && !batchIDs[*p] {
			externalIDs = append(externalIDs, *p)
		}
	}

	byCode, err := tx.Location.UUIDsByODSCodes(ctx, externalCodes)
	if err != nil {
		s.logger.Error("resolve parent ods codes failed", zap.Error(err))
		return nil, err
	}
	existing, err := tx.Location.ExistingUUIDs(ctx, externalIDs)
	if err != nil {
		s.logger.Error("resolve parent uuids failed", zap.Error(err))
		return nil, err
	}

	parents := make([]*string, len(reqs))
	for i := range reqs {
		req := &reqs[i]
		switch {
		case req.ParentODSCode != nil:
			id, ok := batchODS[*req.ParentODSCode]
			if !ok {
				id, ok = byCode[*req.ParentODSCode]
			}
			if !ok {
				return nil, apperrors.NotFound("location with ods code '%s' not found", *req.ParentODSCode)
			}
			if req.Parent != nil && *req.Parent != id {
				return nil, apperrors.InvalidArgument("parent '%s' does not match parent_ods_code '%s'", *req.Parent, *req.ParentODSCode)
			}
			parents[i] = &id
		case req.Parent != nil:
			if !batchIDs[*req.Parent] && !existing[*req.Parent] {
				return nil, apperrors.NotFound("parent location '%s' not found", *req.Parent)
			}
			id := *req.Parent
			parents[i] = &id
		}
	}
	return parents, nil
}

// parentsFirst orders locs so every member of the batch follows its parent.
func parentsFirst(locs []*model.Location) ([]*model.Location, error) {
	byID := make(map[string]*model.Location, len(locs))
	for _, l := range locs {
		byID[l.UUID] = l
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(locs))
	ordered := make([]*model.Location, 0, len(locs))

	var visit func(l *model.Location) error
	visit = func(l *model.Location) error {
		switch state[l.UUID] {
		case done:
			return nil
		case visiting:
			return apperrors.InvalidArgument("locations in the batch form a parent cycle at '%s'", l.UUID)
		}
		state[l.UUID] = visiting
		if l.ParentID != nil {
			if parent, ok := byID[*l.ParentID]; ok {
				if err := visit(parent); err != nil {
					return err
				}
			}
		}
		state[l.UUID] = done
		ordered = append(ordered, l)
		return nil
	}

	for _, l := range locs {
		if err := visit(l); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
