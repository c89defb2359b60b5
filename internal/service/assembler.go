package service

import (
	"context"
	"time"

	"github.com/polaris-foundation/polaris-locations-api/internal/dto"
	"github.com/polaris-foundation/polaris-locations-api/internal/model"
)

// assemble converts rows into responses. children is nil unless requested.
// In full shape every parent is replaced by its chain, resolved once for the batch.
func (s *locationService) assemble(ctx context.Context, locs []model.Location, children map[string][]string, compact bool) ([]*dto.LocationResponse, error) {
	out := make([]*dto.LocationResponse, 0, len(locs))
	for i := range locs {
		resp := toLocationResponse(&locs[i], compact)
		if children != nil {
			resp.Children = children[locs[i].UUID]
			if resp.Children == nil {
				resp.Children = []string{}
			}
		}
		out = append(out, resp)
	}

	if compact {
		return out, nil
	}

	seen := make(map[string]bool)
	var parentIDs []string
	for i := range locs {
		if pid := locs[i].ParentID; pid != nil && !seen[*pid] {
			seen[*pid] = true
			parentIDs = append(parentIDs, *pid)
		}
	}

	chains, err := s.resolveChains(ctx, parentIDs)
	if err != nil {
		return nil, err
	}
	for _, resp := range out {
		if resp.Parent == nil {
			continue
		}
		chain, ok := chains[resp.Parent.UUID]
		if !ok {
			resp.Parent = nil
			continue
		}
		resp.Parent.Chain = chain
	}
	return out, nil
}

func toLocationResponse(loc *model.Location, compact bool) *dto.LocationResponse {
	resp := &dto.LocationResponse{
		UUID:               loc.UUID,
		LocationType:       loc.LocationType,
		ODSCode:            loc.ODSCode,
		DisplayName:        loc.DisplayName,
		Active:             loc.Active,
		ScoreSystemDefault: loc.ScoreSystemDefault,
	}
	if loc.ParentID != nil {
		resp.Parent = &dto.ParentRef{UUID: *loc.ParentID}
	}
	if compact {
		return resp
	}

	products := make([]dto.ProductResponse, 0, len(loc.Products))
	for i := range loc.Products {
		products = append(products, toProductResponse(&loc.Products[i]))
	}
	resp.LocationDetail = &dto.LocationDetail{
		Products:     products,
		AddressLine1: loc.AddressLine1,
		AddressLine2: loc.AddressLine2,
		AddressLine3: loc.AddressLine3,
		AddressLine4: loc.AddressLine4,
		Postcode:     loc.Postcode,
		Country:      loc.Country,
		Locality:     loc.Locality,
		Region:       loc.Region,
		Created:      loc.Created,
		CreatedBy:    loc.CreatedBy,
		Modified:     loc.Modified,
		ModifiedBy:   loc.ModifiedBy,
	}
	return resp
}

func toProductResponse(p *model.LocationProduct) dto.ProductResponse {
	resp := dto.ProductResponse{
		UUID:              p.UUID,
		ProductName:       p.ProductName,
		OpenedDate:        dto.NewDate(time.Time(p.OpenedDate)),
		ClosedReason:      p.ClosedReason,
		ClosedReasonOther: p.ClosedReasonOther,
		Created:           p.Created,
		CreatedBy:         p.CreatedBy,
		Modified:          p.Modified,
		ModifiedBy:        p.ModifiedBy,
	}
	if p.ClosedDate != nil {
		closed := dto.NewDate(time.Time(*p.ClosedDate))
		resp.ClosedDate = &closed
	}
	return resp
}
