package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/polaris-foundation/polaris-locations-api/internal/dto"
	"github.com/polaris-foundation/polaris-locations-api/internal/repository"
)

// resolveChains returns the nested ancestor chain starting at each of ids.
// Ids that do not exist are absent from the result.
func (s *locationService) resolveChains(ctx context.Context, ids []string) (map[string]*dto.ParentResponse, error) {
	out := make(map[string]*dto.ParentResponse, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	misses := ids
	var gen int64
	if s.cache != nil {
		g, cached, err := s.cache.GetChains(ctx, ids)
		if err != nil {
			s.logger.Warn("ancestor cache read failed", zap.Error(err))
		} else {
			gen = g
			misses = misses[:0:0]
			for _, id := range ids {
				raw, ok := cached[id]
				if !ok {
					misses = append(misses, id)
					continue
				}
				var chain dto.ParentResponse
				if err := json.Unmarshal(raw, &chain); err != nil {
					misses = append(misses, id)
					continue
				}
				out[id] = &chain
			}
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	nodes, err := s.repo.Hierarchy.Ancestors(ctx, misses)
	if err != nil {
		s.logger.Error("resolve ancestors failed", zap.Int("count", len(misses)), zap.Error(err))
		return nil, err
	}
	built := buildChains(nodes, misses)
	for id, chain := range built {
		out[id] = chain
	}

	if s.cache != nil && len(built) > 0 {
		encoded := make(map[string][]byte, len(built))
		for id, chain := range built {
			raw, err := json.Marshal(chain)
			if err != nil {
				continue
			}
			encoded[id] = raw
		}
		if err := s.cache.PutChains(ctx, gen, encoded); err != nil {
			s.logger.Warn("ancestor cache write failed", zap.Error(err))
		}
	}

	return out, nil
}

// buildChains links the flat closure rows into nested chains for wanted.
// A parent missing from nodes ends the chain. Nodes are shared between
// chains; a cycle in stored data is cut where it closes.
func buildChains(nodes []repository.ChainNode, wanted []string) map[string]*dto.ParentResponse {
	byID := make(map[string]*repository.ChainNode, len(nodes))
	for i := range nodes {
		byID[nodes[i].UUID] = &nodes[i]
	}

	built := make(map[string]*dto.ParentResponse, len(nodes))
	visiting := make(map[string]bool)

	var build func(id string) *dto.ParentResponse
	build = func(id string) *dto.ParentResponse {
		if p, ok := built[id]; ok {
			return p
		}
		n, ok := byID[id]
		if !ok || visiting[id] {
			return nil
		}
		visiting[id] = true
		p := &dto.ParentResponse{
			UUID:               n.UUID,
			LocationType:       n.LocationType,
			ODSCode:            n.ODSCode,
			DisplayName:        n.DisplayName,
			ScoreSystemDefault: n.ScoreSystemDefault,
		}
		if n.ParentID != nil {
			p.Parent = build(*n.ParentID)
		}
		delete(visiting, id)
		built[id] = p
		return p
	}

	out := make(map[string]*dto.ParentResponse, len(wanted))
	for _, id := range wanted {
		if p := build(id); p != nil {
			out[id] = p
		}
	}
	return out
}
