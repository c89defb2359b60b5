package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

// ChainNode a location as seen by the ancestor traversal.
type ChainNode struct {
	UUID               string  `gorm:"column:uuid"`
	ParentID           *string `gorm:"column:parent_id"`
	LocationType       string  `gorm:"column:location_type"`
	ODSCode            *string `gorm:"column:ods_code"`
	DisplayName        string  `gorm:"column:display_name"`
	ScoreSystemDefault *string `gorm:"column:score_system_default"`
}

// HierarchyRepository recursive traversals over location.parent_id. Each
// method is a single statement whatever the size of the tree.
type HierarchyRepository interface {
	// Ancestors returns the nodes uuids and every node above them, each once.
	Ancestors(ctx context.Context, uuids []string) ([]ChainNode, error)
	// Descendants maps each root to its transitive children. A nil roots
	// treats every location with children as a root. Given product names,
	// every traversed child must have a product row with one of them.
	Descendants(ctx context.Context, roots []string, products []string) (map[string][]string, error)
	// NearestOfType returns the closest location of locationType among uuid
	// and its ancestors, or "" when there is none.
	NearestOfType(ctx context.Context, uuid, locationType string) (string, error)
}

type hierarchyRepo struct {
	db *gorm.DB
}

// NewHierarchyRepo creates a HierarchyRepository.
func NewHierarchyRepo(db *gorm.DB) HierarchyRepository {
	return &hierarchyRepo{db: db}
}

const ancestorsSQL = `WITH RECURSIVE chain(uuid, parent_id, location_type, ods_code, display_name, score_system_default) AS (
	SELECT l.uuid, l.parent_id, l.location_type, l.ods_code, l.display_name, l.score_system_default
	FROM location l WHERE l.uuid IN ?
	UNION
	SELECT l.uuid, l.parent_id, l.location_type, l.ods_code, l.display_name, l.score_system_default
	FROM location l JOIN chain c ON l.uuid = c.parent_id
)
SELECT uuid, parent_id, location_type, ods_code, display_name, score_system_default FROM chain`

func (r *hierarchyRepo) Ancestors(ctx context.Context, uuids []string) ([]ChainNode, error) {
	nodes := []ChainNode{}
	if len(uuids) == 0 {
		return nodes, nil
	}
	if err := r.db.WithContext(ctx).Raw(ancestorsSQL, uuids).Scan(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

func (r *hierarchyRepo) Descendants(ctx context.Context, roots []string, products []string) (map[string][]string, error) {
	out := make(map[string][]string, len(roots))
	for _, root := range roots {
		out[root] = []string{}
	}
	if roots != nil && len(roots) == 0 {
		return out, nil
	}

	var (
		anchor    strings.Builder
		recursive strings.Builder
		args      []any
	)

	anchor.WriteString("SELECT l.parent_id, l.uuid FROM location l WHERE l.parent_id IS NOT NULL")
	if roots != nil {
		anchor.WriteString(" AND l.parent_id IN ?")
		args = append(args, roots)
	}
	recursive.WriteString("SELECT d.root_id, l.uuid FROM location l JOIN d ON l.parent_id = d.uuid")
	if len(products) > 0 {
		cond, arg := productExists("l.uuid", products)
		anchor.WriteString(" AND " + cond)
		recursive.WriteString(" WHERE " + cond)
		args = append(args, arg, arg)
	}

	query := "WITH RECURSIVE d(root_id, uuid) AS (" + anchor.String() +
		" UNION " + recursive.String() + ") SELECT root_id, uuid FROM d"

	var rows []struct {
		RootID string `gorm:"column:root_id"`
		UUID   string `gorm:"column:uuid"`
	}
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.RootID] = append(out[row.RootID], row.UUID)
	}
	return out, nil
}

// maxTreeDepth bounds the upward walk in case stored data contains a cycle.
const maxTreeDepth = 64

const nearestOfTypeSQL = `WITH RECURSIVE up(uuid, parent_id, location_type, depth) AS (
	SELECT l.uuid, l.parent_id, l.location_type, 0 FROM location l WHERE l.uuid = ?
	UNION ALL
	SELECT l.uuid, l.parent_id, l.location_type, up.depth + 1
	FROM location l JOIN up ON l.uuid = up.parent_id
	WHERE up.depth < ?
)
SELECT uuid FROM up WHERE location_type = ? ORDER BY depth LIMIT 1`

func (r *hierarchyRepo) NearestOfType(ctx context.Context, uuid, locationType string) (string, error) {
	var found []string
	err := r.db.WithContext(ctx).
		Raw(nearestOfTypeSQL, uuid, maxTreeDepth, locationType).
		Scan(&found).Error
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "", nil
	}
	return found[0], nil
}
