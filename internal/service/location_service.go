package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/polaris-foundation/polaris-locations-api/internal/dto"
	"github.com/polaris-foundation/polaris-locations-api/internal/model"
	"github.com/polaris-foundation/polaris-locations-api/internal/repository"
	apperrors "github.com/polaris-foundation/polaris-locations-api/pkg/errors"
	"github.com/polaris-foundation/polaris-locations-api/pkg/events"
)

// Visibility restricts a search to the locations a caller may see.
// A nil *Visibility is unrestricted.
type Visibility struct {
	UUIDs []string
}

// LocationService location hierarchy queries and mutations.
type LocationService interface {
	Create(ctx context.Context, req *dto.CreateLocationRequest, actor string) (*dto.LocationResponse, error)
	CreateMany(ctx context.Context, reqs []dto.CreateLocationRequest, actor string) (*dto.CreateManyResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateLocationRequest, actor string) (*dto.LocationResponse, error)
	GetByID(ctx context.Context, id string, children bool) (*dto.LocationResponse, error)
	GetParentOfType(ctx context.Context, id, locationType string) (*dto.LocationResponse, error)
	Search(ctx context.Context, q *dto.LocationSearchQuery, vis *Visibility) (map[string]*dto.LocationResponse, error)
	// List is Search without the visibility map, ordered as stored.
	List(ctx context.Context, q *dto.LocationSearchQuery) ([]*dto.LocationResponse, error)
	Reset(ctx context.Context) error
}

type locationService struct {
	repo      *repository.Repository
	cache     ChainCache
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewLocationService creates a LocationService. cache and publisher may be nil.
func NewLocationService(repo *repository.Repository, cache ChainCache, publisher EventPublisher, logger *zap.Logger) LocationService {
	return &locationService{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ────────────────────── queries ──────────────────────

func (s *locationService) Search(ctx context.Context, q *dto.LocationSearchQuery, vis *Visibility) (map[string]*dto.LocationResponse, error) {
	effective := *q
	if vis != nil {
		effective.UUIDs = restrict(q.UUIDs, vis.UUIDs)
	}

	rows, err := s.List(ctx, &effective)
	if err != nil {
		return nil, err
	}

	// every requested uuid is reported, null when not found
	out := make(map[string]*dto.LocationResponse, len(rows))
	for _, id := range effective.UUIDs {
		out[id] = nil
	}
	for _, row := range rows {
		out[row.UUID] = row
	}
	return out, nil
}

// restrict intersects requested with visible. A nil requested means all visible.
func restrict(requested, visible []string) []string {
	if requested == nil {
		return append([]string{}, visible...)
	}
	allowed := make(map[string]bool, len(visible))
	for _, id := range visible {
		allowed[id] = true
	}
	out := make([]string, 0, len(requested))
	for _, id := range requested {
		if allowed[id] {
			out = append(out, id)
		}
	}
	return out
}

func (s *locationService) List(ctx context.Context, q *dto.LocationSearchQuery) ([]*dto.LocationResponse, error) {
	locs, err := s.repo.Location.Search(ctx, repository.SearchFilter{
		UUIDs:         q.UUIDs,
		ODSCode:       q.ODSCode,
		LocationTypes: q.LocationTypes,
		Active:        q.Active,
		ProductNames:  q.ProductNames,
		WithProducts:  !q.Compact,
	})
	if err != nil {
		s.logger.Error("search locations failed", zap.Error(err))
		return nil, err
	}

	// roots follow the uuid filter, nil walks every parent in one statement
	var children map[string][]string
	if q.Children {
		children = map[string][]string{}
		if len(locs) > 0 {
			children, err = s.repo.Hierarchy.Descendants(ctx, q.UUIDs, q.ProductNames)
			if err != nil {
				s.logger.Error("resolve descendants failed", zap.Error(err))
				return nil, err
			}
		}
	}

	return s.assemble(ctx, locs, children, q.Compact)
}

func (s *locationService) GetByID(ctx context.Context, id string, children bool) (*dto.LocationResponse, error) {
	rows, err := s.List(ctx, &dto.LocationSearchQuery{UUIDs: []string{id}, Children: children})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NotFound("location with uuid '%s' not found", id)
	}
	return rows[0], nil
}

func (s *locationService) GetParentOfType(ctx context.Context, id, locationType string) (*dto.LocationResponse, error) {
	found, err := s.repo.Hierarchy.NearestOfType(ctx, id, locationType)
	if err != nil {
		s.logger.Error("find parent of type failed", zap.String("uuid", id), zap.Error(err))
		return nil, err
	}
	if found == "" {
		existing, err := s.repo.Location.ExistingUUIDs(ctx, []string{id})
		if err != nil {
			return nil, err
		}
		if !existing[id] {
			return nil, apperrors.NotFound("location with uuid '%s' not found", id)
		}
		return nil, apperrors.InvalidArgument("location '%s' has no parent of type '%s'", id, locationType)
	}
	return s.GetByID(ctx, found, false)
}

// ────────────────────── Create ──────────────────────

func (s *locationService) Create(ctx context.Context, req *dto.CreateLocationRequest, actor string) (*dto.LocationResponse, error) {
	var loc *model.Location

	err := s.runInTx(ctx, func(tx *repository.Repository) error {
		parentID, err := s.resolveParent(ctx, tx, req.Parent, req.ParentODSCode)
		if err != nil {
			return err
		}

		loc, err = newLocationModel(req, parentID, actor, s.now())
		if err != nil {
			return err
		}

		if req.UUID != nil {
			existing, err := tx.Location.ExistingUUIDs(ctx, []string{loc.UUID})
			if err != nil {
				return err
			}
			if existing[loc.UUID] {
				return apperrors.Duplicate(nil, "location with uuid '%s' already exists", loc.UUID)
			}
		}

		if err := tx.Location.Create(ctx, loc); err != nil {
			if errors.Is(err, repository.ErrDuplicateODSCode) {
				return apperrors.Duplicate(err, "location with ods code '%s' already exists", deref(loc.ODSCode))
			}
			s.logger.Error("create location failed", zap.String("uuid", loc.UUID), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.LocationsCreated, []string{loc.UUID}, actor)
	return s.GetByID(ctx, loc.UUID, false)
}

// resolveParent returns the parent uuid named by parent or parentODS.
func (s *locationService) resolveParent(ctx context.Context, tx *repository.Repository, parent, parentODS *string) (*string, error) {
	if parentODS != nil {
		byCode, err := tx.Location.UUIDsByODSCodes(ctx, []string{*parentODS})
		if err != nil {
			return nil, err
		}
		id, ok := byCode[*parentODS]
		if !ok {
			return nil, apperrors.NotFound("location with ods code '%s' not found", *parentODS)
		}
		if parent != nil && *parent != id {
			return nil, apperrors.InvalidArgument("parent '%s' does not match parent_ods_code '%s'", *parent, *parentODS)
		}
		return &id, nil
	}

	if parent == nil {
		return nil, nil
	}
	existing, err := tx.Location.ExistingUUIDs(ctx, []string{*parent})
	if err != nil {
		return nil, err
	}
	if !existing[*parent] {
		return nil, apperrors.NotFound("parent location '%s' not found", *parent)
	}
	return parent, nil
}

// newLocationModel builds the row for req, generating uuids where absent.
func newLocationModel(req *dto.CreateLocationRequest, parentID *string, actor string, now time.Time) (*model.Location, error) {
	if req.ScoreSystemDefault != nil && !model.ValidScoreSystem(*req.ScoreSystemDefault) {
		return nil, apperrors.InvalidArgument("invalid score_system_default '%s'", *req.ScoreSystemDefault)
	}

	id := uuid.NewString()
	if req.UUID != nil {
		id = *req.UUID
	}
	if parentID != nil && *parentID == id {
		return nil, apperrors.InvalidArgument("location cannot be its own parent")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	loc := &model.Location{
		UUID:               id,
		LocationType:       req.LocationType,
		ODSCode:            req.ODSCode,
		DisplayName:        req.DisplayName,
		Active:             active,
		ParentID:           parentID,
		ScoreSystemDefault: req.ScoreSystemDefault,
		AddressLine1:       req.AddressLine1,
		AddressLine2:       req.AddressLine2,
		AddressLine3:       req.AddressLine3,
		AddressLine4:       req.AddressLine4,
		Postcode:           req.Postcode,
		Country:            req.Country,
		Locality:           req.Locality,
		Region:             req.Region,
	}
	loc.Stamp(actor, now)

	loc.Products = make([]model.LocationProduct, 0, len(req.Products))
	for _, pr := range req.Products {
		if pr.ProductName == "" || pr.OpenedDate == nil {
			return nil, apperrors.InvalidArgument("product_name and opened_date are required for a product")
		}
		p := model.LocationProduct{
			UUID:              uuid.NewString(),
			LocationUUID:      id,
			ProductName:       pr.ProductName,
			OpenedDate:        datatypes.Date(pr.OpenedDate.Time),
			ClosedReason:      pr.ClosedReason,
			ClosedReasonOther: pr.ClosedReasonOther,
		}
		if pr.ClosedDate != nil {
			closed := datatypes.Date(pr.ClosedDate.Time)
			p.ClosedDate = &closed
		}
		p.Stamp(actor, now)
		loc.Products = append(loc.Products, p)
	}
	if err := checkOpenProducts(loc.Products); err != nil {
		return nil, err
	}
	return loc, nil
}

// checkOpenProducts rejects two open products with the same name.
func checkOpenProducts(lists ...[]model.LocationProduct) error {
	open := make(map[string]bool)
	for _, products := range lists {
		for i := range products {
			if !products[i].IsOpen() {
				continue
			}
			name := products[i].ProductName
			if open[name] {
				return apperrors.InvalidArgument("location already has an open '%s' product", name)
			}
			open[name] = true
		}
	}
	return nil
}

// ────────────────────── Update ──────────────────────

func (s *locationService) Update(ctx context.Context, id string, req *dto.UpdateLocationRequest, actor string) (*dto.LocationResponse, error) {
	err := s.runInTx(ctx, func(tx *repository.Repository) error {
		loc, err := tx.Location.GetByID(ctx, id, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("location with uuid '%s' not found", id)
			}
			s.logger.Error("load location failed", zap.String("uuid", id), zap.Error(err))
			return err
		}

		now := s.now()
		if err := s.applyParent(ctx, tx, loc, req.ParentLocation); err != nil {
			return err
		}
		if err := applyFields(loc, req); err != nil {
			return err
		}
		changed, created, err := planProducts(loc, req.Products, actor, now)
		if err != nil {
			return err
		}
		loc.Touch(actor, now)

		if err := tx.Location.Update(ctx, loc); err != nil {
			if errors.Is(err, repository.ErrDuplicateODSCode) {
				return apperrors.Duplicate(err, "location with ods code '%s' already exists", deref(loc.ODSCode))
			}
			s.logger.Error("update location failed", zap.String("uuid", id), zap.Error(err))
			return err
		}
		for _, p := range changed {
			if err := tx.Location.UpdateProduct(ctx, p); err != nil {
				s.logger.Error("update location product failed", zap.String("uuid", p.UUID), zap.Error(err))
				return err
			}
		}
		for _, p := range created {
			if err := tx.Location.CreateProduct(ctx, p); err != nil {
				s.logger.Error("create location product failed", zap.String("location", id), zap.Error(err))
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.publish(ctx, events.LocationUpdated, []string{id}, actor)
	return s.GetByID(ctx, id, false)
}

// applyParent validates and applies a parent_location change. The new parent's
// chain must not contain the location itself.
func (s *locationService) applyParent(ctx context.Context, tx *repository.Repository, loc *model.Location, parent dto.Optional[string]) error {
	if !parent.Set {
		return nil
	}
	if parent.Value == nil {
		loc.ParentID = nil
		return nil
	}

	pid := *parent.Value
	if pid == loc.UUID {
		return apperrors.InvalidArgument("location cannot be its own parent")
	}

	chain, err := tx.Hierarchy.Ancestors(ctx, []string{pid})
	if err != nil {
		s.logger.Error("resolve ancestors failed", zap.String("uuid", pid), zap.Error(err))
		return err
	}
	found := false
	for _, n := range chain {
		if n.UUID == loc.UUID {
			return apperrors.InvalidArgument("parent '%s' is a descendant of location '%s'", pid, loc.UUID)
		}
		if n.UUID == pid {
			found = true
		}
	}
	if !found {
		return apperrors.NotFound("parent location '%s' not found", pid)
	}

	loc.ParentID = &pid
	return nil
}

func applyFields(loc *model.Location, req *dto.UpdateLocationRequest) error {
	if req.LocationType.Set {
		if req.LocationType.Value == nil {
			return apperrors.InvalidArgument("location_type cannot be null")
		}
		loc.LocationType = *req.LocationType.Value
	}
	if req.DisplayName.Set {
		if req.DisplayName.Value == nil || *req.DisplayName.Value == "" {
			return apperrors.InvalidArgument("display_name cannot be empty")
		}
		loc.DisplayName = *req.DisplayName.Value
	}
	if req.Active.Set {
		if req.Active.Value == nil {
			return apperrors.InvalidArgument("active cannot be null")
		}
		loc.Active = *req.Active.Value
	}
	if req.ScoreSystemDefault.Set {
		if v := req.ScoreSystemDefault.Value; v != nil && !model.ValidScoreSystem(*v) {
			return apperrors.InvalidArgument("invalid score_system_default '%s'", *v)
		}
		loc.ScoreSystemDefault = req.ScoreSystemDefault.Value
	}

	setNullable(&loc.ODSCode, req.ODSCode)
	setNullable(&loc.AddressLine1, req.AddressLine1)
	setNullable(&loc.AddressLine2, req.AddressLine2)
	setNullable(&loc.AddressLine3, req.AddressLine3)
	setNullable(&loc.AddressLine4, req.AddressLine4)
	setNullable(&loc.Postcode, req.Postcode)
	setNullable(&loc.Country, req.Country)
	setNullable(&loc.Locality, req.Locality)
	setNullable(&loc.Region, req.Region)
	return nil
}

func setNullable[T any](dst **T, opt dto.Optional[T]) {
	if opt.Set {
		*dst = opt.Value
	}
}

// planProducts applies dh_products entries to loc.Products in memory and
// returns the rows to update and to insert. Nothing is written.
func planProducts(loc *model.Location, updates []dto.ProductUpdate, actor string, now time.Time) ([]*model.LocationProduct, []*model.LocationProduct, error) {
	if len(updates) == 0 {
		return nil, nil, nil
	}

	index := make(map[string]int, len(loc.Products))
	for i := range loc.Products {
		index[loc.Products[i].UUID] = i
	}

	var (
		changed []*model.LocationProduct
		created []model.LocationProduct
		touched = make(map[int]bool)
	)
	for _, u := range updates {
		if u.UUID != nil {
			i, ok := index[*u.UUID]
			if !ok {
				return nil, nil, apperrors.NotFound("product '%s' not found on location '%s'", *u.UUID, loc.UUID)
			}
			p := &loc.Products[i]
			if err := applyProductUpdate(p, u); err != nil {
				return nil, nil, err
			}
			p.Touch(actor, now)
			if !touched[i] {
				touched[i] = true
				changed = append(changed, p)
			}
			continue
		}

		if u.ProductName == nil || *u.ProductName == "" || u.OpenedDate == nil {
			return nil, nil, apperrors.InvalidArgument("product_name and opened_date are required for a new product")
		}
		p := model.LocationProduct{
			UUID:         uuid.NewString(),
			LocationUUID: loc.UUID,
			ProductName:  *u.ProductName,
			OpenedDate:   datatypes.Date(u.OpenedDate.Time),
		}
		if u.ClosedDate.Value != nil {
			closed := datatypes.Date(u.ClosedDate.Value.Time)
			p.ClosedDate = &closed
		}
		p.ClosedReason = u.ClosedReason.Value
		p.ClosedReasonOther = u.ClosedReasonOther.Value
		p.Stamp(actor, now)
		created = append(created, p)
	}

	if err := checkOpenProducts(loc.Products, created); err != nil {
		return nil, nil, err
	}

	inserts := make([]*model.LocationProduct, len(created))
	for i := range created {
		inserts[i] = &created[i]
	}
	return changed, inserts, nil
}

func applyProductUpdate(p *model.LocationProduct, u dto.ProductUpdate) error {
	if u.ProductName != nil {
		if *u.ProductName == "" {
			return apperrors.InvalidArgument("product_name cannot be empty")
		}
		p.ProductName = *u.ProductName
	}
	if u.OpenedDate != nil {
		p.OpenedDate = datatypes.Date(u.OpenedDate.Time)
	}
	if u.ClosedDate.Set {
		p.ClosedDate = nil
		if u.ClosedDate.Value != nil {
			closed := datatypes.Date(u.ClosedDate.Value.Time)
			p.ClosedDate = &closed
		}
	}
	setNullable(&p.ClosedReason, u.ClosedReason)
	setNullable(&p.ClosedReasonOther, u.ClosedReasonOther)
	return nil
}

// ────────────────────── Reset ──────────────────────

// Reset deletes every location and product.
func (s *locationService) Reset(ctx context.Context) error {
	if err := s.repo.Location.DeleteAll(ctx); err != nil {
		s.logger.Error("reset locations failed", zap.Error(err))
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ────────────────────── helpers ──────────────────────

// runInTx runs fn in one transaction, rolling back on error or panic.
func (s *locationService) runInTx(ctx context.Context, fn func(tx *repository.Repository) error) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("begin transaction failed", zap.Error(err))
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(s.repo.WithTx(tx)); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		s.logger.Error("commit transaction failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *locationService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("ancestor cache invalidation failed", zap.Error(err))
	}
}

func (s *locationService) publish(ctx context.Context, name string, ids []string, actor string) {
	if s.publisher == nil {
		return
	}
	ev := events.LocationEvent{Event: name, UUIDs: ids, Actor: actor, At: s.now()}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish location event failed", zap.String("event", name), zap.Error(err))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
