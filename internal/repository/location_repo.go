package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/polaris-foundation/polaris-locations-api/internal/model"
)

// SearchFilter row filters of a location search. Nil means no filter; a
// non-nil empty UUIDs matches nothing.
type SearchFilter struct {
	UUIDs         []string
	ODSCode       *string
	LocationTypes []string
	Active        *bool
	ProductNames  []string
	WithProducts  bool
}

// LocationRepository location and product data access.
type LocationRepository interface {
	Create(ctx context.Context, loc *model.Location) error
	CreateMany(ctx context.Context, locs []*model.Location) error
	GetByID(ctx context.Context, uuid string, withProducts bool) (*model.Location, error)
	ExistingUUIDs(ctx context.Context, uuids []string) (map[string]bool, error)
	UUIDsByODSCodes(ctx context.Context, codes []string) (map[string]string, error)
	Update(ctx context.Context, loc *model.Location) error
	CreateProduct(ctx context.Context, p *model.LocationProduct) error
	UpdateProduct(ctx context.Context, p *model.LocationProduct) error
	Search(ctx context.Context, f SearchFilter) ([]model.Location, error)
	DeleteAll(ctx context.Context) error
}

type locationRepo struct {
	db *gorm.DB
}

// NewLocationRepo creates a LocationRepository.
func NewLocationRepo(db *gorm.DB) LocationRepository {
	return &locationRepo{db: db}
}

const createBatchSize = 200

// Create inserts loc together with its Products.
func (r *locationRepo) Create(ctx context.Context, loc *model.Location) error {
	return translateWriteErr(r.db.WithContext(ctx).Create(loc).Error)
}

// CreateMany inserts locs in the given order. Parents must precede children.
func (r *locationRepo) CreateMany(ctx context.Context, locs []*model.Location) error {
	if len(locs) == 0 {
		return nil
	}
	return translateWriteErr(r.db.WithContext(ctx).CreateInBatches(locs, createBatchSize).Error)
}

func (r *locationRepo) GetByID(ctx context.Context, uuid string, withProducts bool) (*model.Location, error) {
	var loc model.Location
	db := r.db.WithContext(ctx)
	if withProducts {
		db = db.Preload("Products", orderProducts)
	}
	if err := db.Where("uuid = ?", uuid).First(&loc).Error; err != nil {
		return nil, err
	}
	return &loc, nil
}

// ExistingUUIDs returns the subset of uuids present in the store.
func (r *locationRepo) ExistingUUIDs(ctx context.Context, uuids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(uuids))
	if len(uuids) == 0 {
		return out, nil
	}
	var found []string
	err := r.db.WithContext(ctx).
		Model(&model.Location{}).
		Where("uuid IN ?", uuids).
		Pluck("uuid", &found).Error
	if err != nil {
		return nil, err
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

// UUIDsByODSCodes maps each known ods code to its location uuid.
func (r *locationRepo) UUIDsByODSCodes(ctx context.Context, codes []string) (map[string]string, error) {
	out := make(map[string]string, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	var rows []struct {
		UUID    string `gorm:"column:uuid"`
		ODSCode string `gorm:"column:ods_code"`
	}
	err := r.db.WithContext(ctx).
		Model(&model.Location{}).
		Select("uuid, ods_code").
		Where("ods_code IN ?", codes).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ODSCode] = row.UUID
	}
	return out, nil
}

// Update writes every column of loc. Products are written separately.
func (r *locationRepo) Update(ctx context.Context, loc *model.Location) error {
	return translateWriteErr(r.db.WithContext(ctx).Omit(clause.Associations).Save(loc).Error)
}

func (r *locationRepo) CreateProduct(ctx context.Context, p *model.LocationProduct) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *locationRepo) UpdateProduct(ctx context.Context, p *model.LocationProduct) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// Search returns the matching rows in one statement, plus one preload
// statement for products when f.WithProducts is set.
func (r *locationRepo) Search(ctx context.Context, f SearchFilter) ([]model.Location, error) {
	locations := []model.Location{}
	if f.UUIDs != nil && len(f.UUIDs) == 0 {
		return locations, nil
	}

	db := r.db.WithContext(ctx).Model(&model.Location{})

	if f.UUIDs != nil {
		db = db.Where("location.uuid IN ?", f.UUIDs)
	}
	if f.ODSCode != nil {
		db = db.Where("location.ods_code = ?", *f.ODSCode)
	}
	if len(f.LocationTypes) > 0 {
		db = db.Where("location.location_type IN ?", f.LocationTypes)
	}
	if f.Active != nil {
		db = db.Where("location.active = ?", *f.Active)
	}
	if len(f.ProductNames) > 0 {
		clauseSQL, arg := productExists("location.uuid", f.ProductNames)
		db = db.Where(clauseSQL, arg)
	}
	if f.WithProducts {
		db = db.Preload("Products", orderProducts)
	}

	if err := db.Find(&locations).Error; err != nil {
		return nil, err
	}
	return locations, nil
}

// DeleteAll removes every product and location.
func (r *locationRepo) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.LocationProduct{}).Error; err != nil {
			return err
		}
		// detach first so parent_id never points at a deleted row
		if err := tx.Exec("UPDATE location SET parent_id = NULL WHERE parent_id IS NOT NULL").Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Location{}).Error
	})
}

func orderProducts(db *gorm.DB) *gorm.DB {
	return db.Order("opened_date, product_name")
}

// productExists builds a semi-join requiring a location_product row (open or
// closed) named in names for the location identified by uuidColumn. A single
// name compares with equality.
func productExists(uuidColumn string, names []string) (string, any) {
	const prefix = "EXISTS (SELECT 1 FROM location_product lp WHERE lp.location_uuid = "
	if len(names) == 1 {
		return prefix + uuidColumn + " AND lp.product_name = ?)", names[0]
	}
	return prefix + uuidColumn + " AND lp.product_name IN ?)", names
}
