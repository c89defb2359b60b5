package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository aggregates the data access interfaces.
type Repository struct {
	db        *gorm.DB
	Location  LocationRepository
	Hierarchy HierarchyRepository
}

// NewRepository creates the aggregate over db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:        db,
		Location:  NewLocationRepo(db),
		Hierarchy: NewHierarchyRepo(db),
	}
}

// BeginTx starts a transaction. The caller commits or rolls back.
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tx, nil
}

// WithTx returns an aggregate whose repositories run inside tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}
