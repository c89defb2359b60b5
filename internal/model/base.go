package model

import "time"

// AuditModel audit columns shared by location and location_product.
type AuditModel struct {
	Created    time.Time `gorm:"column:created;not null"  json:"created"`
	CreatedBy  *string   `gorm:"column:created_by"        json:"created_by,omitempty"`
	Modified   time.Time `gorm:"column:modified;not null" json:"modified"`
	ModifiedBy *string   `gorm:"column:modified_by"       json:"modified_by,omitempty"`
}

// Touch stamps the modification columns.
func (m *AuditModel) Touch(actor string, now time.Time) {
	m.Modified = now
	m.ModifiedBy = actorPtr(actor)
}

// Stamp fills both creation and modification columns.
func (m *AuditModel) Stamp(actor string, now time.Time) {
	m.Created = now
	m.CreatedBy = actorPtr(actor)
	m.Touch(actor, now)
}

func actorPtr(actor string) *string {
	if actor == "" {
		return nil
	}
	return &actor
}
