package model

import "gorm.io/datatypes"

// LocationProduct association of a location with a named product over a date range.
// A nil ClosedDate means the association is open.
type LocationProduct struct {
	UUID              string          `gorm:"column:uuid;type:varchar(36);primaryKey"`
	LocationUUID      string          `gorm:"column:location_uuid;type:varchar(36);not null;index"`
	ProductName       string          `gorm:"column:product_name;not null;index"`
	OpenedDate        datatypes.Date  `gorm:"column:opened_date;not null"`
	ClosedDate        *datatypes.Date `gorm:"column:closed_date"`
	ClosedReason      *string         `gorm:"column:closed_reason"`
	ClosedReasonOther *string         `gorm:"column:closed_reason_other"`

	AuditModel
}

func (LocationProduct) TableName() string { return "location_product" }

// IsOpen reports whether the product is currently open.
func (p *LocationProduct) IsOpen() bool { return p.ClosedDate == nil }
