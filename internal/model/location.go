package model

// Score systems accepted in score_system_default.
const (
	ScoreSystemNEWS2 = "news2"
	ScoreSystemMEOWS = "meows"
)

// ValidScoreSystem reports whether s is an accepted score system.
func ValidScoreSystem(s string) bool {
	return s == ScoreSystemNEWS2 || s == ScoreSystemMEOWS
}

// Location a node of the facility hierarchy. Table location.
type Location struct {
	UUID               string  `gorm:"column:uuid;type:varchar(36);primaryKey"`
	LocationType       string  `gorm:"column:location_type"`
	ODSCode            *string `gorm:"column:ods_code;uniqueIndex:ix_location_ods_code"`
	DisplayName        string  `gorm:"column:display_name;not null"`
	Active             bool    `gorm:"column:active;not null;default:true"`
	ParentID           *string `gorm:"column:parent_id;type:varchar(36);index"`
	ScoreSystemDefault *string `gorm:"column:score_system_default"`

	AddressLine1 *string `gorm:"column:address_line_1"`
	AddressLine2 *string `gorm:"column:address_line_2"`
	AddressLine3 *string `gorm:"column:address_line_3"`
	AddressLine4 *string `gorm:"column:address_line_4"`
	Postcode     *string `gorm:"column:postcode"`
	Country      *string `gorm:"column:country"`
	Locality     *string `gorm:"column:locality"`
	Region       *string `gorm:"column:region"`

	AuditModel

	Products []LocationProduct `gorm:"foreignKey:LocationUUID;references:UUID;constraint:OnDelete:CASCADE"`
}

// TableName location table.
func (Location) TableName() string { return "location" }
