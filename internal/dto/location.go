package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ── requests ──

// ProductRequest a product association submitted with a new location.
type ProductRequest struct {
	ProductName       string  `json:"product_name"        binding:"required"`
	OpenedDate        *Date   `json:"opened_date"         binding:"required"`
	ClosedDate        *Date   `json:"closed_date"`
	ClosedReason      *string `json:"closed_reason"`
	ClosedReasonOther *string `json:"closed_reason_other"`
}

// CreateLocationRequest POST /dhos/v1/location
type CreateLocationRequest struct {
	UUID               *string          `json:"uuid"                 binding:"omitempty,uuid"`
	LocationType       string           `json:"location_type"        binding:"required"`
	ODSCode            *string          `json:"ods_code"`
	DisplayName        string           `json:"display_name"         binding:"required"`
	Active             *bool            `json:"active"`
	Parent             *string          `json:"parent"`
	ParentODSCode      *string          `json:"parent_ods_code"`
	ScoreSystemDefault *string          `json:"score_system_default" binding:"omitempty,oneof=news2 meows"`
	AddressLine1       *string          `json:"address_line_1"`
	AddressLine2       *string          `json:"address_line_2"`
	AddressLine3       *string          `json:"address_line_3"`
	AddressLine4       *string          `json:"address_line_4"`
	Postcode           *string          `json:"postcode"`
	Country            *string          `json:"country"`
	Locality           *string          `json:"locality"`
	Region             *string          `json:"region"`
	Products           []ProductRequest `json:"dh_products"          binding:"dive"`
}

// ProductUpdate an entry of dh_products in a location update. Entries with a
// UUID modify that product; entries without one add a product.
type ProductUpdate struct {
	UUID              *string          `json:"uuid"`
	ProductName       *string          `json:"product_name"`
	OpenedDate        *Date            `json:"opened_date"`
	ClosedDate        Optional[Date]   `json:"closed_date"`
	ClosedReason      Optional[string] `json:"closed_reason"`
	ClosedReasonOther Optional[string] `json:"closed_reason_other"`
}

// UpdateLocationRequest PATCH /dhos/v1/location/:location_id
type UpdateLocationRequest struct {
	LocationType       Optional[string] `json:"location_type"`
	ODSCode            Optional[string] `json:"ods_code"`
	DisplayName        Optional[string] `json:"display_name"`
	Active             Optional[bool]   `json:"active"`
	ParentLocation     Optional[string] `json:"parent_location"`
	ScoreSystemDefault Optional[string] `json:"score_system_default"`
	AddressLine1       Optional[string] `json:"address_line_1"`
	AddressLine2       Optional[string] `json:"address_line_2"`
	AddressLine3       Optional[string] `json:"address_line_3"`
	AddressLine4       Optional[string] `json:"address_line_4"`
	Postcode           Optional[string] `json:"postcode"`
	Country            Optional[string] `json:"country"`
	Locality           Optional[string] `json:"locality"`
	Region             Optional[string] `json:"region"`
	Products           []ProductUpdate  `json:"dh_products"`
}

// LocationSearchQuery filters of a search. Nil slices and pointers mean no filter.
type LocationSearchQuery struct {
	UUIDs         []string
	ODSCode       *string
	LocationTypes []string
	Active        *bool
	ProductNames  []string
	Children      bool
	Compact       bool
}

// LocationSearchForm query string of GET/POST /dhos/v1/location/search.
// location_types is pipe separated; product_name is comma separated or
// repeated; active is true, false, null or absent.
type LocationSearchForm struct {
	ODSCode       string   `form:"ods_code"`
	LocationTypes string   `form:"location_types"`
	ProductName   []string `form:"product_name"`
	Active        string   `form:"active"`
	Children      bool     `form:"children"`
	Compact       bool     `form:"compact"`
}

// Query converts the form to search filters. Empty values are no filter.
func (f *LocationSearchForm) Query() (*LocationSearchQuery, error) {
	active, err := parseActive(f.Active)
	if err != nil {
		return nil, err
	}

	q := &LocationSearchQuery{
		Active:        active,
		ProductNames:  splitList(f.ProductName, ","),
		LocationTypes: splitList([]string{f.LocationTypes}, "|"),
		Children:      f.Children,
		Compact:       f.Compact,
	}
	if f.ODSCode != "" {
		code := f.ODSCode
		q.ODSCode = &code
	}
	return q, nil
}

func parseActive(s string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null":
		return nil, nil
	case "true":
		v := true
		return &v, nil
	case "false":
		v := false
		return &v, nil
	}
	return nil, fmt.Errorf("active must be true, false or null, got %q", s)
}

// splitList splits every value on sep, dropping blanks. Nil when nothing remains.
func splitList(values []string, sep string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, sep) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// LocationGetForm query string of GET /dhos/v1/location/:location_id.
type LocationGetForm struct {
	Children           bool   `form:"children"`
	ReturnParentOfType string `form:"return_parent_of_type"`
}

// ── responses ──

// ProductResponse a product association in full shape.
type ProductResponse struct {
	UUID              string    `json:"uuid"`
	ProductName       string    `json:"product_name"`
	OpenedDate        Date      `json:"opened_date"`
	ClosedDate        *Date     `json:"closed_date"`
	ClosedReason      *string   `json:"closed_reason"`
	ClosedReasonOther *string   `json:"closed_reason_other"`
	Created           time.Time `json:"created"`
	CreatedBy         *string   `json:"created_by"`
	Modified          time.Time `json:"modified"`
	ModifiedBy        *string   `json:"modified_by"`
}

// ParentResponse one node of a nested ancestor chain. Parent is nil at the root.
type ParentResponse struct {
	UUID               string          `json:"uuid"`
	LocationType       string          `json:"location_type"`
	ODSCode            *string         `json:"ods_code"`
	DisplayName        string          `json:"display_name"`
	ScoreSystemDefault *string         `json:"score_system_default,omitempty"`
	Parent             *ParentResponse `json:"parent"`
}

// Depth counts the nodes of the chain starting at p.
func (p *ParentResponse) Depth() int {
	n := 0
	for node := p; node != nil; node = node.Parent {
		n++
	}
	return n
}

// ParentRef is the parent of a location: its UUID in compact shape, the
// resolved chain in full shape.
type ParentRef struct {
	UUID  string
	Chain *ParentResponse
}

func (p *ParentRef) MarshalJSON() ([]byte, error) {
	if p.Chain != nil {
		return json.Marshal(p.Chain)
	}
	return json.Marshal(p.UUID)
}

// LocationResponse a location in compact or full shape. Children is omitted
// unless requested; LocationDetail is nil in compact shape.
type LocationResponse struct {
	UUID               string     `json:"uuid"`
	LocationType       string     `json:"location_type"`
	ODSCode            *string    `json:"ods_code"`
	DisplayName        string     `json:"display_name"`
	Active             bool       `json:"active"`
	ScoreSystemDefault *string    `json:"score_system_default,omitempty"`
	Parent             *ParentRef `json:"parent"`
	Children           []string   `json:"children,omitzero"`
	*LocationDetail
}

// LocationDetail fields present only in full shape.
type LocationDetail struct {
	Products     []ProductResponse `json:"dh_products"`
	AddressLine1 *string           `json:"address_line_1,omitempty"`
	AddressLine2 *string           `json:"address_line_2,omitempty"`
	AddressLine3 *string           `json:"address_line_3,omitempty"`
	AddressLine4 *string           `json:"address_line_4,omitempty"`
	Postcode     *string           `json:"postcode,omitempty"`
	Country      *string           `json:"country,omitempty"`
	Locality     *string           `json:"locality,omitempty"`
	Region       *string           `json:"region,omitempty"`
	Created      time.Time         `json:"created"`
	CreatedBy    *string           `json:"created_by"`
	Modified     time.Time         `json:"modified"`
	ModifiedBy   *string           `json:"modified_by"`
}

// CreateManyResponse POST /dhos/v1/location/bulk
type CreateManyResponse struct {
	Created int `json:"created"`
}
