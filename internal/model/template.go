package model

import (
	"time"

	"gorm.io/datatypes"
)

// ExtraField describes one custom field a template adds to invoices
type ExtraField struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// Template is a reusable set of extra invoice fields
type Template struct {
	ID             uint                            `json:"id" gorm:"primaryKey"`
	OrganizationID uint                            `json:"organization_id" gorm:"not null;uniqueIndex:idx_template_org_name"`
	Name           string                          `json:"name" gorm:"type:varchar(200);not null;uniqueIndex:idx_template_org_name"`
	ExtraFields    datatypes.JSONSlice[ExtraField] `json:"extra_fields"`
	CreatedAt      time.Time                       `json:"created_at"`
	UpdatedAt      time.Time                       `json:"updated_at"`
}

// HasField reports whether id names one of the template's extra fields.
func (t *Template) HasField(id string) bool {
	for _, f := range t.ExtraFields {
		if f.ID == id {
			return true
		}
	}
	return false
}
