package models

import "time"

// Followup records a contact attempt against a lead. The lead keeps a
// denormalised snapshot of the latest one for list views.
type Followup struct {
	BaseModel

	LeadID string `gorm:"type:uuid;not null;index" json:"lead_id"`
	Lead   *Lead  `gorm:"foreignKey:LeadID" json:"lead,omitempty"`

	Note string `gorm:"not null" json:"note"`

	CreatedByID *string `gorm:"type:uuid" json:"created_by_id,omitempty"`
	CreatedBy   *User   `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`

	NextFollowUp *time.Time `json:"next_follow_up,omitempty"`
}
