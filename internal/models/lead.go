package models

import (
	"time"

	"gorm.io/datatypes"
)

// Lead is a prospective client record. Proposals and agreements reference a
// lead without owning it.
type Lead struct {
	BaseModel

	Name         string                     `gorm:"not null" json:"name"`
	Contact      string                     `json:"contact"`
	Email        string                     `json:"email"`
	Status       string                     `gorm:"not null;default:new" json:"status"`
	BusinessName string                     `json:"business_name"`
	Services     datatypes.JSONSlice[string] `json:"services"`
	Notes        string                     `json:"notes"`

	AssignedToID *string `gorm:"type:uuid;index" json:"assigned_to_id,omitempty"`
	AssignedTo   *User   `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`
	CreatedByID  *string `gorm:"type:uuid" json:"created_by_id,omitempty"`
	CreatedBy    *User   `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`

	LastFollowupAt   *time.Time `json:"last_followup_at,omitempty"`
	LastFollowupNote string     `json:"last_followup_note,omitempty"`

	EditAllowed bool `gorm:"default:true" json:"edit_allowed"`
}
