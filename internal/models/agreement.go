package models

// Agreement captures terms agreed with a lead before a project starts.
type Agreement struct {
	BaseModel

	Title string `gorm:"not null" json:"title"`
	Terms string `json:"terms"`

	LeadID *string `gorm:"type:uuid;index" json:"lead_id,omitempty"`
	Lead   *Lead   `gorm:"foreignKey:LeadID" json:"lead,omitempty"`

	CreatedByID *string `gorm:"type:uuid" json:"created_by_id,omitempty"`
	CreatedBy   *User   `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`

	Signed bool `gorm:"default:false" json:"signed"`
}
