package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProjectStatus tracks whether a delivered project is live and paid up.
type ProjectStatus string

const (
	ProjectPending ProjectStatus = "Pending"
	ProjectLive    ProjectStatus = "Live"
	ProjectExpired ProjectStatus = "Expired"
)

// PaymentMode enumerates accepted installment payment channels.
type PaymentMode string

const (
	PaymentUPI  PaymentMode = "UPI"
	PaymentCash PaymentMode = "Cash"
	PaymentBank PaymentMode = "Bank"
	PaymentCard PaymentMode = "Card"
)

// Valid reports whether the mode is one of the known values.
func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentUPI, PaymentCash, PaymentBank, PaymentCard:
		return true
	}
	return false
}

// Payment is a single installment received against a project.
type Payment struct {
	BaseModel

	ProjectID string      `gorm:"type:uuid;not null;index" json:"project_id"`
	Amount    float64     `gorm:"not null" json:"amount"`
	Mode      PaymentMode `gorm:"not null;default:Cash" json:"mode"`
	PaidOn    time.Time   `json:"paid_on"`
	Note      string      `json:"note"`
}

// Project is a paid engagement with installment payments. TotalPaid is kept
// as the sum of recorded payments; status derives from the live/due dates.
type Project struct {
	BaseModel

	ProjectName  string                      `gorm:"not null" json:"project_name"`
	ClientName   string                      `gorm:"not null" json:"client_name"`
	Mobile       string                      `gorm:"not null" json:"mobile"`
	BusinessName string                      `json:"business_name"`
	Services     datatypes.JSONSlice[string] `json:"services"`

	TotalAmount float64 `gorm:"not null" json:"total_amount"`
	TotalPaid   float64 `gorm:"default:0" json:"total_paid"`

	Payments []Payment `gorm:"foreignKey:ProjectID" json:"payments,omitempty"`

	ProjectCreatedDate time.Time  `json:"project_created_date"`
	LiveDate           *time.Time `json:"live_date,omitempty"`
	DueDate            *time.Time `json:"due_date,omitempty"`

	Status ProjectStatus `gorm:"not null;default:Pending" json:"status"`
}

// DeriveStatus computes the project status from its dates: pending until a
// live date is set, live afterwards, expired once the due date has passed.
func (p *Project) DeriveStatus(now time.Time) ProjectStatus {
	if p.LiveDate == nil {
		return ProjectPending
	}
	if p.DueDate != nil && now.After(*p.DueDate) {
		return ProjectExpired
	}
	return ProjectLive
}
