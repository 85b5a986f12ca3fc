package models

import (
	"encoding/json"
	"time"
)

// ProposalStatus enumerates the proposal decision states. Status is the
// single source of truth; the legacy accepted flag and the terminal
// timestamps are derived from it by the transition methods below.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalRejected ProposalStatus = "rejected"
)

// ProposalDecision is a recipient's answer submitted through a tokenized link.
type ProposalDecision string

const (
	DecisionAccept ProposalDecision = "accept"
	DecisionReject ProposalDecision = "reject"
)

// Proposal is a business quote sent to a lead and tracked through a
// tokenized, time-unbounded approval workflow. The response token is the
// sole credential for the public decision endpoint.
type Proposal struct {
	BaseModel

	LeadID string `gorm:"type:uuid;index" json:"lead_id"`
	Lead   *Lead  `gorm:"foreignKey:LeadID" json:"lead,omitempty"`

	Status ProposalStatus `gorm:"not null;default:pending" json:"status"`

	// ResponseToken is empty until the first send and stable across
	// re-sends afterwards. Uniqueness rests on token entropy, so a plain
	// index is enough and unsent proposals can share the empty value.
	ResponseToken string `gorm:"index" json:"-"`

	Sent        bool       `gorm:"default:false" json:"sent"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	SentByID    *string    `gorm:"type:uuid" json:"sent_by_id,omitempty"`
	SentBy      *User      `gorm:"foreignKey:SentByID" json:"sent_by,omitempty"`
	SentToEmail string     `json:"sent_to_email,omitempty"`

	RespondedAt *time.Time `json:"responded_at,omitempty"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`

	CreatedByID *string `gorm:"type:uuid" json:"created_by_id,omitempty"`
	CreatedBy   *User   `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
}

// Accepted derives the legacy boolean from the canonical status.
func (p *Proposal) Accepted() bool {
	return p.Status == ProposalAccepted
}

// ApplySend transitions the proposal to pending and records the send
// snapshot. Re-sending overwrites the snapshot and clears any earlier
// decision, but never resets the sent flag or the response token.
func (p *Proposal) ApplySend(now time.Time, sentBy, toEmail string) {
	p.Sent = true
	p.Status = ProposalPending
	p.SentAt = &now
	p.SentToEmail = toEmail
	if sentBy != "" {
		p.SentByID = &sentBy
	}
	p.RespondedAt = nil
	p.AcceptedAt = nil
	p.RejectedAt = nil
}

// ApplyDecision transitions the proposal to a terminal state. Decisions are
// deliberately permissive: a recipient may change their mind through the
// same link after an earlier accept or reject, and the latest visit wins.
// Exactly one of AcceptedAt/RejectedAt is set afterwards.
func (p *Proposal) ApplyDecision(decision ProposalDecision, now time.Time) {
	p.RespondedAt = &now
	switch decision {
	case DecisionAccept:
		p.Status = ProposalAccepted
		p.AcceptedAt = &now
		p.RejectedAt = nil
	case DecisionReject:
		p.Status = ProposalRejected
		p.RejectedAt = &now
		p.AcceptedAt = nil
	}
}

// MarshalJSON includes the derived accepted flag for readers that still
// expect the old boolean alongside the status enum.
func (p Proposal) MarshalJSON() ([]byte, error) {
	type alias Proposal
	return json.Marshal(struct {
		alias
		Accepted bool `json:"accepted"`
	}{
		alias:    alias(p),
		Accepted: p.Status == ProposalAccepted,
	})
}
