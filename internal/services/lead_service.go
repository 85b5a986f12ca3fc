package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/techvara/crm/internal/models"
	apperrors "github.com/techvara/crm/pkg/errors"
)

// ErrLeadLocked blocks worker edits on leads an admin has frozen.
var ErrLeadLocked = apperrors.New(
	"LEAD_LOCKED",
	"Editing this lead has been disabled by an admin",
	apperrors.ErrForbidden.StatusCode,
)

// Viewer identifies who is asking, so queries can be scoped per role.
type Viewer struct {
	UserID string
	Role   models.UserRole
}

func (v Viewer) admin() bool { return v.Role == models.RoleAdmin }

// CreateLeadInput carries fields for a new lead.
type CreateLeadInput struct {
	Name         string   `json:"name" validate:"required"`
	Contact      string   `json:"contact"`
	Email        string   `json:"email" validate:"omitempty,email"`
	Status       string   `json:"status"`
	BusinessName string   `json:"business_name"`
	Services     []string `json:"services"`
	Notes        string   `json:"notes"`
	AssignedToID string   `json:"assigned_to_id" validate:"omitempty,uuid"`
}

// UpdateLeadInput uses pointers so absent fields stay untouched.
type UpdateLeadInput struct {
	Name         *string   `json:"name"`
	Contact      *string   `json:"contact"`
	Email        *string   `json:"email" validate:"omitempty,email"`
	Status       *string   `json:"status"`
	BusinessName *string   `json:"business_name"`
	Services     *[]string `json:"services"`
	Notes        *string   `json:"notes"`
	AssignedToID *string   `json:"assigned_to_id"`
	EditAllowed  *bool     `json:"edit_allowed"`
}

// CreateFollowupInput records a contact attempt.
type CreateFollowupInput struct {
	Note         string     `json:"note" validate:"required"`
	NextFollowUp *time.Time `json:"next_follow_up"`
}

// LeadService manages leads and their follow-up history.
type LeadService struct {
	db  *gorm.DB
	now func() time.Time
}

// LeadOption customises a LeadService.
type LeadOption func(*LeadService)

// WithLeadClock overrides the time source, primarily for tests.
func WithLeadClock(now func() time.Time) LeadOption {
	return func(s *LeadService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewLeadService(db *gorm.DB, opts ...LeadOption) *LeadService {
	s := &LeadService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const (
	defaultLeadPageSize = 20
	maxLeadPageSize     = 100
)

// List returns a page of leads visible to the viewer, together with the
// total count: admins see everything, workers only leads assigned to them
// or created by them.
func (s *LeadService) List(ctx context.Context, viewer Viewer, page, perPage int) ([]models.Lead, int64, error) {
	ctx = ensureContext(ctx)

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > maxLeadPageSize {
		perPage = defaultLeadPageSize
	}

	scope := s.db.WithContext(ctx).Model(&models.Lead{})
	if !viewer.admin() {
		scope = scope.Where("assigned_to_id = ? OR created_by_id = ?", viewer.UserID, viewer.UserID)
	}

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "failed to count leads")
	}

	var leads []models.Lead
	err := scope.
		Preload("AssignedTo").
		Preload("CreatedBy").
		Order("created_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&leads).Error
	if err != nil {
		return nil, 0, apperrors.Wrap(err, "failed to list leads")
	}
	return leads, total, nil
}

// GetByID fetches a lead the viewer is allowed to see.
func (s *LeadService) GetByID(ctx context.Context, viewer Viewer, id string) (*models.Lead, error) {
	ctx = ensureContext(ctx)

	var lead models.Lead
	err := s.db.WithContext(ctx).
		Preload("AssignedTo").
		Preload("CreatedBy").
		First(&lead, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load lead")
	}

	if !viewer.admin() && !s.visibleTo(&lead, viewer) {
		// Hidden leads read as absent so workers cannot probe for them.
		return nil, apperrors.ErrNotFound
	}
	return &lead, nil
}

func (s *LeadService) Create(ctx context.Context, viewer Viewer, input CreateLeadInput) (*models.Lead, error) {
	ctx = ensureContext(ctx)

	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = "new"
	}

	lead := &models.Lead{
		Name:         strings.TrimSpace(input.Name),
		Contact:      strings.TrimSpace(input.Contact),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Status:       status,
		BusinessName: strings.TrimSpace(input.BusinessName),
		Services:     ParseServiceList(input.Services),
		Notes:        input.Notes,
		AssignedToID: optionalID(input.AssignedToID),
		CreatedByID:  optionalID(viewer.UserID),
		EditAllowed:  true,
	}

	// Workers keep their own leads unless an admin reassigns them.
	if !viewer.admin() && lead.AssignedToID == nil {
		lead.AssignedToID = optionalID(viewer.UserID)
	}

	if err := s.db.WithContext(ctx).Create(lead).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to create lead")
	}
	return lead, nil
}

func (s *LeadService) Update(ctx context.Context, viewer Viewer, id string, input UpdateLeadInput) (*models.Lead, error) {
	ctx = ensureContext(ctx)

	lead, err := s.GetByID(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	if !viewer.admin() {
		if !lead.EditAllowed {
			return nil, ErrLeadLocked
		}
		// Only admins may reassign a lead or toggle its edit lock.
		input.AssignedToID = nil
		input.EditAllowed = nil
	}

	if input.Name != nil {
		lead.Name = strings.TrimSpace(*input.Name)
	}
	if input.Contact != nil {
		lead.Contact = strings.TrimSpace(*input.Contact)
	}
	if input.Email != nil {
		lead.Email = strings.ToLower(strings.TrimSpace(*input.Email))
	}
	if input.Status != nil {
		lead.Status = strings.TrimSpace(*input.Status)
	}
	if input.BusinessName != nil {
		lead.BusinessName = strings.TrimSpace(*input.BusinessName)
	}
	if input.Services != nil {
		lead.Services = ParseServiceList(*input.Services)
	}
	if input.Notes != nil {
		lead.Notes = *input.Notes
	}
	if input.AssignedToID != nil {
		lead.AssignedToID = optionalID(*input.AssignedToID)
	}
	if input.EditAllowed != nil {
		lead.EditAllowed = *input.EditAllowed
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(lead).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to update lead")
	}
	return lead, nil
}

// Delete removes a lead together with its follow-up history. Proposals and
// agreements keep their rows; their tokens resolve as not found afterwards.
func (s *LeadService) Delete(ctx context.Context, viewer Viewer, id string) error {
	ctx = ensureContext(ctx)

	if _, err := s.GetByID(ctx, viewer, id); err != nil {
		return err
	}
	if !viewer.admin() {
		return apperrors.ErrForbidden
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Followup{}, "lead_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Lead{}, "id = ?", id).Error
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to delete lead")
	}
	return nil
}

// AddFollowup appends a follow-up and refreshes the lead's denormalised
// snapshot of the latest contact, atomically.
func (s *LeadService) AddFollowup(ctx context.Context, viewer Viewer, leadID string, input CreateFollowupInput) (*models.Followup, error) {
	ctx = ensureContext(ctx)

	lead, err := s.GetByID(ctx, viewer, leadID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	followup := &models.Followup{
		LeadID:       lead.ID,
		Note:         strings.TrimSpace(input.Note),
		CreatedByID:  optionalID(viewer.UserID),
		NextFollowUp: input.NextFollowUp,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(followup).Error; err != nil {
			return err
		}
		return tx.Model(&models.Lead{}).
			Where("id = ?", lead.ID).
			Updates(map[string]any{
				"last_followup_at":   now,
				"last_followup_note": followup.Note,
			}).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to record follow-up")
	}
	return followup, nil
}

// ListFollowups returns a lead's follow-up history, newest first.
func (s *LeadService) ListFollowups(ctx context.Context, viewer Viewer, leadID string) ([]models.Followup, error) {
	ctx = ensureContext(ctx)

	if _, err := s.GetByID(ctx, viewer, leadID); err != nil {
		return nil, err
	}

	var followups []models.Followup
	err := s.db.WithContext(ctx).
		Preload("CreatedBy").
		Order("created_at DESC").
		Find(&followups, "lead_id = ?", leadID).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list follow-ups")
	}
	return followups, nil
}

func (s *LeadService) visibleTo(lead *models.Lead, viewer Viewer) bool {
	if lead.AssignedToID != nil && *lead.AssignedToID == viewer.UserID {
		return true
	}
	return lead.CreatedByID != nil && *lead.CreatedByID == viewer.UserID
}
