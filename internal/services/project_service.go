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

// defaultProjectTerm is how long a project stays live before it expires
// when no explicit due date is provided.
const defaultProjectTerm = 365 * 24 * time.Hour

// CreateProjectInput carries fields for a new project. Installments already
// received may be recorded inline; TotalPaid is derived from them.
type CreateProjectInput struct {
	ProjectName  string               `json:"project_name" validate:"required"`
	ClientName   string               `json:"client_name" validate:"required"`
	Mobile       string               `json:"mobile" validate:"required"`
	BusinessName string               `json:"business_name"`
	Services     []string             `json:"services"`
	TotalAmount  float64              `json:"total_amount" validate:"gte=0"`
	LiveDate     *time.Time           `json:"live_date"`
	DueDate      *time.Time           `json:"due_date"`
	Payments     []RecordPaymentInput `json:"payments" validate:"omitempty,dive"`
}

// UpdateProjectInput uses pointers so absent fields stay untouched.
type UpdateProjectInput struct {
	ProjectName  *string    `json:"project_name"`
	ClientName   *string    `json:"client_name"`
	Mobile       *string    `json:"mobile"`
	BusinessName *string    `json:"business_name"`
	Services     *[]string  `json:"services"`
	TotalAmount  *float64   `json:"total_amount" validate:"omitempty,gte=0"`
	LiveDate     *time.Time `json:"live_date"`
	DueDate      *time.Time `json:"due_date"`
}

// RecordPaymentInput is a single installment against a project.
type RecordPaymentInput struct {
	Amount float64            `json:"amount" validate:"required,gt=0"`
	Mode   models.PaymentMode `json:"mode" validate:"required,oneof=UPI Cash Bank Card"`
	PaidOn *time.Time         `json:"paid_on"`
	Note   string             `json:"note"`
}

// ProjectService manages projects and their installment payments.
type ProjectService struct {
	db  *gorm.DB
	now func() time.Time
}

// ProjectOption customises a ProjectService.
type ProjectOption func(*ProjectService)

// WithProjectClock overrides the time source, primarily for tests.
func WithProjectClock(now func() time.Time) ProjectOption {
	return func(s *ProjectService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewProjectService(db *gorm.DB, opts ...ProjectOption) *ProjectService {
	s := &ProjectService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ProjectService) List(ctx context.Context) ([]models.Project, error) {
	ctx = ensureContext(ctx)

	var projects []models.Project
	err := s.db.WithContext(ctx).
		Preload("Payments").
		Order("created_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list projects")
	}
	return projects, nil
}

func (s *ProjectService) GetByID(ctx context.Context, id string) (*models.Project, error) {
	ctx = ensureContext(ctx)

	var project models.Project
	err := s.db.WithContext(ctx).
		Preload("Payments").
		First(&project, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load project")
	}
	return &project, nil
}

// Create opens a project. Going live without an explicit due date starts a
// one-year term from the live date.
func (s *ProjectService) Create(ctx context.Context, input CreateProjectInput) (*models.Project, error) {
	ctx = ensureContext(ctx)

	now := s.now().UTC()
	project := &models.Project{
		ProjectName:        strings.TrimSpace(input.ProjectName),
		ClientName:         strings.TrimSpace(input.ClientName),
		Mobile:             strings.TrimSpace(input.Mobile),
		BusinessName:       strings.TrimSpace(input.BusinessName),
		Services:           ParseServiceList(input.Services),
		TotalAmount:        input.TotalAmount,
		ProjectCreatedDate: now,
		LiveDate:           input.LiveDate,
		DueDate:            input.DueDate,
	}

	for _, p := range input.Payments {
		if p.Amount <= 0 {
			return nil, apperrors.NewBadRequest("payment amount must be positive")
		}
		if !p.Mode.Valid() {
			return nil, apperrors.NewBadRequest("unknown payment mode")
		}
		paidOn := now
		if p.PaidOn != nil {
			paidOn = p.PaidOn.UTC()
		}
		project.Payments = append(project.Payments, models.Payment{
			Amount: p.Amount,
			Mode:   p.Mode,
			PaidOn: paidOn,
			Note:   p.Note,
		})
		project.TotalPaid += p.Amount
	}

	s.applyDates(project)
	project.Status = project.DeriveStatus(now)

	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to create project")
	}
	return project, nil
}

func (s *ProjectService) Update(ctx context.Context, id string, input UpdateProjectInput) (*models.Project, error) {
	ctx = ensureContext(ctx)

	project, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.ProjectName != nil {
		project.ProjectName = strings.TrimSpace(*input.ProjectName)
	}
	if input.ClientName != nil {
		project.ClientName = strings.TrimSpace(*input.ClientName)
	}
	if input.Mobile != nil {
		project.Mobile = strings.TrimSpace(*input.Mobile)
	}
	if input.BusinessName != nil {
		project.BusinessName = strings.TrimSpace(*input.BusinessName)
	}
	if input.Services != nil {
		project.Services = ParseServiceList(*input.Services)
	}
	if input.TotalAmount != nil {
		project.TotalAmount = *input.TotalAmount
	}
	if input.LiveDate != nil {
		project.LiveDate = input.LiveDate
	}
	if input.DueDate != nil {
		project.DueDate = input.DueDate
	}
	s.applyDates(project)
	project.Status = project.DeriveStatus(s.now().UTC())

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(project).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to update project")
	}
	return project, nil
}

func (s *ProjectService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Payment{}, "project_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Project{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrNotFound
		}
		return apperrors.Wrap(err, "failed to delete project")
	}
	return nil
}

// RecordPayment appends an installment and keeps TotalPaid in sync with the
// recorded payments, atomically.
func (s *ProjectService) RecordPayment(ctx context.Context, projectID string, input RecordPaymentInput) (*models.Project, error) {
	ctx = ensureContext(ctx)

	if input.Amount <= 0 {
		return nil, apperrors.NewBadRequest("payment amount must be positive")
	}
	if !input.Mode.Valid() {
		return nil, apperrors.NewBadRequest("unknown payment mode")
	}

	project, err := s.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	paidOn := s.now().UTC()
	if input.PaidOn != nil {
		paidOn = input.PaidOn.UTC()
	}

	payment := &models.Payment{
		ProjectID: project.ID,
		Amount:    input.Amount,
		Mode:      input.Mode,
		PaidOn:    paidOn,
		Note:      input.Note,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(payment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Project{}).
			Where("id = ?", project.ID).
			Update("total_paid", gorm.Expr("total_paid + ?", input.Amount)).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to record payment")
	}

	return s.GetByID(ctx, projectID)
}

// RefreshStatuses recomputes the status of every project from its dates and
// persists the ones that changed. The maintenance job runs this on a schedule
// so expiries do not depend on someone opening the panel.
func (s *ProjectService) RefreshStatuses(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)

	var projects []models.Project
	if err := s.db.WithContext(ctx).Find(&projects).Error; err != nil {
		return 0, apperrors.Wrap(err, "failed to load projects")
	}

	now := s.now().UTC()
	changed := 0
	for i := range projects {
		project := &projects[i]
		next := project.DeriveStatus(now)
		if next == project.Status {
			continue
		}
		err := s.db.WithContext(ctx).
			Model(&models.Project{}).
			Where("id = ?", project.ID).
			Update("status", next).Error
		if err != nil {
			return changed, apperrors.Wrap(err, "failed to refresh project status")
		}
		changed++
	}
	return changed, nil
}

func (s *ProjectService) applyDates(project *models.Project) {
	if project.LiveDate != nil && project.DueDate == nil {
		due := project.LiveDate.Add(defaultProjectTerm)
		project.DueDate = &due
	}
}
