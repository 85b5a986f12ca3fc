package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/techvara/crm/internal/models"
	apperrors "github.com/techvara/crm/pkg/errors"
)

// CreateAgreementInput carries fields for a new agreement.
type CreateAgreementInput struct {
	Title  string `json:"title" validate:"required"`
	Terms  string `json:"terms"`
	LeadID string `json:"lead_id" validate:"omitempty,uuid"`
}

// UpdateAgreementInput uses pointers so absent fields stay untouched.
type UpdateAgreementInput struct {
	Title  *string `json:"title"`
	Terms  *string `json:"terms"`
	Signed *bool   `json:"signed"`
}

// AgreementService manages agreement records.
type AgreementService struct {
	db *gorm.DB
}

func NewAgreementService(db *gorm.DB) *AgreementService {
	return &AgreementService{db: db}
}

func (s *AgreementService) List(ctx context.Context) ([]models.Agreement, error) {
	ctx = ensureContext(ctx)

	var agreements []models.Agreement
	err := s.db.WithContext(ctx).
		Preload("Lead").
		Preload("CreatedBy").
		Order("created_at DESC").
		Find(&agreements).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list agreements")
	}
	return agreements, nil
}

func (s *AgreementService) GetByID(ctx context.Context, id string) (*models.Agreement, error) {
	ctx = ensureContext(ctx)

	var agreement models.Agreement
	err := s.db.WithContext(ctx).
		Preload("Lead").
		Preload("CreatedBy").
		First(&agreement, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load agreement")
	}
	return &agreement, nil
}

func (s *AgreementService) Create(ctx context.Context, createdBy string, input CreateAgreementInput) (*models.Agreement, error) {
	ctx = ensureContext(ctx)

	if leadID := strings.TrimSpace(input.LeadID); leadID != "" {
		var exists int64
		err := s.db.WithContext(ctx).
			Model(&models.Lead{}).
			Where("id = ?", leadID).
			Count(&exists).Error
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to verify lead")
		}
		if exists == 0 {
			return nil, apperrors.NewBadRequest("lead does not exist")
		}
	}

	agreement := &models.Agreement{
		Title:       strings.TrimSpace(input.Title),
		Terms:       input.Terms,
		LeadID:      optionalID(input.LeadID),
		CreatedByID: optionalID(createdBy),
	}

	if err := s.db.WithContext(ctx).Create(agreement).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to create agreement")
	}
	return agreement, nil
}

func (s *AgreementService) Update(ctx context.Context, id string, input UpdateAgreementInput) (*models.Agreement, error) {
	ctx = ensureContext(ctx)

	agreement, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		agreement.Title = strings.TrimSpace(*input.Title)
	}
	if input.Terms != nil {
		agreement.Terms = *input.Terms
	}
	if input.Signed != nil {
		agreement.Signed = *input.Signed
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(agreement).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to update agreement")
	}
	return agreement, nil
}

func (s *AgreementService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Delete(&models.Agreement{}, "id = ?", id)
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "failed to delete agreement")
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
