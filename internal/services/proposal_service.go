package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/techvara/crm/internal/models"
	"github.com/techvara/crm/pkg/crypto"
	apperrors "github.com/techvara/crm/pkg/errors"
	"github.com/techvara/crm/pkg/logger"
	"github.com/techvara/crm/pkg/mail"
)

// responseTokenBytes is the entropy of a proposal response token. The token
// is hex-encoded, so recipients see twice as many characters.
const responseTokenBytes = 24

var (
	// ErrLeadEmailMissing rejects a send before any token is issued or state
	// is persisted: without a recipient address the decision links would be
	// undeliverable.
	ErrLeadEmailMissing = apperrors.New(
		"LEAD_EMAIL_MISSING",
		"Lead has no email address; add one before sending a proposal",
		apperrors.ErrBadRequest.StatusCode,
	)

	// ErrProposalDispatchFailed reports that the proposal was persisted as
	// sent but the notification email could not be delivered. Re-sending
	// retries delivery with the same token.
	ErrProposalDispatchFailed = apperrors.ErrDispatchFailed

	// ErrProposalExists rejects creating a second proposal for a lead that
	// already has one.
	ErrProposalExists = apperrors.New(
		"PROPOSAL_EXISTS",
		"Lead already has a proposal",
		http.StatusConflict,
	)
)

// ProposalService manages proposals and their tokenized approval workflow.
type ProposalService struct {
	db         *gorm.DB
	mailer     mail.Mailer
	baseURL    string
	senderName string
	now        func() time.Time
	log        *zap.Logger
}

// ProposalOption customises a ProposalService.
type ProposalOption func(*ProposalService)

// WithProposalClock overrides the time source, primarily for tests.
func WithProposalClock(now func() time.Time) ProposalOption {
	return func(s *ProposalService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithProposalSender overrides the display name used in outbound emails.
func WithProposalSender(name string) ProposalOption {
	return func(s *ProposalService) {
		if strings.TrimSpace(name) != "" {
			s.senderName = name
		}
	}
}

// NewProposalService wires the proposal workflow. baseURL is the externally
// reachable origin used to build decision links.
func NewProposalService(db *gorm.DB, mailer mail.Mailer, baseURL string, opts ...ProposalOption) *ProposalService {
	s := &ProposalService{
		db:         db,
		mailer:     mailer,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		senderName: "Techvara",
		now:        time.Now,
		log:        logger.WithModule("services.proposal"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns proposals newest-first with their lead and audit relations.
func (s *ProposalService) List(ctx context.Context) ([]models.Proposal, error) {
	ctx = ensureContext(ctx)

	var proposals []models.Proposal
	err := s.db.WithContext(ctx).
		Preload("Lead").
		Preload("SentBy").
		Preload("CreatedBy").
		Order("created_at DESC").
		Find(&proposals).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list proposals")
	}
	return proposals, nil
}

// GetByID fetches a single proposal for the admin panel.
func (s *ProposalService) GetByID(ctx context.Context, id string) (*models.Proposal, error) {
	ctx = ensureContext(ctx)

	var proposal models.Proposal
	err := s.db.WithContext(ctx).
		Preload("Lead").
		Preload("SentBy").
		Preload("CreatedBy").
		First(&proposal, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load proposal")
	}
	return &proposal, nil
}

// Create drafts an unsent proposal for a lead without issuing a token or
// sending email. Sending later reuses this record.
func (s *ProposalService) Create(ctx context.Context, leadID, createdByID string) (*models.Proposal, error) {
	ctx = ensureContext(ctx)

	var lead models.Lead
	err := s.db.WithContext(ctx).First(&lead, "id = ?", leadID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load lead")
	}

	proposal, err := s.findOrInitForLead(ctx, lead.ID, createdByID)
	if err != nil {
		return nil, err
	}
	if proposal.ID != "" {
		return nil, ErrProposalExists
	}

	if err := s.db.WithContext(ctx).Create(proposal).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to create proposal")
	}

	proposal.Lead = &lead
	return proposal, nil
}

// Send issues (or re-sends) the proposal for a lead. The flow is
// persist-then-notify: the sent state and token are committed before the
// email leaves, so a delivery failure never loses the token. On dispatch
// failure the persisted proposal is returned together with
// ErrProposalDispatchFailed.
func (s *ProposalService) Send(ctx context.Context, leadID, sentByID string) (*models.Proposal, error) {
	ctx = ensureContext(ctx)

	var lead models.Lead
	err := s.db.WithContext(ctx).First(&lead, "id = ?", leadID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load lead")
	}

	// Validation precedes token issuance so a failed send leaves no trace.
	email := strings.TrimSpace(lead.Email)
	if email == "" {
		return nil, ErrLeadEmailMissing
	}

	proposal, err := s.findOrInitForLead(ctx, lead.ID, sentByID)
	if err != nil {
		return nil, err
	}

	// First send mints the token; re-sends reuse it so earlier links stay valid.
	if proposal.ResponseToken == "" {
		token, err := crypto.GenerateHexToken(responseTokenBytes)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to generate response token")
		}
		proposal.ResponseToken = token
	}

	proposal.ApplySend(s.now().UTC(), sentByID, email)

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(proposal).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to persist proposal send")
	}

	proposal.Lead = &lead

	if err := s.deliver(ctx, proposal, &lead); err != nil {
		if errors.Is(err, mail.ErrSMTPDisabled) {
			s.log.Warn("proposal email skipped, smtp disabled",
				zap.String("proposal_id", proposal.ID),
				zap.String("lead_id", lead.ID))
			return proposal, nil
		}
		s.log.Error("proposal email dispatch failed",
			zap.String("proposal_id", proposal.ID),
			zap.String("lead_id", lead.ID),
			zap.Error(err))
		return proposal, ErrProposalDispatchFailed.WithInternal(err)
	}

	return proposal, nil
}

// FindByToken resolves a public decision link. Unknown, unsent and orphaned
// tokens are indistinguishable to callers: all come back as not found.
func (s *ProposalService) FindByToken(ctx context.Context, token string) (*models.Proposal, error) {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.ErrNotFound
	}

	var proposal models.Proposal
	err := s.db.WithContext(ctx).
		Preload("Lead").
		First(&proposal, "response_token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to resolve response token")
	}

	// A proposal whose lead vanished has no meaningful workflow left.
	if proposal.Lead == nil {
		return nil, apperrors.ErrNotFound
	}

	return &proposal, nil
}

// Decide records a recipient decision reached through a tokenized link. The
// latest visit wins even after an earlier accept or reject.
func (s *ProposalService) Decide(ctx context.Context, token string, decision models.ProposalDecision) (*models.Proposal, error) {
	ctx = ensureContext(ctx)

	if decision != models.DecisionAccept && decision != models.DecisionReject {
		return nil, apperrors.NewBadRequest("unknown decision")
	}

	proposal, err := s.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	proposal.ApplyDecision(decision, s.now().UTC())

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(proposal).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to persist proposal decision")
	}

	return proposal, nil
}

// Delete removes a proposal, invalidating its token.
func (s *ProposalService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Delete(&models.Proposal{}, "id = ?", id)
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "failed to delete proposal")
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// PurgeOrphans deletes proposals whose lead no longer exists. Their tokens
// already resolve as not found; this just keeps the table tidy.
func (s *ProposalService) PurgeOrphans(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("lead_id NOT IN (?)", s.db.Model(&models.Lead{}).Select("id")).
		Delete(&models.Proposal{})
	if result.Error != nil {
		return 0, apperrors.Wrap(result.Error, "failed to purge orphaned proposals")
	}
	return int(result.RowsAffected), nil
}

// findOrInitForLead returns the lead's proposal, creating an unsent record
// in memory when none exists yet. Each lead carries at most one proposal.
func (s *ProposalService) findOrInitForLead(ctx context.Context, leadID, createdByID string) (*models.Proposal, error) {
	var proposal models.Proposal
	err := s.db.WithContext(ctx).
		Order("created_at ASC").
		First(&proposal, "lead_id = ?", leadID).Error
	if err == nil {
		return &proposal, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(err, "failed to load proposal for lead")
	}

	return &models.Proposal{
		LeadID:      leadID,
		Status:      models.ProposalPending,
		CreatedByID: optionalID(createdByID),
	}, nil
}

func (s *ProposalService) deliver(ctx context.Context, proposal *models.Proposal, lead *models.Lead) error {
	viewURL := s.decisionURL("view", proposal.ResponseToken)
	acceptURL := s.decisionURL("accept", proposal.ResponseToken)
	rejectURL := s.decisionURL("reject", proposal.ResponseToken)

	body := fmt.Sprintf(`<html><body>
<p>Hello %s,</p>
<p>%s has prepared a proposal for %s. You can review it and respond using the links below. The links do not expire.</p>
<p><a href="%s">View proposal</a></p>
<p><a href="%s">Accept proposal</a> &nbsp; <a href="%s">Reject proposal</a></p>
<p>You can change your decision at any time by visiting the links again.</p>
<p>Regards,<br>%s</p>
</body></html>`,
		htmlEscape(lead.Name),
		htmlEscape(s.senderName),
		htmlEscape(displayBusiness(lead)),
		viewURL, acceptURL, rejectURL,
		htmlEscape(s.senderName),
	)

	return s.mailer.Send(ctx, mail.Message{
		To:      []string{proposal.SentToEmail},
		Subject: fmt.Sprintf("Proposal from %s", s.senderName),
		Body:    body,
		HTML:    true,
	})
}

func (s *ProposalService) decisionURL(action, token string) string {
	return fmt.Sprintf("%s/proposal/%s/%s", s.baseURL, action, token)
}

func displayBusiness(lead *models.Lead) string {
	if strings.TrimSpace(lead.BusinessName) != "" {
		return lead.BusinessName
	}
	return lead.Name
}

func htmlEscape(value string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return replacer.Replace(value)
}
