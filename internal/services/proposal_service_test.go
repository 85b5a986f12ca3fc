package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/techvara/crm/internal/database/testutil"
	"github.com/techvara/crm/internal/models"
	apperrors "github.com/techvara/crm/pkg/errors"
	"github.com/techvara/crm/pkg/mail"
)

type recordingMailer struct {
	messages []mail.Message
	err      error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func seedLead(t *testing.T, db *gorm.DB, email string) *models.Lead {
	t.Helper()

	lead := &models.Lead{
		Name:         "Asha Traders",
		Email:        email,
		BusinessName: "Asha Trading Co",
		Status:       "new",
	}
	require.NoError(t, db.Create(lead).Error)
	return lead
}

func newProposalService(t *testing.T, db *gorm.DB, mailer mail.Mailer) *ProposalService {
	t.Helper()

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return NewProposalService(db, mailer, "https://crm.example.com",
		WithProposalClock(func() time.Time { return base }))
}

func TestProposalSendIssuesStableToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	mailer := &recordingMailer{}
	svc := newProposalService(t, db, mailer)

	lead := seedLead(t, db, "asha@example.com")

	first, err := svc.Send(context.Background(), lead.ID, "")
	require.NoError(t, err)
	require.True(t, first.Sent)
	require.NotNil(t, first.SentAt)
	require.Len(t, first.ResponseToken, 48)
	require.Equal(t, models.ProposalPending, first.Status)
	require.Equal(t, "asha@example.com", first.SentToEmail)

	second, err := svc.Send(context.Background(), lead.ID, "")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.ResponseToken, second.ResponseToken)

	var count int64
	require.NoError(t, db.Model(&models.Proposal{}).Where("lead_id = ?", lead.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	require.Len(t, mailer.messages, 2)
	require.Contains(t, mailer.messages[0].Body, "/proposal/view/"+first.ResponseToken)
	require.Contains(t, mailer.messages[0].Body, "/proposal/accept/"+first.ResponseToken)
	require.Contains(t, mailer.messages[0].Body, "/proposal/reject/"+first.ResponseToken)
}

func TestProposalCreateDraftsWithoutSending(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	mailer := &recordingMailer{}
	svc := newProposalService(t, db, mailer)

	lead := seedLead(t, db, "asha@example.com")

	draft, err := svc.Create(context.Background(), lead.ID, "")
	require.NoError(t, err)
	require.False(t, draft.Sent)
	require.Empty(t, draft.ResponseToken)
	require.Equal(t, models.ProposalPending, draft.Status)
	require.Empty(t, mailer.messages)

	// A lead carries at most one proposal.
	_, err = svc.Create(context.Background(), lead.ID, "")
	require.ErrorIs(t, err, ErrProposalExists)

	// Sending later reuses the drafted record.
	sent, err := svc.Send(context.Background(), lead.ID, "")
	require.NoError(t, err)
	require.Equal(t, draft.ID, sent.ID)
	require.Len(t, sent.ResponseToken, 48)

	var count int64
	require.NoError(t, db.Model(&models.Proposal{}).Where("lead_id = ?", lead.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestProposalCreateUnknownLead(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newProposalService(t, db, &recordingMailer{})

	_, err := svc.Create(context.Background(), "00000000-0000-0000-0000-000000000000", "")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProposalResendResetsDecisionState(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newProposalService(t, db, &recordingMailer{})

	lead := seedLead(t, db, "asha@example.com")

	sent, err := svc.Send(context.Background(), lead.ID, "")
	require.NoError(t, err)

	accepted, err := svc.Decide(context.Background(), sent.ResponseToken, models.DecisionAccept)
	require.NoError(t, err)
	require.Equal(t, models.ProposalAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)

	resent, err := svc.Send(context.Background(), lead.ID, "")
	require.NoError(t, err)
	require.Equal(t, sent.ResponseToken, resent.ResponseToken)
	require.Equal(t, models.ProposalPending, resent.Status)
	require.Nil(t, resent.RespondedAt)
	require.Nil(t, resent.AcceptedAt)
	require.Nil(t, resent.RejectedAt)
	require.False(t, resent.Accepted())
}

func TestProposalDecisionTimestampsExclusive(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newProposalService(t, db, &recordingMailer{})

	lead := seedLead(t, db, "asha@example.com")
	sent, err := svc.Send(context.Background(), lead.ID, "")
	require.NoError(t, err)

	sequence := []models.ProposalDecision{
		models.DecisionAccept,
		models.DecisionReject,
		models.DecisionReject,
		models.DecisionAccept,
	}

	for _, decision := range sequence {
		got, err := svc.Decide(context.Background(), sent.ResponseToken, decision)
		require.NoError(t, err)
		require.NotNil(t, got.RespondedAt)

		switch decision {
		case models.DecisionAccept:
			require.Equal(t, models.ProposalAccepted, got.Status)
			require.NotNil(t, got.AcceptedAt)
			require.Nil(t, got.RejectedAt)
			require.True(t, got.Accepted())
		case models.DecisionReject:
			require.Equal(t, models.ProposalRejected, got.Status)
			require.NotNil(t, got.RejectedAt)
			require.Nil(t, got.AcceptedAt)
			require.False(t, got.Accepted())
		}
	}
}

func TestProposalUnknownTokenWritesNothing(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newProposalService(t, db, &recordingMailer{})

	lead := seedLead(t, db, "asha@example.com")
	sent, err := svc.Send(context.Background(), lead.ID, "")
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), "deadbeef", models.DecisionAccept)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.FindByToken(context.Background(), "")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	var reloaded models.Proposal
	require.NoError(t, db.First(&reloaded, "id = ?", sent.ID).Error)
	require.Equal(t, models.ProposalPending, reloaded.Status)
	require.Nil(t, reloaded.RespondedAt)
}

func TestProposalSendRequiresLeadEmail(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	mailer := &recordingMailer{}
	svc := newProposalService(t, db, mailer)

	lead := seedLead(t, db, "")

	_, err := svc.Send(context.Background(), lead.ID, "")
	require.ErrorIs(t, err, ErrLeadEmailMissing)
	require.Empty(t, mailer.messages)

	// No proposal record and no token may exist after the failed send.
	var count int64
	require.NoError(t, db.Model(&models.Proposal{}).Where("lead_id = ?", lead.ID).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestProposalSendUnknownLead(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newProposalService(t, db, &recordingMailer{})

	_, err := svc.Send(context.Background(), "00000000-0000-0000-0000-000000000000", "")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProposalDispatchFailureKeepsSentState(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	mailer := &recordingMailer{err: errors.New("smtp: connection refused")}
	svc := newProposalService(t, db, mailer)

	lead := seedLead(t, db, "asha@example.com")

	proposal, err := svc.Send(context.Background(), lead.ID, "")
	require.ErrorIs(t, err, apperrors.ErrDispatchFailed)
	require.NotNil(t, proposal)

	// Persist-then-notify: the send state survives the delivery failure and
	// the token remains valid for a retry.
	var reloaded models.Proposal
	require.NoError(t, db.First(&reloaded, "lead_id = ?", lead.ID).Error)
	require.True(t, reloaded.Sent)
	require.Equal(t, proposal.ResponseToken, reloaded.ResponseToken)
	require.Len(t, reloaded.ResponseToken, 48)
}

func TestProposalSendWithSMTPDisabled(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	mailer := &recordingMailer{err: mail.ErrSMTPDisabled}
	svc := newProposalService(t, db, mailer)

	lead := seedLead(t, db, "asha@example.com")

	proposal, err := svc.Send(context.Background(), lead.ID, "")
	require.NoError(t, err)
	require.True(t, proposal.Sent)
}

func TestProposalFindByTokenMissingLead(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newProposalService(t, db, &recordingMailer{})

	lead := seedLead(t, db, "asha@example.com")
	sent, err := svc.Send(context.Background(), lead.ID, "")
	require.NoError(t, err)

	require.NoError(t, db.Delete(&models.Lead{}, "id = ?", lead.ID).Error)

	_, err = svc.FindByToken(context.Background(), sent.ResponseToken)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProposalDecideRejectsUnknownVerb(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newProposalService(t, db, &recordingMailer{})

	_, err := svc.Decide(context.Background(), "sometoken", models.ProposalDecision("maybe"))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrBadRequest.Code, appErr.Code)
}
