package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/techvara/crm/internal/database/testutil"
	"github.com/techvara/crm/internal/models"
	"github.com/techvara/crm/internal/services"
	"github.com/techvara/crm/pkg/mail"
)

type noopMailer struct{}

func (noopMailer) Send(context.Context, mail.Message) error { return nil }

func TestMaintenanceRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	projects := services.NewProjectService(db, services.WithProjectClock(func() time.Time { return base }))
	proposals := services.NewProposalService(db, noopMailer{}, "https://crm.example.com")

	// A live project whose due date already passed, with a stale status.
	live := base.AddDate(-2, 0, 0)
	due := base.AddDate(0, 0, -1)
	project := &models.Project{
		ProjectName:        "Old retainer",
		ClientName:         "Asha Traders",
		Mobile:             "9876543210",
		TotalAmount:        10000,
		ProjectCreatedDate: live,
		LiveDate:           &live,
		DueDate:            &due,
		Status:             models.ProjectLive,
	}
	require.NoError(t, db.Create(project).Error)

	// A proposal pointing at a lead that no longer exists.
	lead := &models.Lead{Name: "Gone", Email: "gone@example.com"}
	require.NoError(t, db.Create(lead).Error)
	sent, err := proposals.Send(context.Background(), lead.ID, "")
	require.NoError(t, err)
	require.NoError(t, db.Delete(&models.Lead{}, "id = ?", lead.ID).Error)

	m := NewMaintenance(projects, proposals, "@hourly")
	require.NoError(t, m.RunOnce(context.Background()))

	var reloaded models.Project
	require.NoError(t, db.First(&reloaded, "id = ?", project.ID).Error)
	require.Equal(t, models.ProjectExpired, reloaded.Status)

	var remaining int64
	require.NoError(t, db.Model(&models.Proposal{}).Where("id = ?", sent.ID).Count(&remaining).Error)
	require.EqualValues(t, 0, remaining)
}

func TestMaintenanceStartRejectsBadSchedule(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	projects := services.NewProjectService(db)
	proposals := services.NewProposalService(db, noopMailer{}, "https://crm.example.com")

	m := NewMaintenance(projects, proposals, "not a schedule")
	require.Error(t, m.Start())
}
