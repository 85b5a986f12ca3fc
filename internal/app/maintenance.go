package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/techvara/crm/internal/services"
	"github.com/techvara/crm/pkg/logger"
)

// Maintenance runs the scheduled background work: refreshing project
// statuses so expiries do not wait for a panel visit, and purging proposals
// whose lead has been deleted.
type Maintenance struct {
	projects  *services.ProjectService
	proposals *services.ProposalService
	schedule  string
	cron      *cron.Cron
	log       *zap.Logger
}

// MaintenanceOption customises the maintenance runner.
type MaintenanceOption func(*Maintenance)

// WithMaintenanceCron substitutes the cron scheduler, primarily for tests.
func WithMaintenanceCron(c *cron.Cron) MaintenanceOption {
	return func(m *Maintenance) {
		if c != nil {
			m.cron = c
		}
	}
}

func NewMaintenance(projects *services.ProjectService, proposals *services.ProposalService, schedule string, opts ...MaintenanceOption) *Maintenance {
	m := &Maintenance{
		projects:  projects,
		proposals: proposals,
		schedule:  schedule,
		cron:      cron.New(),
		log:       logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start registers the scheduled run and starts the scheduler.
func (m *Maintenance) Start() error {
	if m.schedule == "" {
		m.schedule = "@hourly"
	}

	_, err := m.cron.AddFunc(m.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := m.RunOnce(ctx); err != nil {
			m.log.Error("maintenance run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("maintenance: register schedule %q: %w", m.schedule, err)
	}

	m.cron.Start()
	m.log.Info("maintenance scheduler started", zap.String("schedule", m.schedule))
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (m *Maintenance) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

// RunOnce executes every maintenance task, collecting their errors so one
// failing task does not hide the others.
func (m *Maintenance) RunOnce(ctx context.Context) error {
	var errs error

	refreshed, err := m.projects.RefreshStatuses(ctx)
	if err != nil {
		errs = multierr.Append(errs, err)
	} else if refreshed > 0 {
		m.log.Info("project statuses refreshed", zap.Int("changed", refreshed))
	}

	purged, err := m.proposals.PurgeOrphans(ctx)
	if err != nil {
		errs = multierr.Append(errs, err)
	} else if purged > 0 {
		m.log.Info("orphaned proposals purged", zap.Int("purged", purged))
	}

	return errs
}
