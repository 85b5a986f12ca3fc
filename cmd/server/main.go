package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/techvara/crm/internal/api"
	"github.com/techvara/crm/internal/app"
	"github.com/techvara/crm/internal/auth"
	"github.com/techvara/crm/internal/database"
	"github.com/techvara/crm/internal/services"
	"github.com/techvara/crm/pkg/logger"
	"github.com/techvara/crm/pkg/mail"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Server.LogLevel); err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	log := logger.WithModule("server")

	db, err := database.Open(cfg.DatabaseSettings())
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	mailer, err := mail.NewSMTPMailer(cfg.MailerSettings())
	if err != nil {
		return err
	}

	jwt, err := auth.NewJWTService(auth.JWTConfig{
		Secret:         cfg.Auth.JWT.Secret,
		Issuer:         cfg.Auth.JWT.Issuer,
		AccessTokenTTL: cfg.Auth.JWT.TTL,
	})
	if err != nil {
		return err
	}

	userService := services.NewUserService(db, mailer)
	proposalService := services.NewProposalService(db, mailer, cfg.Server.BaseURL,
		services.WithProposalSender(cfg.Email.SenderName))
	projectService := services.NewProjectService(db)

	if err := userService.EnsureAdmin(ctx,
		cfg.Bootstrap.AdminName,
		cfg.Bootstrap.AdminUsername,
		cfg.Bootstrap.AdminEmail,
		cfg.Bootstrap.AdminPassword,
	); err != nil {
		return err
	}

	router := api.NewRouter(api.Dependencies{
		DB:              db,
		JWT:             jwt,
		Auth:            services.NewAuthService(db, jwt),
		Users:           userService,
		Leads:           services.NewLeadService(db),
		Proposals:       proposalService,
		Agreements:      services.NewAgreementService(db),
		Projects:        projectService,
		MetricsEnabled:  cfg.Monitoring.Prometheus.Enabled,
		MetricsEndpoint: cfg.Monitoring.Prometheus.Endpoint,
	})

	var maintenance *app.Maintenance
	if cfg.Maintenance.Enabled {
		maintenance = app.NewMaintenance(projectService, proposalService, cfg.Maintenance.ProjectSchedule)
		if err := maintenance.Start(); err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if maintenance != nil {
		maintenance.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info("stopped")
	return nil
}
