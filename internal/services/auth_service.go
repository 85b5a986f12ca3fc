package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/techvara/crm/internal/auth"
	"github.com/techvara/crm/internal/models"
	"github.com/techvara/crm/pkg/crypto"
	apperrors "github.com/techvara/crm/pkg/errors"
	"github.com/techvara/crm/pkg/logger"
	"github.com/techvara/crm/pkg/metrics"
)

// LoginResult bundles the authenticated user with their access token.
type LoginResult struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

// AuthService verifies credentials and issues access tokens.
type AuthService struct {
	db  *gorm.DB
	jwt *auth.JWTService
	log *zap.Logger
}

func NewAuthService(db *gorm.DB, jwt *auth.JWTService) *AuthService {
	return &AuthService{
		db:  db,
		jwt: jwt,
		log: logger.WithModule("services.auth"),
	}
}

// Login authenticates a username/password pair. Unknown users and wrong
// passwords produce the same error so the endpoint does not leak which
// usernames exist.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	ctx = ensureContext(ctx)

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load user")
	}

	if !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		s.log.Warn("invalid password attempt", zap.String("username", username))
		return nil, apperrors.ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateAccessToken(&user)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to issue access token")
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &LoginResult{User: &user, AccessToken: token}, nil
}

// GetUser loads the authenticated user's own profile.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load user")
	}
	return &user, nil
}
