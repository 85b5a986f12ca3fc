package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/techvara/crm/internal/models"
	"github.com/techvara/crm/pkg/crypto"
	apperrors "github.com/techvara/crm/pkg/errors"
	"github.com/techvara/crm/pkg/logger"
	"github.com/techvara/crm/pkg/mail"
)

var errUsernameTaken = apperrors.New(
	"USERNAME_TAKEN",
	"Username or email already in use",
	apperrors.ErrBadRequest.StatusCode,
)

// CreateUserInput carries the fields an admin supplies for a new account.
type CreateUserInput struct {
	Name     string          `json:"name" validate:"required"`
	Username string          `json:"username" validate:"required,min=3"`
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=6"`
	Role     models.UserRole `json:"role" validate:"omitempty,oneof=Admin Worker"`
}

// UpdateUserInput uses pointers so absent fields stay untouched.
type UpdateUserInput struct {
	Name     *string          `json:"name" validate:"omitempty"`
	Email    *string          `json:"email" validate:"omitempty,email"`
	Password *string          `json:"password" validate:"omitempty,min=6"`
	Role     *models.UserRole `json:"role" validate:"omitempty,oneof=Admin Worker"`
}

// UserService manages panel accounts.
type UserService struct {
	db         *gorm.DB
	mailer     mail.Mailer
	senderName string
	log        *zap.Logger
}

func NewUserService(db *gorm.DB, mailer mail.Mailer) *UserService {
	return &UserService{
		db:         db,
		mailer:     mailer,
		senderName: "Techvara",
		log:        logger.WithModule("services.user"),
	}
}

// List returns every account, newest first.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	ctx = ensureContext(ctx)

	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to list users")
	}
	return users, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load user")
	}
	return &user, nil
}

// Create registers a new account and emails a welcome message. Delivery is
// best-effort: the account exists even when the email fails.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	role := input.Role
	if role == "" {
		role = models.RoleWorker
	}
	if !role.Valid() {
		return nil, apperrors.NewBadRequest("unknown role")
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash password")
	}

	user := &models.User{
		Name:     strings.TrimSpace(input.Name),
		Username: strings.ToLower(strings.TrimSpace(input.Username)),
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		Password: hash,
		Role:     role,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, errUsernameTaken
		}
		return nil, apperrors.Wrap(err, "failed to create user")
	}

	s.sendWelcome(ctx, user)
	return user, nil
}

// Update edits an account in place.
func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*input.Email))
	}
	if input.Role != nil {
		if !input.Role.Valid() {
			return nil, apperrors.NewBadRequest("unknown role")
		}
		user.Role = *input.Role
	}
	if input.Password != nil {
		hash, err := crypto.HashPassword(*input.Password)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to hash password")
		}
		user.Password = hash
	}

	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, errUsernameTaken
		}
		return nil, apperrors.Wrap(err, "failed to update user")
	}
	return user, nil
}

// Delete removes an account. Admins cannot delete themselves, and the last
// admin cannot be deleted.
func (s *UserService) Delete(ctx context.Context, callerID, id string) error {
	ctx = ensureContext(ctx)

	if callerID != "" && callerID == id {
		return apperrors.New("SELF_DELETE", "You cannot delete your own account", apperrors.ErrBadRequest.StatusCode)
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if user.Role == models.RoleAdmin {
		var admins int64
		err := s.db.WithContext(ctx).
			Model(&models.User{}).
			Where("role = ?", models.RoleAdmin).
			Count(&admins).Error
		if err != nil {
			return apperrors.Wrap(err, "failed to count admins")
		}
		if admins <= 1 {
			return apperrors.New("LAST_ADMIN", "Cannot delete the last admin account", apperrors.ErrBadRequest.StatusCode)
		}
	}

	if err := s.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id).Error; err != nil {
		return apperrors.Wrap(err, "failed to delete user")
	}
	return nil
}

// EnsureAdmin seeds the bootstrap admin account when no admin exists yet.
// It is idempotent and safe to run on every startup.
func (s *UserService) EnsureAdmin(ctx context.Context, name, username, email, password string) error {
	ctx = ensureContext(ctx)

	var admins int64
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&admins).Error
	if err != nil {
		return apperrors.Wrap(err, "failed to count admins")
	}
	if admins > 0 {
		return nil
	}

	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		s.log.Warn("no admin account exists and bootstrap credentials are not configured")
		return nil
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return apperrors.Wrap(err, "failed to hash bootstrap password")
	}

	admin := &models.User{
		Name:     name,
		Username: strings.ToLower(strings.TrimSpace(username)),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: hash,
		Role:     models.RoleAdmin,
	}

	err = s.db.WithContext(ctx).Create(admin).Error
	if err != nil && !isUniqueConstraintError(err) {
		return apperrors.Wrap(err, "failed to seed admin account")
	}
	if err == nil {
		s.log.Info("seeded bootstrap admin account", zap.String("username", admin.Username))
	}
	return nil
}

func (s *UserService) sendWelcome(ctx context.Context, user *models.User) {
	if user.Email == "" {
		return
	}

	body := fmt.Sprintf(`<html><body>
<p>Hello %s,</p>
<p>An account has been created for you on the %s panel.</p>
<p>Username: <strong>%s</strong></p>
<p>Please log in and keep your credentials safe.</p>
</body></html>`,
		htmlEscape(user.Name), htmlEscape(s.senderName), htmlEscape(user.Username))

	err := s.mailer.Send(ctx, mail.Message{
		To:      []string{user.Email},
		Subject: fmt.Sprintf("Welcome to %s", s.senderName),
		Body:    body,
		HTML:    true,
	})
	if err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		s.log.Warn("welcome email failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}
