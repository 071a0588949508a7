package user

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/idgen"
	"github.com/gestororion/orion/internal/logging"
	"github.com/gestororion/orion/internal/validation"
)

const (
	minPasswordLen  = 4
	bcryptCost      = 10
	resetTokenTTL   = 24 * time.Hour
	resetTokenBytes = 32
)

// Service provides account management business logic.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a new user service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithNow overrides the clock (for testing).
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Store exposes the underlying store to collaborators that need reads.
func (s *Service) Store() Store { return s.store }

// EnsureMaster provisions the single master account at boot if absent.
// Exactly one master exists per installation.
func (s *Service) EnsureMaster(ctx context.Context, username, password string) (*User, error) {
	if existing, err := s.store.FindMaster(ctx); err == nil {
		return existing, nil
	}
	if password == "" {
		password = idgen.Hex(8)
		logging.L(ctx).Warn("master password not configured, generated one",
			"username", username, "password", password)
	}
	return s.Create(ctx, CreateParams{
		Username: username,
		Password: password,
		Role:     identity.RoleMaster,
	})
}

// CreateParams collects the fields needed to open an account.
type CreateParams struct {
	Username         string
	Password         string
	Role             identity.Role
	TenantID         string
	CreatedBy        string
	LegacyResellerID string
	PanelPlan        string
}

// Create opens a new account with a hashed password.
func (s *Service) Create(ctx context.Context, p CreateParams) (*User, error) {
	if !validation.IsValidUsername(p.Username) {
		return nil, fmt.Errorf("user: invalid username %q", p.Username)
	}
	if len(p.Password) < minPasswordLen {
		return nil, ErrPasswordTooShort
	}
	if !p.Role.Valid() {
		return nil, identity.ErrUnknownRole
	}
	if p.Role != identity.RoleMaster && p.TenantID == "" {
		return nil, identity.ErrTenantNotIdentified
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcryptCost)
	if err != nil {
		return nil, err
	}

	if p.PanelPlan == "" {
		p.PanelPlan = DefaultPanelPlan
	}

	now := s.now()
	u := &User{
		ID:               idgen.WithPrefix("usr_"),
		TenantID:         p.TenantID,
		Username:         p.Username,
		PasswordHash:     string(hash),
		Role:             p.Role,
		CreatedBy:        p.CreatedBy,
		LegacyResellerID: p.LegacyResellerID,
		FirstLogin:       true,
		PanelPlan:        p.PanelPlan,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// CheckPassword verifies a plaintext password against the stored hash.
func (s *Service) CheckPassword(u *User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// ChangePassword rotates the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < minPasswordLen {
		return ErrPasswordTooShort
	}
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !s.CheckPassword(u, current) {
		return ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcryptCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	u.UpdatedAt = s.now()
	return s.store.Update(ctx, u)
}

// ChangeUsername renames the account after verifying the password.
func (s *Service) ChangeUsername(ctx context.Context, userID, newUsername, password string) error {
	newUsername = validation.SanitizeString(newUsername, 64)
	if !validation.IsValidUsername(newUsername) {
		return fmt.Errorf("user: invalid username %q", newUsername)
	}
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !s.CheckPassword(u, password) {
		return ErrWrongPassword
	}
	u.Username = newUsername
	u.UpdatedAt = s.now()
	return s.store.Update(ctx, u)
}

// GenerateResetToken issues a one-time password reset token valid for 24h.
// The target must be inside the caller's scope: master reaches any account,
// an admin only accounts of its own tenant. A miss is "not found".
func (s *Service) GenerateResetToken(ctx context.Context, caller identity.Identity, targetID string) (string, error) {
	u, err := s.store.Get(ctx, targetID)
	if err != nil {
		return "", err
	}
	if !caller.IsMaster() && u.TenantID != caller.TenantID {
		return "", ErrUserNotFound
	}
	token := idgen.Hex(resetTokenBytes)
	expiry := s.now().Add(resetTokenTTL)
	u.ResetToken = token
	u.ResetTokenExpiry = &expiry
	u.UpdatedAt = s.now()
	if err := s.store.Update(ctx, u); err != nil {
		return "", err
	}
	return token, nil
}

// ResetByToken sets a new password from a reset token and clears the
// first-login flag. The token is single-use.
func (s *Service) ResetByToken(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrPasswordTooShort
	}
	u, err := s.store.GetByResetToken(ctx, token)
	if err != nil {
		return ErrInvalidToken
	}
	if u.ResetTokenExpiry == nil || s.now().After(*u.ResetTokenExpiry) {
		return ErrTokenExpired
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	u.ResetToken = ""
	u.ResetTokenExpiry = nil
	u.FirstLogin = false
	u.UpdatedAt = s.now()
	return s.store.Update(ctx, u)
}

// MarkFirstLoginDone records that the onboarding hint was dismissed.
func (s *Service) MarkFirstLoginDone(ctx context.Context, userID string) error {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	u.FirstLogin = false
	u.UpdatedAt = s.now()
	return s.store.Update(ctx, u)
}

// ListVisible returns the accounts a caller may see: master sees every
// account (optionally one tenant), an admin only the accounts it created.
func (s *Service) ListVisible(ctx context.Context, caller identity.Identity, explicitTenant string) ([]*User, error) {
	switch caller.Role {
	case identity.RoleMaster:
		return s.store.List(ctx, Filter{TenantID: explicitTenant})
	case identity.RoleAdmin:
		if caller.TenantID == "" {
			return nil, identity.ErrTenantNotIdentified
		}
		return s.store.List(ctx, Filter{TenantID: caller.TenantID, CreatedBy: caller.UserID})
	}
	return nil, ErrUserNotFound
}

// SetExpenses replaces a user's structured expense list.
func (s *Service) SetExpenses(ctx context.Context, userID string, expenses []ExpenseEntry) error {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	u.Expenses = expenses
	u.UpdatedAt = s.now()
	return s.store.Update(ctx, u)
}
