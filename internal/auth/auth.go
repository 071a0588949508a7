// Package auth provides session authentication for the Orion panel.
//
// Authentication model:
// - Username/password login issues an opaque session token.
// - The raw token is shown once; only its SHA256 hash is stored.
// - Tokens travel as a cookie or an Authorization bearer header.
// - Sessions expire after a fixed TTL and can be revoked on logout.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/idgen"
	"github.com/gestororion/orion/internal/user"
)

// Errors
var (
	ErrNoToken        = errors.New("auth: session token required")
	ErrInvalidSession = errors.New("auth: invalid or expired session")
	ErrBadCredentials = errors.New("auth: invalid username or password")
)

// DefaultSessionTTL bounds a session when the config does not say otherwise.
const DefaultSessionTTL = 12 * time.Hour

// Session represents one authenticated login.
type Session struct {
	ID        string    `json:"id"`
	TokenHash string    `json:"-"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	LastSeen  time.Time `json:"lastSeen"`
}

// SessionStore persists sessions.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	GetByTokenHash(ctx context.Context, hash string) (*Session, error)
	Touch(ctx context.Context, id string, lastSeen time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Manager handles login, logout and token resolution.
type Manager struct {
	sessions SessionStore
	users    *user.Service
	ttl      time.Duration
	now      func() time.Time
}

// NewManager creates a new auth manager.
func NewManager(sessions SessionStore, users *user.Service, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Manager{sessions: sessions, users: users, ttl: ttl, now: time.Now}
}

// WithNow overrides the clock (for testing).
func (m *Manager) WithNow(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Login verifies credentials and issues a session.
// Returns the raw token (shown once) and the logged-in user.
func (m *Manager) Login(ctx context.Context, username, password string) (string, *user.User, error) {
	u, err := m.users.Store().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return "", nil, ErrBadCredentials
		}
		return "", nil, err
	}
	if !m.users.CheckPassword(u, password) {
		return "", nil, ErrBadCredentials
	}

	rawToken := "ost_" + strings.ReplaceAll(uuid.NewString(), "-", "") + idgen.Hex(8)
	now := m.now()
	s := &Session{
		ID:        idgen.WithPrefix("ses_"),
		TokenHash: hashToken(rawToken),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
		LastSeen:  now,
	}
	if err := m.sessions.Create(ctx, s); err != nil {
		return "", nil, err
	}
	return rawToken, u, nil
}

// Resolve maps a raw token to the live user behind it.
// The user record is re-read on every call so role or tenant changes
// take effect without waiting for the session to expire.
func (m *Manager) Resolve(ctx context.Context, rawToken string) (*user.User, *Session, error) {
	rawToken = strings.TrimSpace(strings.TrimPrefix(rawToken, "Bearer "))
	if rawToken == "" {
		return nil, nil, ErrNoToken
	}
	if !strings.HasPrefix(rawToken, "ost_") {
		return nil, nil, ErrInvalidSession
	}

	s, err := m.sessions.GetByTokenHash(ctx, hashToken(rawToken))
	if err != nil {
		return nil, nil, ErrInvalidSession
	}
	now := m.now()
	if now.After(s.ExpiresAt) {
		_ = m.sessions.Delete(ctx, s.ID)
		return nil, nil, ErrInvalidSession
	}

	u, err := m.users.Store().Get(ctx, s.UserID)
	if err != nil {
		return nil, nil, ErrInvalidSession
	}
	_ = m.sessions.Touch(ctx, s.ID, now)
	return u, s, nil
}

// Logout revokes the session behind a raw token. Unknown tokens are a no-op.
func (m *Manager) Logout(ctx context.Context, rawToken string) error {
	rawToken = strings.TrimSpace(strings.TrimPrefix(rawToken, "Bearer "))
	if rawToken == "" {
		return nil
	}
	s, err := m.sessions.GetByTokenHash(ctx, hashToken(rawToken))
	if err != nil {
		return nil
	}
	return m.sessions.Delete(ctx, s.ID)
}

// RevokeUser drops every session of a user, e.g. after a password reset.
func (m *Manager) RevokeUser(ctx context.Context, userID string) error {
	return m.sessions.DeleteByUser(ctx, userID)
}

// Sweep removes expired sessions and returns how many were dropped.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	return m.sessions.DeleteExpired(ctx, m.now())
}

// IdentityOf is a convenience bridging a user record to the request identity.
func IdentityOf(u *user.User) identity.Identity {
	return u.Identity()
}

func hashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
