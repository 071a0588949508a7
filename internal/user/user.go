// Package user manages login accounts: the single master, tenant admins
// and tenant-scoped personal operators.
package user

import (
	"errors"
	"time"

	"github.com/gestororion/orion/internal/identity"
)

// Errors
var (
	ErrUserNotFound     = errors.New("user: not found")
	ErrUsernameTaken    = errors.New("user: username already taken")
	ErrPriceBelowFloor  = errors.New("user: monthly plan price below minimum")
	ErrInvalidToken     = errors.New("user: invalid or used reset token")
	ErrTokenExpired     = errors.New("user: reset token expired")
	ErrWrongPassword    = errors.New("user: wrong password")
	ErrPasswordTooShort = errors.New("user: password too short")
)

// MonthlyPriceFloor is the minimum configurable price for the 1-month plan.
const MonthlyPriceFloor = 20.0

// PriceTable holds the panel plan prices a user configures for the accounts
// below them. Zero means "not set" and falls back to the default for that
// plan when resolved.
type PriceTable struct {
	M1 float64 `json:"1m,omitempty"`
	M3 float64 `json:"3m,omitempty"`
	M6 float64 `json:"6m,omitempty"`
	Y1 float64 `json:"1a,omitempty"`
}

// Merged returns the table with unset entries filled from defaults.
func (p PriceTable) Merged(defaults PriceTable) PriceTable {
	out := defaults
	if p.M1 > 0 {
		out.M1 = p.M1
	}
	if p.M3 > 0 {
		out.M3 = p.M3
	}
	if p.M6 > 0 {
		out.M6 = p.M6
	}
	if p.Y1 > 0 {
		out.Y1 = p.Y1
	}
	return out
}

// Validate enforces the monthly price floor. Applied on save, not on read.
func (p PriceTable) Validate() error {
	if p.M1 > 0 && p.M1 < MonthlyPriceFloor {
		return ErrPriceBelowFloor
	}
	return nil
}

// ExpenseEntry is one line of a user's fixed expense list.
type ExpenseEntry struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// User is a login identity. Role master has no tenant; admin and personal
// always belong to exactly one.
type User struct {
	ID           string        `json:"id"`
	TenantID     string        `json:"tenantId,omitempty"` // empty = master
	Username     string        `json:"username"`
	PasswordHash string        `json:"-"`
	Role         identity.Role `json:"role"`
	// CreatedBy is the admin/master account that created this one. Admins
	// only see accounts they created.
	CreatedBy string `json:"createdBy,omitempty"`
	// LegacyResellerID links the account to pre-ownership records.
	LegacyResellerID string `json:"legacyResellerId,omitempty"`
	FirstLogin       bool   `json:"firstLogin"`

	// Panel subscription (the account's own paid access window).
	PanelPlan   string     `json:"panelPlan"`
	PanelExpiry *time.Time `json:"panelExpiry,omitempty"` // nil = no expiration
	// OnboardingFeePaid flips once, on the first approved admin renewal.
	OnboardingFeePaid bool `json:"onboardingFeePaid"`

	// Preferences
	Theme   string `json:"theme,omitempty"`
	LogoURL string `json:"logoUrl,omitempty"`

	// Structured sub-entities (persisted as JSONB, fixed shape).
	PlanPrices      *PriceTable    `json:"planPrices,omitempty"`      // prices for this admin's personals
	AdminPlanPrices *PriceTable    `json:"adminPlanPrices,omitempty"` // master only: prices admins pay
	Expenses        []ExpenseEntry `json:"expenses,omitempty"`

	// One-time password reset token.
	ResetToken       string     `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultPanelPlan is assigned to accounts that never chose a plan.
const DefaultPanelPlan = "STANDARD"

// PanelState is the date-derived subscription state of an account.
type PanelState string

const (
	PanelNoPlan  PanelState = "NO_PLAN"
	PanelActive  PanelState = "ACTIVE"
	PanelExpired PanelState = "EXPIRED"
)

// PanelStateAt derives the plan state from the expiry date at a given time.
// The stored status never overrides this: dates are authoritative, and the
// expiry day counts in full.
func (u *User) PanelStateAt(now time.Time) PanelState {
	if u.PanelExpiry == nil {
		return PanelNoPlan
	}
	e := *u.PanelExpiry
	eod := time.Date(e.Year(), e.Month(), e.Day(), 23, 59, 59, 0, e.Location())
	if eod.Before(now) {
		return PanelExpired
	}
	return PanelActive
}

// Identity converts the account into the caller record the core trusts.
func (u *User) Identity() identity.Identity {
	return identity.Identity{
		UserID:           u.ID,
		Role:             u.Role,
		TenantID:         u.TenantID,
		CreatedBy:        u.CreatedBy,
		LegacyResellerID: u.LegacyResellerID,
	}
}
