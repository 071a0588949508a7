// Package tenant provides multi-tenancy for the Orion panel.
//
// A tenant is one subscriber organization of the SaaS: it owns every other
// entity via tenantId and carries its own branding and license window.
package tenant

import (
	"errors"
	"time"
)

// Errors
var (
	ErrTenantNotFound = errors.New("tenant: not found")
	ErrSlugTaken      = errors.New("tenant: slug already taken")
	ErrInvalidSlug    = errors.New("tenant: invalid slug")
)

// Plan identifies the pricing tier a tenant subscribed to.
type Plan string

const (
	PlanBasico     Plan = "BASICO"
	PlanPro        Plan = "PRO"
	PlanEnterprise Plan = "ENTERPRISE"
)

// ValidPlan returns true if the plan name is recognised.
func ValidPlan(p Plan) bool {
	switch p {
	case PlanBasico, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// Branding defaults.
const (
	DefaultBrandName    = "Gestor Orion"
	DefaultPrimaryColor = "#e53935"
)

// Tenant represents one customer organization of the SaaS.
type Tenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`

	// Branding
	BrandName    string `json:"brandName"`
	PrimaryColor string `json:"primaryColor"`
	LogoURL      string `json:"logoUrl,omitempty"`

	Plan Plan `json:"plan"`
	// LicenseExpiration is date-only: the license is valid through the end
	// of that day. nil = perpetual.
	LicenseExpiration *time.Time `json:"licenseExpiration,omitempty"`
	// IsActive is the soft-delete flag; tenants are deactivated, not removed.
	IsActive bool `json:"isActive"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LicenseValidAt reports whether the license window covers the given time.
// The expiration date is interpreted as end-of-day.
func (t *Tenant) LicenseValidAt(now time.Time) bool {
	if !t.IsActive {
		return false
	}
	if t.LicenseExpiration == nil {
		return true
	}
	return !endOfDay(*t.LicenseExpiration).Before(now)
}

// DaysLeftAt returns whole days until expiry (rounded up), or -1 when the
// license is perpetual.
func (t *Tenant) DaysLeftAt(now time.Time) int {
	if t.LicenseExpiration == nil {
		return -1
	}
	d := endOfDay(*t.LicenseExpiration).Sub(now)
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}

func endOfDay(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, d.Location())
}
