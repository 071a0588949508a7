// Package renewal implements the panel subscription workflow: operators
// request a plan, their admin (or the master) approves or rejects, and an
// approval extends the requester's access window.
package renewal

import (
	"errors"
	"time"

	"github.com/gestororion/orion/internal/user"
)

// Errors
var (
	ErrRequestNotFound = errors.New("renewal: request not found")
	ErrPendingExists   = errors.New("renewal: a pending request already exists")
	ErrNotPending      = errors.New("renewal: request already resolved")
	ErrUnknownPlan     = errors.New("renewal: unknown plan")
)

// Request statuses. approved and rejected are terminal.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// PlanDays maps a plan key to the days an approval grants.
var PlanDays = map[string]int{
	"1m": 30,
	"3m": 90,
	"6m": 180,
	"1a": 365,
}

// PlanLabels gives the display name per plan key.
var PlanLabels = map[string]string{
	"1m": "Mensal",
	"3m": "Trimestral",
	"6m": "Semestral",
	"1a": "Anual",
}

// Hardcoded price fallbacks, used when neither the tenant admin nor the
// master configured a table.
var (
	DefaultPersonalPrices = user.PriceTable{M1: 30, M3: 80, M6: 150, Y1: 250}
	DefaultAdminPrices    = user.PriceTable{M1: 50, M3: 130, M6: 240, Y1: 400}
)

// Request is one renewal submission. Price is snapshotted at request time
// and never recomputed.
type Request struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId,omitempty"`
	UserID   string `json:"userId"`
	// Role of the requester when the request was made; decides whose
	// price table applied.
	Role string `json:"role"`

	PlanKey   string  `json:"planKey"`
	PlanLabel string  `json:"planLabel"`
	Days      int     `json:"days"`
	Price     float64 `json:"price"`
	// Message is the requester's free-text note to the reviewer.
	Message string `json:"message,omitempty"`

	Status      string     `json:"status"`
	RequestedAt time.Time  `json:"requestedAt"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
	RespondedBy string     `json:"respondedBy,omitempty"`
	// NewExpiry is set on approval: the requester's panel expiry after
	// the extension.
	NewExpiry *time.Time `json:"newExpiry,omitempty"`
}
