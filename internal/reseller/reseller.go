// Package reseller manages the bulk resale partners of a tenant and the
// per-server economics behind the financial reports.
package reseller

import (
	"errors"
	"time"
)

// Errors
var (
	ErrResellerNotFound = errors.New("reseller: not found")
)

// Billing types. PRE is prepaid credits, MEN is monthly postpaid, MENF is
// monthly postpaid with a fixed price.
const (
	TypePrepaid      = "PRE"
	TypeMonthly      = "MEN"
	TypeMonthlyFixed = "MENF"
)

// Status values, same convention as clients.
const (
	StatusActive   = "ATIVO"
	StatusInactive = "INATIVO"
)

// Payment status for the current settlement cycle.
const (
	PaymentPaid    = "PAGO"
	PaymentPending = "PENDENTE"
)

// ServerRow is one reseller's footprint on one upstream server: how many
// active credits they hold there and at which unit prices.
type ServerRow struct {
	Server         string  `json:"server"`
	ActiveCount    int     `json:"activeCount"`
	PricePerActive float64 `json:"pricePerActive"`
	CostPerActive  float64 `json:"costPerActive"`
	// SettleDate is when this row's cycle closes and payment is expected.
	SettleDate *time.Time `json:"settleDate,omitempty"`
	// Monthly marks rows billed per month instead of per credit batch.
	Monthly bool `json:"monthly"`
}

// Revenue is the row's income for the cycle.
func (r ServerRow) Revenue() float64 {
	return float64(r.ActiveCount) * r.PricePerActive
}

// Cost is the row's upstream cost for the cycle.
func (r ServerRow) Cost() float64 {
	return float64(r.ActiveCount) * r.CostPerActive
}

// Reseller is one resale partner.
type Reseller struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	// OwnerID is the account that owns this record; empty marks a legacy
	// row from before per-user ownership, visible to master only.
	OwnerID string `json:"ownerId,omitempty"`

	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Notes string `json:"notes,omitempty"`
	Type  string `json:"type"`

	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`

	// Manager plan: access the reseller bought to this panel itself.
	PlanActive    bool       `json:"planActive"`
	PlanExpiresAt *time.Time `json:"planExpiresAt,omitempty"`
	PlanValue     float64    `json:"planValue,omitempty"`

	Servers []ServerRow `json:"servers"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PlanExpired reports whether the manager plan lapsed before now.
// The expiry day counts in full.
func (r *Reseller) PlanExpired(now time.Time) bool {
	if !r.PlanActive || r.PlanExpiresAt == nil {
		return false
	}
	e := *r.PlanExpiresAt
	eod := time.Date(e.Year(), e.Month(), e.Day(), 23, 59, 59, 0, e.Location())
	return eod.Before(now)
}
