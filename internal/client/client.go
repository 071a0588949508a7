// Package client manages the IPTV end-subscribers of a tenant.
//
// Every read and write is filtered by the caller's identity scope; a record
// outside the scope reads as missing, never as forbidden.
package client

import (
	"errors"
	"time"
)

// Errors
var (
	ErrClientNotFound = errors.New("client: not found")
	ErrInvalidPlan    = errors.New("client: plan length must be positive")
)

// Status values. Dates stay authoritative; the flag is presentation state
// and the overdue sweep re-aligns it.
const (
	StatusActive   = "ATIVO"
	StatusInactive = "INATIVO"
)

// Client is one IPTV end-subscriber.
type Client struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	// OwnerID is the account that owns this record. Empty means a legacy
	// record created before per-user ownership existed; those are tagged
	// with LegacyResellerID instead and visible to master only.
	OwnerID          string `json:"ownerId,omitempty"`
	LegacyResellerID string `json:"legacyResellerId,omitempty"`

	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Username string `json:"username,omitempty"` // IPTV service login
	Password string `json:"password,omitempty"` // IPTV service password, not an account secret
	Server   string `json:"server,omitempty"`
	Device   string `json:"device,omitempty"`
	Notes    string `json:"notes,omitempty"`

	// PlanType is the plan length in days (30, 90, 180, 365).
	PlanType  int     `json:"planType"`
	PlanValue float64 `json:"planValue"`
	Cost      float64 `json:"cost"`

	StartDate time.Time `json:"startDate"`
	DueDate   time.Time `json:"dueDate"`
	Status    string    `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Overdue reports whether the subscription lapsed before the given time.
// The due day itself counts in full.
func (c *Client) Overdue(now time.Time) bool {
	d := c.DueDate
	eod := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, d.Location())
	return eod.Before(now)
}
