// Package dashboard provides the aggregated home-screen numbers of the
// panel: client counts, what expires soon and what is due for settlement,
// computed inside the caller's scope.
package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gestororion/orion/internal/auth"
	"github.com/gestororion/orion/internal/client"
	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/reseller"
	"github.com/gestororion/orion/internal/tenant"
)

// ExpiryWindowDays is how far ahead the dashboard looks for renewals due.
const ExpiryWindowDays = 7

// Handler serves the dashboard overview.
type Handler struct {
	clients   *client.Service
	resellers *reseller.Service
	tenants   *tenant.Service
	resolver  *identity.Resolver
	now       func() time.Time
}

// NewHandler creates a dashboard handler.
func NewHandler(clients *client.Service, resellers *reseller.Service, tenants *tenant.Service, resolver *identity.Resolver) *Handler {
	return &Handler{
		clients:   clients,
		resellers: resellers,
		tenants:   tenants,
		resolver:  resolver,
		now:       time.Now,
	}
}

// WithNow overrides the clock (for testing).
func (h *Handler) WithNow(now func() time.Time) *Handler {
	h.now = now
	return h
}

// RegisterRoutes sets up the dashboard route.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/dashboard", h.Overview)
}

// Overview is the response shape of GET /v1/dashboard.
type Overview struct {
	TotalClients    int `json:"totalClients"`
	ActiveClients   int `json:"activeClients"`
	InactiveClients int `json:"inactiveClients"`
	OverdueClients  int `json:"overdueClients"`
	ExpiringSoon    int `json:"expiringSoon"`

	TotalResellers  int `json:"totalResellers"`
	SettlementsDue  int `json:"settlementsDue"`
	PendingPayments int `json:"pendingPayments"`

	License *tenant.LicenseStatus `json:"license,omitempty"`
}

// Overview handles GET /v1/dashboard.
func (h *Handler) Overview(c *gin.Context) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "valid session required"})
		return
	}
	scope, err := h.resolver.Resolve(c.Request.Context(), id, c.Query("tenant_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_scope", "message": "caller scope could not be resolved"})
		return
	}

	ov, err := h.build(c.Request.Context(), id, scope)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to build dashboard"})
		return
	}
	c.JSON(http.StatusOK, ov)
}

func (h *Handler) build(ctx context.Context, id identity.Identity, scope identity.Scope) (*Overview, error) {
	now := h.now()
	ov := &Overview{}

	clients, err := h.clients.List(ctx, scope, client.Filter{})
	if err != nil {
		return nil, err
	}
	soon := now.AddDate(0, 0, ExpiryWindowDays)
	for _, cl := range clients {
		ov.TotalClients++
		if cl.Status == client.StatusActive {
			ov.ActiveClients++
			if cl.Overdue(now) {
				ov.OverdueClients++
			} else if cl.DueDate.Before(soon) {
				ov.ExpiringSoon++
			}
		} else {
			ov.InactiveClients++
		}
	}

	resellers, err := h.resellers.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	ov.TotalResellers = len(resellers)
	for _, r := range resellers {
		if r.PaymentStatus == reseller.PaymentPending {
			ov.PendingPayments++
		}
	}

	due, err := h.resellers.SettlementsDue(ctx, scope, ExpiryWindowDays)
	if err != nil {
		return nil, err
	}
	ov.SettlementsDue = len(due)

	// Master browses without a license of its own.
	if !id.IsMaster() {
		if st, err := h.tenants.Status(ctx, id.TenantID); err == nil {
			ov.License = st
		}
	}
	return ov, nil
}
