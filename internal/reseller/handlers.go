package reseller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gestororion/orion/internal/audit"
	"github.com/gestororion/orion/internal/auth"
	"github.com/gestororion/orion/internal/identity"
)

// Handler provides the reseller CRUD endpoints.
type Handler struct {
	svc      *Service
	resolver *identity.Resolver
	audits   *audit.Recorder
}

// NewHandler creates a new reseller handler.
func NewHandler(svc *Service, resolver *identity.Resolver, audits *audit.Recorder) *Handler {
	return &Handler{svc: svc, resolver: resolver, audits: audits}
}

// RegisterRoutes sets up the reseller routes. Mount behind RequireAuth and
// the license gate.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/resellers", h.List)
	r.POST("/resellers", h.Create)
	r.GET("/resellers/settlements", h.SettlementsDue)
	r.GET("/resellers/:id", h.Get)
	r.PATCH("/resellers/:id", h.Update)
	r.DELETE("/resellers/:id", h.Delete)
	r.POST("/resellers/:id/toggle", h.ToggleStatus)
	r.POST("/resellers/:id/payment", h.SetPayment)
}

func (h *Handler) callerScope(c *gin.Context) (identity.Identity, identity.Scope, bool) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "valid session required"})
		return identity.Identity{}, identity.Scope{}, false
	}
	scope, err := h.resolver.Resolve(c.Request.Context(), id, c.Query("tenant_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_scope", "message": "caller scope could not be resolved"})
		return identity.Identity{}, identity.Scope{}, false
	}
	return id, scope, true
}

// List handles GET /v1/resellers.
func (h *Handler) List(c *gin.Context) {
	_, scope, ok := h.callerScope(c)
	if !ok {
		return
	}

	resellers, err := h.svc.List(c.Request.Context(), scope)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list resellers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"resellers": resellers, "count": len(resellers)})
}

type serverRowRequest struct {
	Server         string     `json:"server" binding:"required"`
	ActiveCount    int        `json:"activeCount"`
	PricePerActive float64    `json:"pricePerActive"`
	CostPerActive  float64    `json:"costPerActive"`
	SettleDate     *time.Time `json:"settleDate"`
	Monthly        bool       `json:"monthly"`
}

func toServerRows(reqs []serverRowRequest) []ServerRow {
	rows := make([]ServerRow, 0, len(reqs))
	for _, r := range reqs {
		rows = append(rows, ServerRow{
			Server:         r.Server,
			ActiveCount:    r.ActiveCount,
			PricePerActive: r.PricePerActive,
			CostPerActive:  r.CostPerActive,
			SettleDate:     r.SettleDate,
			Monthly:        r.Monthly,
		})
	}
	return rows
}

// Create handles POST /v1/resellers.
func (h *Handler) Create(c *gin.Context) {
	id, _, ok := h.callerScope(c)
	if !ok {
		return
	}

	var req struct {
		Name          string             `json:"name" binding:"required"`
		Phone         string             `json:"phone"`
		Notes         string             `json:"notes"`
		Type          string             `json:"type"`
		PlanActive    bool               `json:"planActive"`
		PlanExpiresAt *time.Time         `json:"planExpiresAt"`
		PlanValue     float64            `json:"planValue"`
		Servers       []serverRowRequest `json:"servers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name required"})
		return
	}

	created, err := h.svc.Create(c.Request.Context(), id, CreateParams{
		Name: req.Name, Phone: req.Phone, Notes: req.Notes, Type: req.Type,
		PlanActive: req.PlanActive, PlanExpiresAt: req.PlanExpiresAt,
		PlanValue: req.PlanValue, Servers: toServerRows(req.Servers),
	})
	if err != nil {
		if errors.Is(err, identity.ErrTenantNotIdentified) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "caller has no tenant"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create reseller"})
		return
	}
	h.audits.Record(c.Request.Context(), id, audit.ActionResellerCreate, created.ID, created.Name)
	c.JSON(http.StatusCreated, created)
}

// Get handles GET /v1/resellers/:id.
func (h *Handler) Get(c *gin.Context) {
	_, scope, ok := h.callerScope(c)
	if !ok {
		return
	}

	r, err := h.svc.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		h.renderError(c, err, "failed to load reseller")
		return
	}
	c.JSON(http.StatusOK, r)
}

// Update handles PATCH /v1/resellers/:id. A servers array in the body
// replaces the whole server-row set.
func (h *Handler) Update(c *gin.Context) {
	_, scope, ok := h.callerScope(c)
	if !ok {
		return
	}

	var req struct {
		Name          *string             `json:"name"`
		Phone         *string             `json:"phone"`
		Notes         *string             `json:"notes"`
		Type          *string             `json:"type"`
		PlanActive    *bool               `json:"planActive"`
		PlanExpiresAt *time.Time          `json:"planExpiresAt"`
		ClearPlan     bool                `json:"clearPlan"`
		PlanValue     *float64            `json:"planValue"`
		Servers       *[]serverRowRequest `json:"servers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid body"})
		return
	}

	p := UpdateParams{
		Name: req.Name, Phone: req.Phone, Notes: req.Notes, Type: req.Type,
		PlanActive: req.PlanActive, PlanExpiresAt: req.PlanExpiresAt,
		ClearPlan: req.ClearPlan, PlanValue: req.PlanValue,
	}
	if req.Servers != nil {
		p.Servers = toServerRows(*req.Servers)
	}

	r, err := h.svc.Update(c.Request.Context(), scope, c.Param("id"), p)
	if err != nil {
		h.renderError(c, err, "failed to update reseller")
		return
	}
	c.JSON(http.StatusOK, r)
}

// Delete handles DELETE /v1/resellers/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, scope, ok := h.callerScope(c)
	if !ok {
		return
	}

	targetID := c.Param("id")
	if err := h.svc.Delete(c.Request.Context(), scope, targetID); err != nil {
		h.renderError(c, err, "failed to delete reseller")
		return
	}
	h.audits.Record(c.Request.Context(), id, audit.ActionResellerDelete, targetID, "")
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ToggleStatus handles POST /v1/resellers/:id/toggle.
func (h *Handler) ToggleStatus(c *gin.Context) {
	_, scope, ok := h.callerScope(c)
	if !ok {
		return
	}

	r, err := h.svc.ToggleStatus(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		h.renderError(c, err, "failed to toggle reseller")
		return
	}
	c.JSON(http.StatusOK, r)
}

// SetPayment handles POST /v1/resellers/:id/payment.
func (h *Handler) SetPayment(c *gin.Context) {
	_, scope, ok := h.callerScope(c)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || (req.Status != PaymentPaid && req.Status != PaymentPending) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "status must be PAGO or PENDENTE"})
		return
	}

	r, err := h.svc.SetPaymentStatus(c.Request.Context(), scope, c.Param("id"), req.Status)
	if err != nil {
		h.renderError(c, err, "failed to set payment status")
		return
	}
	c.JSON(http.StatusOK, r)
}

// SettlementsDue handles GET /v1/resellers/settlements?days=N.
func (h *Handler) SettlementsDue(c *gin.Context) {
	_, scope, ok := h.callerScope(c)
	if !ok {
		return
	}

	days := 7
	if d := c.Query("days"); d != "" {
		v, err := strconv.Atoi(d)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "days must be a positive number"})
			return
		}
		days = v
	}

	resellers, err := h.svc.SettlementsDue(c.Request.Context(), scope, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list settlements"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"resellers": resellers, "count": len(resellers)})
}

func (h *Handler) renderError(c *gin.Context, err error, msg string) {
	if errors.Is(err, ErrResellerNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "reseller not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": msg})
}
