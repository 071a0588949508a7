package renewal

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gestororion/orion/internal/audit"
	"github.com/gestororion/orion/internal/auth"
	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/user"
)

// Handler provides the renewal workflow endpoints.
type Handler struct {
	svc    *Service
	audits *audit.Recorder
}

// NewHandler creates a new renewal handler.
func NewHandler(svc *Service, audits *audit.Recorder) *Handler {
	return &Handler{svc: svc, audits: audits}
}

// RegisterRoutes sets up the self-service renewal routes. Mount behind
// RequireAuth; renewals stay reachable when the caller's own panel has
// expired, so do not put them behind the license gate.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/renewals/status", h.Status)
	r.GET("/renewals/prices", h.Prices)
	r.GET("/renewals/history", h.History)
	r.POST("/renewals", h.Submit)
}

// RegisterReviewRoutes sets up the admin/master review routes.
func (h *Handler) RegisterReviewRoutes(r *gin.RouterGroup) {
	r.GET("/renewals/pending", h.Pending)
	r.POST("/renewals/:id/approve", h.Approve)
	r.POST("/renewals/:id/reject", h.Reject)
	r.PUT("/renewals/prices", h.SavePrices)
	r.GET("/renewals/metered-preview", h.MeteredPreview)
}

// Status handles GET /v1/renewals/status.
func (h *Handler) Status(c *gin.Context) {
	id, _ := auth.CurrentIdentity(c)

	st, err := h.svc.StatusOf(c.Request.Context(), id.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load plan status"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// Prices handles GET /v1/renewals/prices.
func (h *Handler) Prices(c *gin.Context) {
	id, _ := auth.CurrentIdentity(c)
	if id.IsMaster() {
		c.JSON(http.StatusOK, gin.H{"prices": user.PriceTable{}, "plans": PlanLabels})
		return
	}

	table, err := h.svc.Prices(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to resolve prices"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"prices": table, "plans": PlanLabels})
}

// History handles GET /v1/renewals/history.
func (h *Handler) History(c *gin.Context) {
	id, _ := auth.CurrentIdentity(c)

	reqs, err := h.svc.History(c.Request.Context(), id.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs, "count": len(reqs)})
}

// Submit handles POST /v1/renewals.
func (h *Handler) Submit(c *gin.Context) {
	id, _ := auth.CurrentIdentity(c)
	if id.IsMaster() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "master has no panel plan"})
		return
	}

	var req struct {
		Plan    string `json:"plan" binding:"required"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "plan required"})
		return
	}

	r, err := h.svc.Submit(c.Request.Context(), id, req.Plan, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownPlan):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_plan", "message": "plan must be one of 1m, 3m, 6m, 1a"})
		case errors.Is(err, ErrPendingExists):
			c.JSON(http.StatusConflict, gin.H{"error": "pending_exists", "message": "a pending request already exists"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to submit request"})
		}
		return
	}
	h.audits.Record(c.Request.Context(), id, audit.ActionRenewalRequest, r.ID, r.PlanKey)
	c.JSON(http.StatusCreated, r)
}

// Pending handles GET /v1/renewals/pending.
func (h *Handler) Pending(c *gin.Context) {
	id, _ := auth.CurrentIdentity(c)

	reqs, err := h.svc.Pending(c.Request.Context(), id, c.Query("tenant_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list pending requests"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs, "count": len(reqs)})
}

// Approve handles POST /v1/renewals/:id/approve.
func (h *Handler) Approve(c *gin.Context) {
	id, _ := auth.CurrentIdentity(c)

	r, err := h.svc.Approve(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		h.renderReviewError(c, err)
		return
	}
	h.audits.Record(c.Request.Context(), id, audit.ActionRenewalApprove, r.ID, r.PlanKey)
	c.JSON(http.StatusOK, r)
}

// Reject handles POST /v1/renewals/:id/reject.
func (h *Handler) Reject(c *gin.Context) {
	id, _ := auth.CurrentIdentity(c)

	r, err := h.svc.Reject(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		h.renderReviewError(c, err)
		return
	}
	h.audits.Record(c.Request.Context(), id, audit.ActionRenewalReject, r.ID, r.PlanKey)
	c.JSON(http.StatusOK, r)
}

// SavePrices handles PUT /v1/renewals/prices.
// Admins set the table their personals pay; the master sets the table
// admins pay by passing adminTable=true.
func (h *Handler) SavePrices(c *gin.Context) {
	id, _ := auth.CurrentIdentity(c)

	var req struct {
		Prices     user.PriceTable `json:"prices"`
		AdminTable bool            `json:"adminTable"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid body"})
		return
	}
	if req.AdminTable && !id.IsMaster() {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "only master sets admin prices"})
		return
	}

	if err := h.svc.SavePrices(c.Request.Context(), id.UserID, req.Prices, req.AdminTable); err != nil {
		if errors.Is(err, user.ErrPriceBelowFloor) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price_below_floor", "message": "monthly plan price below the minimum"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to save prices"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

// MeteredPreview handles GET /v1/renewals/metered-preview for admins.
func (h *Handler) MeteredPreview(c *gin.Context) {
	id, _ := auth.CurrentIdentity(c)
	if id.Role != identity.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "metered preview applies to admin accounts"})
		return
	}

	total, count, err := h.svc.MeteredPreview(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to compute preview"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "activeClients": count})
}

func (h *Handler) renderReviewError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrRequestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "request not found"})
	case errors.Is(err, ErrNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "already_resolved", "message": "request already resolved"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to process request"})
	}
}
