package client

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

// Handler provides the client CRUD endpoints.
type Handler struct {
	svc      *Service
	resolver *identity.Resolver
	audits   *audit.Recorder
}

// NewHandler creates a new client handler.
func NewHandler(svc *Service, resolver *identity.Resolver, audits *audit.Recorder) *Handler {
	return &Handler{svc: svc, resolver: resolver, audits: audits}
}

// RegisterRoutes sets up the client routes. Mount behind RequireAuth and
// the license gate.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/clients", h.List)
	r.POST("/clients", h.Create)
	r.GET("/clients/expiring", h.Expiring)
	r.GET("/clients/:id", h.Get)
	r.PATCH("/clients/:id", h.Update)
	r.DELETE("/clients/:id", h.Delete)
	r.POST("/clients/:id/renew", h.Renew)
	r.POST("/clients/:id/toggle", h.ToggleStatus)
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

// List handles GET /v1/clients.
func (h *Handler) List(c *gin.Context) {
	_, scope, ok := h.callerScope(c)
	if !ok {
		return
	}

	f := Filter{
		Server: c.Query("server"),
		Status: c.Query("status"),
	}
	// Optional {month, year} period over the due date.
	if my := c.Query("month"); my != "" {
		month, err1 := strconv.Atoi(my)
		year, err2 := strconv.Atoi(c.Query("year"))
		if err1 != nil || err2 != nil || month < 1 || month > 12 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_period", "message": "month and year must be numeric"})
			return
		}
		from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, 0)
		f.DueFrom, f.DueTo = &from, &to
	}

	clients, err := h.svc.List(c.Request.Context(), scope, f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list clients"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients, "count": len(clients)})
}

// Create handles POST /v1/clients.
func (h *Handler) Create(c *gin.Context) {
	id, _, ok := h.callerScope(c)
	if !ok {
		return
	}

	var req struct {
		Name      string     `json:"name" binding:"required"`
		Phone     string     `json:"phone"`
		Username  string     `json:"username"`
		Password  string     `json:"password"`
		Server    string     `json:"server"`
		Device    string     `json:"device"`
		Notes     string     `json:"notes"`
		PlanType  int        `json:"planType" binding:"required"`
		PlanValue float64    `json:"planValue"`
		Cost      float64    `json:"cost"`
		StartDate *time.Time `json:"startDate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name and planType required"})
		return
	}

	p := CreateParams{
		Name: req.Name, Phone: req.Phone, Username: req.Username,
		Password: req.Password, Server: req.Server, Device: req.Device,
		Notes: req.Notes, PlanType: req.PlanType, PlanValue: req.PlanValue,
		Cost: req.Cost,
	}
	if req.StartDate != nil {
		p.StartDate = *req.StartDate
	}

	created, err := h.svc.Create(c.Request.Context(), id, p)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPlan):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_plan", "message": "planType must be positive days"})
		case errors.Is(err, identity.ErrTenantNotIdentified):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "caller has no tenant"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create client"})
		}
		return
	}
	h.audits.Record(c.Request.Context(), id, audit.ActionClientCreate, created.ID, created.Name)
	c.JSON(http.StatusCreated, created)
}

// Get handles GET /v1/clients/:id.
func (h *Handler) Get(c *gin.Context) {
	_, scope, ok := h.callerScope(c)
	if !ok {
		return
	}

	cl, err := h.svc.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		h.renderError(c, err, "failed to load client")
		return
	}
	c.JSON(http.StatusOK, cl)
}

// Update handles PATCH /v1/clients/:id.
func (h *Handler) Update(c *gin.Context) {
	_, scope, ok := h.callerScope(c)
	if !ok {
		return
	}

	var req struct {
		Name      *string  `json:"name"`
		Phone     *string  `json:"phone"`
		Username  *string  `json:"username"`
		Password  *string  `json:"password"`
		Server    *string  `json:"server"`
		Device    *string  `json:"device"`
		Notes     *string  `json:"notes"`
		PlanValue *float64 `json:"planValue"`
		Cost      *float64 `json:"cost"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid body"})
		return
	}

	cl, err := h.svc.Update(c.Request.Context(), scope, c.Param("id"), UpdateParams{
		Name: req.Name, Phone: req.Phone, Username: req.Username,
		Password: req.Password, Server: req.Server, Device: req.Device,
		Notes: req.Notes, PlanValue: req.PlanValue, Cost: req.Cost,
	})
	if err != nil {
		h.renderError(c, err, "failed to update client")
		return
	}
	c.JSON(http.StatusOK, cl)
}

// Delete handles DELETE /v1/clients/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, scope, ok := h.callerScope(c)
	if !ok {
		return
	}

	targetID := c.Param("id")
	if err := h.svc.Delete(c.Request.Context(), scope, targetID); err != nil {
		h.renderError(c, err, "failed to delete client")
		return
	}
	h.audits.Record(c.Request.Context(), id, audit.ActionClientDelete, targetID, "")
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Renew handles POST /v1/clients/:id/renew.
func (h *Handler) Renew(c *gin.Context) {
	id, scope, ok := h.callerScope(c)
	if !ok {
		return
	}

	var req struct {
		PlanType  int      `json:"planType" binding:"required"`
		PlanValue *float64 `json:"planValue"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "planType required"})
		return
	}

	cl, err := h.svc.Renew(c.Request.Context(), scope, c.Param("id"), req.PlanType, req.PlanValue)
	if err != nil {
		if errors.Is(err, ErrInvalidPlan) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_plan", "message": "planType must be positive days"})
			return
		}
		h.renderError(c, err, "failed to renew client")
		return
	}
	h.audits.Record(c.Request.Context(), id, audit.ActionClientRenew, cl.ID, strconv.Itoa(req.PlanType))
	c.JSON(http.StatusOK, cl)
}

// ToggleStatus handles POST /v1/clients/:id/toggle.
func (h *Handler) ToggleStatus(c *gin.Context) {
	_, scope, ok := h.callerScope(c)
	if !ok {
		return
	}

	cl, err := h.svc.ToggleStatus(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		h.renderError(c, err, "failed to toggle client")
		return
	}
	c.JSON(http.StatusOK, cl)
}

// Expiring handles GET /v1/clients/expiring?days=N.
func (h *Handler) Expiring(c *gin.Context) {
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

	clients, err := h.svc.Expiring(c.Request.Context(), scope, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list expiring clients"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients, "count": len(clients)})
}

func (h *Handler) renderError(c *gin.Context, err error, msg string) {
	if errors.Is(err, ErrClientNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "client not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": msg})
}
