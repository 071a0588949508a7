package tenant

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gestororion/orion/internal/auth"
	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/user"
)

// Handler provides HTTP endpoints for tenant management.
type Handler struct {
	svc *Service
}

// NewHandler creates a new tenant handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterMasterRoutes sets up the master-only tenant administration routes.
func (h *Handler) RegisterMasterRoutes(r *gin.RouterGroup) {
	r.POST("/tenants", h.CreateTenant)
	r.GET("/tenants", h.ListTenants)
	r.GET("/tenants/:id", h.GetTenant)
	r.PATCH("/tenants/:id", h.UpdateTenant)
	r.DELETE("/tenants/:id", h.DeactivateTenant)
}

// RegisterTenantRoutes sets up routes any authenticated tenant member can use.
func (h *Handler) RegisterTenantRoutes(r *gin.RouterGroup) {
	r.GET("/license/status", h.LicenseStatus)
	r.PATCH("/branding", h.UpdateBranding)
}

// CreateTenant handles POST /v1/master/tenants.
func (h *Handler) CreateTenant(c *gin.Context) {
	var req struct {
		Name              string     `json:"name" binding:"required"`
		Slug              string     `json:"slug" binding:"required"`
		Plan              Plan       `json:"plan"`
		LicenseExpiration *time.Time `json:"licenseExpiration"`
		BrandName         string     `json:"brandName"`
		PrimaryColor      string     `json:"primaryColor"`
		LogoURL           string     `json:"logoUrl"`
		AdminUsername     string     `json:"adminUsername" binding:"required"`
		AdminPassword     string     `json:"adminPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name, slug, adminUsername and adminPassword required"})
		return
	}
	if req.Plan != "" && !ValidPlan(req.Plan) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_plan", "message": "unknown plan"})
		return
	}

	t, admin, err := h.svc.Create(c.Request.Context(), CreateParams{
		Name:              req.Name,
		Slug:              req.Slug,
		Plan:              req.Plan,
		LicenseExpiration: req.LicenseExpiration,
		BrandName:         req.BrandName,
		PrimaryColor:      req.PrimaryColor,
		LogoURL:           req.LogoURL,
		AdminUsername:     req.AdminUsername,
		AdminPassword:     req.AdminPassword,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSlug):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_slug", "message": "slug must be lowercase letters, digits and hyphens"})
		case errors.Is(err, ErrSlugTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "slug_taken", "message": "slug already in use"})
		case errors.Is(err, user.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "username_taken", "message": "admin username already in use"})
		case errors.Is(err, user.ErrPasswordTooShort):
			c.JSON(http.StatusBadRequest, gin.H{"error": "weak_password", "message": "password too short"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create tenant"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tenant": t, "admin": admin})
}

// ListTenants handles GET /v1/master/tenants.
func (h *Handler) ListTenants(c *gin.Context) {
	tenants, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list tenants"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenants": tenants, "count": len(tenants)})
}

// GetTenant handles GET /v1/master/tenants/:id.
func (h *Handler) GetTenant(c *gin.Context) {
	t, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load tenant"})
		return
	}
	c.JSON(http.StatusOK, t)
}

// UpdateTenant handles PATCH /v1/master/tenants/:id.
func (h *Handler) UpdateTenant(c *gin.Context) {
	var req struct {
		Name              *string    `json:"name"`
		Plan              *Plan      `json:"plan"`
		LicenseExpiration *time.Time `json:"licenseExpiration"`
		ClearLicense      bool       `json:"clearLicense"`
		IsActive          *bool      `json:"isActive"`
		BrandName         *string    `json:"brandName"`
		PrimaryColor      *string    `json:"primaryColor"`
		LogoURL           *string    `json:"logoUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid body"})
		return
	}
	if req.Plan != nil && !ValidPlan(*req.Plan) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_plan", "message": "unknown plan"})
		return
	}

	t, err := h.svc.Update(c.Request.Context(), c.Param("id"), UpdateParams{
		Name:              req.Name,
		Plan:              req.Plan,
		LicenseExpiration: req.LicenseExpiration,
		ClearLicense:      req.ClearLicense,
		IsActive:          req.IsActive,
		BrandName:         req.BrandName,
		PrimaryColor:      req.PrimaryColor,
		LogoURL:           req.LogoURL,
	})
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to update tenant"})
		return
	}
	c.JSON(http.StatusOK, t)
}

// DeactivateTenant handles DELETE /v1/master/tenants/:id.
// Tenants are never hard-deleted; their traffic is gated instead.
func (h *Handler) DeactivateTenant(c *gin.Context) {
	if err := h.svc.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to deactivate tenant"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

// LicenseStatus handles GET /v1/license/status for the caller's tenant.
func (h *Handler) LicenseStatus(c *gin.Context) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "authentication required"})
		return
	}
	tenantID := id.TenantID
	if id.IsMaster() {
		tenantID = c.Query("tenant_id")
	}
	if tenantID == "" {
		c.JSON(http.StatusOK, &LicenseStatus{Valid: true})
		return
	}

	st, err := h.svc.Status(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load license status"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// UpdateBranding handles PATCH /v1/branding. Admin of the tenant only.
func (h *Handler) UpdateBranding(c *gin.Context) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "authentication required"})
		return
	}
	if id.Role != identity.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "admin access required"})
		return
	}

	var req struct {
		BrandName    *string `json:"brandName"`
		PrimaryColor *string `json:"primaryColor"`
		LogoURL      *string `json:"logoUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid body"})
		return
	}

	t, err := h.svc.UpdateBranding(c.Request.Context(), id.TenantID, req.BrandName, req.PrimaryColor, req.LogoURL)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to update branding"})
		return
	}
	c.JSON(http.StatusOK, t)
}
