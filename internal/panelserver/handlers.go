package panelserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gestororion/orion/internal/audit"
	"github.com/gestororion/orion/internal/auth"
)

// Handler provides the server registry endpoints.
type Handler struct {
	svc    *Service
	audits *audit.Recorder
}

// NewHandler creates a new server registry handler.
func NewHandler(svc *Service, audits *audit.Recorder) *Handler {
	return &Handler{svc: svc, audits: audits}
}

// RegisterRoutes sets up the registry routes. Mount behind RequireAuth and
// the license gate.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/servers", h.List)
	r.POST("/servers", h.Create)
	r.DELETE("/servers/:id", h.Delete)
}

// callerTenant pins the request to a tenant. Master has none of its own
// and must name one with ?tenant_id.
func (h *Handler) callerTenant(c *gin.Context) (string, bool) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "valid session required"})
		return "", false
	}
	tenantID := id.TenantID
	if id.IsMaster() {
		tenantID = c.Query("tenant_id")
	}
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "caller has no tenant"})
		return "", false
	}
	return tenantID, true
}

// List handles GET /v1/servers.
func (h *Handler) List(c *gin.Context) {
	tenantID, ok := h.callerTenant(c)
	if !ok {
		return
	}

	servers, err := h.svc.List(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list servers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"servers": servers, "count": len(servers)})
}

// Create handles POST /v1/servers.
func (h *Handler) Create(c *gin.Context) {
	tenantID, ok := h.callerTenant(c)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name required"})
		return
	}

	srv, err := h.svc.Create(c.Request.Context(), tenantID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, ErrNameRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name required"})
		case errors.Is(err, ErrNameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "name_taken", "message": "server already registered"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create server"})
		}
		return
	}
	id, _ := auth.CurrentIdentity(c)
	h.audits.Record(c.Request.Context(), id, audit.ActionServerCreate, srv.ID, srv.Name)
	c.JSON(http.StatusCreated, srv)
}

// Delete handles DELETE /v1/servers/:id.
func (h *Handler) Delete(c *gin.Context) {
	tenantID, ok := h.callerTenant(c)
	if !ok {
		return
	}

	targetID := c.Param("id")
	if err := h.svc.Delete(c.Request.Context(), tenantID, targetID); err != nil {
		if errors.Is(err, ErrServerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "server not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to delete server"})
		return
	}
	id, _ := auth.CurrentIdentity(c)
	h.audits.Record(c.Request.Context(), id, audit.ActionServerDelete, targetID, "")
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
