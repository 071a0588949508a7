package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/user"
)

// UsersHandler provides account administration endpoints.
// Masters manage admins; admins manage the personal accounts they created.
type UsersHandler struct {
	users *user.Service
	mgr   *Manager
}

// NewUsersHandler creates a new account administration handler.
func NewUsersHandler(users *user.Service, mgr *Manager) *UsersHandler {
	return &UsersHandler{users: users, mgr: mgr}
}

// RegisterRoutes sets up the account administration routes.
// Mount behind RequireRole(admin); masters pass implicitly.
func (h *UsersHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/users", h.List)
	r.POST("/users", h.Create)
	r.DELETE("/users/:id", h.Delete)
	r.POST("/users/:id/reset-token", h.GenerateResetToken)
	r.PUT("/users/:id/expenses", h.SetExpenses)
}

// List handles GET /v1/users scoped by the caller's role.
func (h *UsersHandler) List(c *gin.Context) {
	id, _ := CurrentIdentity(c)

	users, err := h.users.ListVisible(c.Request.Context(), id, c.Query("tenant_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list accounts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// Create handles POST /v1/users.
// Admins can only mint personal accounts inside their own tenant.
func (h *UsersHandler) Create(c *gin.Context) {
	caller, _ := CurrentIdentity(c)

	var req struct {
		Username  string `json:"username" binding:"required"`
		Password  string `json:"password" binding:"required"`
		Role      string `json:"role"`
		TenantID  string `json:"tenantId"`
		PanelPlan string `json:"panelPlan"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "username and password required"})
		return
	}

	role := identity.Role(req.Role)
	tenantID := req.TenantID
	if !caller.IsMaster() {
		role = identity.RolePersonal
		tenantID = caller.TenantID
	}
	if role == "" {
		role = identity.RolePersonal
	}
	if role == identity.RoleMaster || !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_role", "message": "role must be admin or personal"})
		return
	}

	u, err := h.users.Create(c.Request.Context(), user.CreateParams{
		Username:  req.Username,
		Password:  req.Password,
		Role:      role,
		TenantID:  tenantID,
		CreatedBy: caller.UserID,
		PanelPlan: req.PanelPlan,
	})
	if err != nil {
		switch {
		case errors.Is(err, user.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "username_taken", "message": "username already in use"})
		case errors.Is(err, user.ErrPasswordTooShort):
			c.JSON(http.StatusBadRequest, gin.H{"error": "weak_password", "message": "password too short"})
		case errors.Is(err, identity.ErrTenantNotIdentified):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "tenantId required"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create account"})
		}
		return
	}
	c.JSON(http.StatusCreated, u)
}

// Delete handles DELETE /v1/users/:id.
func (h *UsersHandler) Delete(c *gin.Context) {
	caller, _ := CurrentIdentity(c)
	targetID := c.Param("id")

	target, ok := h.visibleTarget(c, caller, targetID)
	if !ok {
		return
	}
	if target.Role == identity.RoleMaster {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "master account cannot be removed"})
		return
	}

	if err := h.users.Store().Delete(c.Request.Context(), targetID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to delete account"})
		return
	}
	_ = h.mgr.RevokeUser(c.Request.Context(), targetID)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// GenerateResetToken handles POST /v1/users/:id/reset-token.
// The token is returned to the operator, who hands it to the user
// out of band. There is no mail delivery in the panel.
func (h *UsersHandler) GenerateResetToken(c *gin.Context) {
	caller, _ := CurrentIdentity(c)

	token, err := h.users.GenerateResetToken(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// SetExpenses handles PUT /v1/users/:id/expenses.
// Fixed expenses feed the financial summary of that account's dashboard.
func (h *UsersHandler) SetExpenses(c *gin.Context) {
	caller, _ := CurrentIdentity(c)
	targetID := c.Param("id")

	if _, ok := h.visibleTarget(c, caller, targetID); !ok {
		return
	}

	var req struct {
		Expenses []user.ExpenseEntry `json:"expenses"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid body"})
		return
	}

	if err := h.users.SetExpenses(c.Request.Context(), targetID, req.Expenses); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to save expenses"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

// visibleTarget loads the target account and enforces the caller's reach.
// A target outside the caller's scope reads as missing, never as forbidden.
func (h *UsersHandler) visibleTarget(c *gin.Context, caller identity.Identity, targetID string) (*user.User, bool) {
	target, err := h.users.Store().Get(c.Request.Context(), targetID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "account not found"})
		return nil, false
	}
	if !caller.IsMaster() {
		if target.TenantID != caller.TenantID || target.CreatedBy != caller.UserID {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "account not found"})
			return nil, false
		}
	}
	return target, true
}
