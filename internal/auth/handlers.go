package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gestororion/orion/internal/logging"
	"github.com/gestororion/orion/internal/user"
)

// Handler provides the session and account endpoints.
type Handler struct {
	mgr       *Manager
	users     *user.Service
	cookieTTL time.Duration
	secure    bool
}

// NewHandler creates a new auth handler. secure toggles the cookie's
// Secure flag and should be true outside local development.
func NewHandler(mgr *Manager, users *user.Service, cookieTTL time.Duration, secure bool) *Handler {
	if cookieTTL <= 0 {
		cookieTTL = DefaultSessionTTL
	}
	return &Handler{mgr: mgr, users: users, cookieTTL: cookieTTL, secure: secure}
}

// RegisterPublicRoutes sets up the unauthenticated entry points.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/auth/login", h.Login)
	r.POST("/auth/reset", h.ResetByToken)
}

// RegisterProtectedRoutes sets up routes that need a live session.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/me", h.Me)
	r.POST("/auth/password", h.ChangePassword)
	r.POST("/auth/username", h.ChangeUsername)
	r.POST("/auth/first-login-done", h.FirstLoginDone)
}

// Login handles POST /v1/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "username and password required"})
		return
	}

	token, u, err := h.mgr.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "bad_credentials", "message": "invalid username or password"})
			return
		}
		logging.FromContext(c.Request.Context()).Error("login failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "login failed"})
		return
	}

	c.SetCookie(SessionCookie, token, int(h.cookieTTL.Seconds()), "/", "", h.secure, true)
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"user":       u,
		"firstLogin": u.FirstLogin,
	})
}

// Logout handles POST /v1/auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	token := c.GetHeader("Authorization")
	if token == "" {
		token, _ = c.Cookie(SessionCookie)
	}
	_ = h.mgr.Logout(c.Request.Context(), token)
	c.SetCookie(SessionCookie, "", -1, "/", "", h.secure, true)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// Me handles GET /v1/auth/me.
func (h *Handler) Me(c *gin.Context) {
	u, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "valid session required"})
		return
	}
	c.JSON(http.StatusOK, u)
}

// ChangePassword handles POST /v1/auth/password.
func (h *Handler) ChangePassword(c *gin.Context) {
	u, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "valid session required"})
		return
	}

	var req struct {
		Current string `json:"current" binding:"required"`
		Next    string `json:"next" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "current and next required"})
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), u.ID, req.Current, req.Next); err != nil {
		switch {
		case errors.Is(err, user.ErrWrongPassword):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "bad_credentials", "message": "current password is wrong"})
		case errors.Is(err, user.ErrPasswordTooShort):
			c.JSON(http.StatusBadRequest, gin.H{"error": "weak_password", "message": "password too short"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to change password"})
		}
		return
	}

	// Other devices should not survive a password change.
	_ = h.mgr.RevokeUser(c.Request.Context(), u.ID)
	c.SetCookie(SessionCookie, "", -1, "/", "", h.secure, true)
	c.JSON(http.StatusOK, gin.H{"status": "password_changed"})
}

// ChangeUsername handles POST /v1/auth/username.
func (h *Handler) ChangeUsername(c *gin.Context) {
	u, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "valid session required"})
		return
	}

	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "username and password required"})
		return
	}

	if err := h.users.ChangeUsername(c.Request.Context(), u.ID, req.Username, req.Password); err != nil {
		switch {
		case errors.Is(err, user.ErrWrongPassword):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "bad_credentials", "message": "password is wrong"})
		case errors.Is(err, user.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "username_taken", "message": "username already in use"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to change username"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "username_changed"})
}

// FirstLoginDone handles POST /v1/auth/first-login-done.
// The panel calls it after the onboarding tour completes.
func (h *Handler) FirstLoginDone(c *gin.Context) {
	u, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "valid session required"})
		return
	}
	if err := h.users.MarkFirstLoginDone(c.Request.Context(), u.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to update account"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ResetByToken handles POST /v1/auth/reset. The token comes from an
// operator via GenerateResetToken and is single use.
func (h *Handler) ResetByToken(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "token and password required"})
		return
	}

	if err := h.users.ResetByToken(c.Request.Context(), req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, user.ErrInvalidToken), errors.Is(err, user.ErrTokenExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "message": "reset token invalid or expired"})
		case errors.Is(err, user.ErrPasswordTooShort):
			c.JSON(http.StatusBadRequest, gin.H{"error": "weak_password", "message": "password too short"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to reset password"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_reset"})
}
