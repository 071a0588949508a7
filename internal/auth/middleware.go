package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/user"
)

const (
	// SessionCookie is the cookie name carrying the session token.
	SessionCookie = "orion_session"

	// ContextKeyIdentity is the gin context key for the resolved identity.
	ContextKeyIdentity = "authIdentity"
	// ContextKeyUser is the gin context key for the resolved user record.
	ContextKeyUser = "authUser"
)

// Middleware resolves the session token (cookie or bearer header) and, when
// valid, stores the caller's identity in the gin context. It never rejects;
// pair it with RequireAuth on protected groups.
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			if cookie, err := c.Cookie(SessionCookie); err == nil {
				token = cookie
			}
		}

		if token != "" {
			if u, _, err := m.Resolve(c.Request.Context(), token); err == nil {
				c.Set(ContextKeyUser, u)
				c.Set(ContextKeyIdentity, u.Identity())
			}
		}

		c.Next()
	}
}

// RequireAuth rejects requests without a valid session.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentIdentity(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "valid session required",
			})
			return
		}
		c.Next()
	}
}

// RequireRole rejects callers below the given role. Master always passes.
func RequireRole(roles ...identity.Role) gin.HandlerFunc {
	allowed := make(map[identity.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "valid session required",
			})
			return
		}
		if !id.IsMaster() && !allowed[id.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "insufficient role",
			})
			return
		}
		c.Next()
	}
}

// RequireMaster rejects everyone but the master account.
func RequireMaster() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "valid session required",
			})
			return
		}
		if !id.IsMaster() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "master access required",
			})
			return
		}
		c.Next()
	}
}

// CurrentIdentity returns the resolved caller identity, if any.
func CurrentIdentity(c *gin.Context) (identity.Identity, bool) {
	v, ok := c.Get(ContextKeyIdentity)
	if !ok {
		return identity.Identity{}, false
	}
	id, ok := v.(identity.Identity)
	return id, ok
}

// CurrentUser returns the full user record behind the session, if any.
func CurrentUser(c *gin.Context) (*user.User, bool) {
	v, ok := c.Get(ContextKeyUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*user.User)
	return u, ok
}
