package license

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gestororion/orion/internal/auth"
	"github.com/gestororion/orion/internal/metrics"
)

// Middleware rejects callers whose license chain is closed. Mount it after
// the auth middleware on every tenant-facing route group.
func Middleware(g *Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := auth.CurrentUser(c)
		if !ok {
			c.Next()
			return
		}

		err := g.Check(c.Request.Context(), u)
		if err == nil {
			c.Next()
			return
		}

		var code string
		switch {
		case errors.Is(err, ErrLicenseInactive):
			code = "LICENSE_INACTIVE"
		case errors.Is(err, ErrLicenseExpired):
			code = "LICENSE_EXPIRED"
		case errors.Is(err, ErrPanelExpired):
			code = "PANEL_EXPIRED"
		default:
			code = "LICENSE_DENIED"
		}
		metrics.LicenseDenialsTotal.WithLabelValues(code).Inc()

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   code,
			"message": "access suspended, contact your provider",
		})
	}
}
