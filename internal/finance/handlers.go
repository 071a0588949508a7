package finance

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gestororion/orion/internal/auth"
	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/logging"
)

// Handler serves the financial report endpoints.
type Handler struct {
	agg      *Aggregator
	resolver *identity.Resolver
}

// NewHandler creates a new finance handler.
func NewHandler(agg *Aggregator, resolver *identity.Resolver) *Handler {
	return &Handler{agg: agg, resolver: resolver}
}

// RegisterRoutes sets up the report routes. Mount behind RequireAuth and
// the license gate.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/reports/summary", h.Summary)
}

// Summary handles GET /v1/reports/summary with optional month and year.
func (h *Handler) Summary(c *gin.Context) {
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

	var period *Period
	if my := c.Query("month"); my != "" {
		month, err1 := strconv.Atoi(my)
		year, err2 := strconv.Atoi(c.Query("year"))
		if err1 != nil || err2 != nil || month < 1 || month > 12 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_period", "message": "month and year must be numeric"})
			return
		}
		period = &Period{Month: time.Month(month), Year: year}
	}

	snap, err := h.agg.Snapshot(c.Request.Context(), scope, period)
	if err != nil {
		logging.FromContext(c.Request.Context()).Error("financial snapshot failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to compute report"})
		return
	}
	c.JSON(http.StatusOK, snap)
}
