package analytics

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulseboard/pulseboard/internal/auth"
	"github.com/pulseboard/pulseboard/internal/logging"
)

// defaultRange is the reporting window used when the caller gives none.
const defaultRange = 30 * 24 * time.Hour

// Handler provides HTTP endpoints for dashboard analytics.
type Handler struct {
	svc *Service
}

// NewHandler creates a new analytics handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up analytics routes (auth required).
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/analytics/overview", h.GetOverview)
	r.GET("/analytics/trends", h.GetTrends)
	r.GET("/analytics/retention", h.GetRetention)
}

// parseRange reads optional from/to query params, defaulting to the trailing
// reporting window. Returns ok=false after writing the error response.
func parseRange(c *gin.Context) (from, to time.Time, ok bool) {
	now := time.Now()
	from, to = now.Add(-defaultRange), now

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid from date"})
			return from, to, false
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid to date"})
			return from, to, false
		}
		to = t
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "to date is before from date"})
		return from, to, false
	}
	return from, to, true
}

// GetOverview handles GET /api/analytics/overview
func (h *Handler) GetOverview(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	from, to, ok := parseRange(c)
	if !ok {
		return
	}

	overview, err := h.svc.Overview(c.Request.Context(), orgID, from, to)
	if err != nil {
		logging.L(c.Request.Context()).Error("analytics overview failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to compute overview"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": overview})
}

// GetTrends handles GET /api/analytics/trends
func (h *Handler) GetTrends(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	metric := c.DefaultQuery("metric", "users")
	groupBy := c.DefaultQuery("groupBy", "day")

	from, to, ok := parseRange(c)
	if !ok {
		return
	}

	points, err := h.svc.Trends(c.Request.Context(), orgID, metric, groupBy, from, to)
	if err != nil {
		switch err {
		case ErrUnknownMetric:
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown metric"})
		case ErrUnknownGroupBy:
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown groupBy"})
		default:
			logging.L(c.Request.Context()).Error("analytics trends failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to compute trends"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": points})
}

// GetRetention handles GET /api/analytics/retention
func (h *Handler) GetRetention(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	cohorts, err := h.svc.Retention(c.Request.Context(), orgID)
	if err != nil {
		logging.L(c.Request.Context()).Error("analytics retention failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to compute retention"})
		return
	}
	if cohorts == nil {
		cohorts = []CohortRetention{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": cohorts})
}
