package report

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulseboard/pulseboard/internal/auth"
	"github.com/pulseboard/pulseboard/internal/idgen"
	"github.com/pulseboard/pulseboard/internal/logging"
)

// Handler provides HTTP endpoints for reports.
type Handler struct {
	store Store
	gen   *Generator
}

// NewHandler creates a new report handler.
func NewHandler(store Store, gen *Generator) *Handler {
	return &Handler{store: store, gen: gen}
}

// RegisterRoutes sets up report routes (auth required).
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/reports", h.ListReports)
	r.POST("/reports", h.CreateReport)
	r.GET("/reports/:id", h.GetReport)
	r.GET("/reports/:id/download", h.DownloadReport)
}

// ListReports handles GET /api/reports
func (h *Handler) ListReports(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	f := Filter{
		Type:   Type(c.Query("type")),
		Status: Status(c.Query("status")),
	}
	if f.Type != "" && !ValidType(f.Type) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown report type"})
		return
	}
	if f.Status != "" && !ValidStatus(f.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown status"})
		return
	}

	reports, err := h.store.List(c.Request.Context(), orgID, f)
	if err != nil {
		logging.L(c.Request.Context()).Error("list reports failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to list reports"})
		return
	}
	if reports == nil {
		reports = []*Report{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": reports})
}

// CreateReport handles POST /api/reports. The report row is created pending
// and generation runs in the background; poll the report until it completes.
func (h *Handler) CreateReport(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	var req struct {
		Type        Type   `json:"type" binding:"required"`
		PeriodStart string `json:"periodStart"`
		PeriodEnd   string `json:"periodEnd"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "report type is required"})
		return
	}
	if !ValidType(req.Type) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown report type"})
		return
	}

	now := time.Now()
	var start, end time.Time
	switch req.Type {
	case TypeMonthly:
		start, end = now.AddDate(0, -1, 0), now
	case TypeYearly:
		start, end = now.AddDate(-1, 0, 0), now
	case TypeCustom:
		var err error
		start, err = time.Parse(time.RFC3339, req.PeriodStart)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "custom reports require a valid periodStart"})
			return
		}
		end, err = time.Parse(time.RFC3339, req.PeriodEnd)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "custom reports require a valid periodEnd"})
			return
		}
		if end.Before(start) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "periodEnd is before periodStart"})
			return
		}
	}

	r := &Report{
		ID:             idgen.WithPrefix("rep_"),
		OrganizationID: orgID,
		Type:           req.Type,
		Status:         StatusPending,
		PeriodStart:    start,
		PeriodEnd:      end,
		CreatedAt:      now,
	}
	if err := h.store.Create(c.Request.Context(), r); err != nil {
		logging.L(c.Request.Context()).Error("create report failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to create report"})
		return
	}

	if err := h.gen.Enqueue(orgID, r.ID); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "report queue is full, try again later"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": r})
}

// GetReport handles GET /api/reports/:id
func (h *Handler) GetReport(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	r, err := h.store.Get(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "report not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load report"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": r})
}

// DownloadReport handles GET /api/reports/:id/download?format=csv|json
func (h *Handler) DownloadReport(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "csv" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown format"})
		return
	}

	r, err := h.store.Get(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "report not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load report"})
		return
	}
	if r.Status != StatusCompleted || r.Summary == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "report is not completed yet"})
		return
	}

	filename := fmt.Sprintf("report-%s.%s", r.ID, format)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)

	if format == "json" {
		c.JSON(http.StatusOK, r)
		return
	}

	var b strings.Builder
	b.WriteString("Metric,Value\n")
	fmt.Fprintf(&b, "Total Users,%d\n", r.Summary.TotalUsers)
	fmt.Fprintf(&b, "Active Users,%d\n", r.Summary.ActiveUsers)
	fmt.Fprintf(&b, "Revenue,%.2f\n", r.Summary.Revenue)
	fmt.Fprintf(&b, "Churn Rate,%.2f\n", r.Summary.ChurnRate)
	fmt.Fprintf(&b, "MRR,%.2f\n", r.Summary.MRR)
	fmt.Fprintf(&b, "ARR,%.2f\n", r.Summary.ARR)
	fmt.Fprintf(&b, "Period Start,%s\n", r.PeriodStart.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Period End,%s\n", r.PeriodEnd.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Generated At,%s\n", r.CreatedAt.UTC().Format(time.RFC3339))
	c.Data(http.StatusOK, "text/csv", []byte(b.String()))
}
