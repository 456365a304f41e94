package usage

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulseboard/pulseboard/internal/auth"
	"github.com/pulseboard/pulseboard/internal/idgen"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/validation"
)

// ActivityRecorder marks a customer as active when they generate an event.
// Wired as an adapter over the customer store in the server package; it also
// doubles as the existence check for incoming events.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, orgID, customerID string, at time.Time) error
}

// Handler provides HTTP endpoints for usage events.
type Handler struct {
	store    Store
	activity ActivityRecorder
}

// NewHandler creates a new usage event handler.
func NewHandler(store Store, activity ActivityRecorder) *Handler {
	return &Handler{store: store, activity: activity}
}

// RegisterRoutes sets up usage event routes (auth required).
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/usage-events", h.ListEvents)
	r.POST("/usage-events", h.CreateEvent)
}

// ListEvents handles GET /api/usage-events
func (h *Handler) ListEvents(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	f := Filter{
		CustomerID: c.Query("userId"),
		EventType:  EventType(c.Query("eventType")),
		Feature:    c.Query("feature"),
	}
	if f.EventType != "" && !ValidEventType(f.EventType) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown event type"})
		return
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid from date"})
			return
		}
		f.From = t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid to date"})
			return
		}
		f.To = t
	}

	events, err := h.store.List(c.Request.Context(), orgID, f)
	if err != nil {
		logging.L(c.Request.Context()).Error("list usage events failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to list usage events"})
		return
	}
	if events == nil {
		events = []*Event{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": events})
}

// CreateEvent handles POST /api/usage-events. Recording an event bumps the
// customer's lastActiveAt as a side effect.
func (h *Handler) CreateEvent(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	var req struct {
		CustomerID      string    `json:"customerId" binding:"required"`
		EventType       EventType `json:"eventType" binding:"required"`
		Feature         string    `json:"feature"`
		SessionDuration float64   `json:"sessionDuration"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "customer ID and event type are required"})
		return
	}
	if !ValidEventType(req.EventType) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown event type"})
		return
	}

	now := time.Now()
	if err := h.activity.RecordActivity(c.Request.Context(), orgID, req.CustomerID, now); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "customer not found"})
		return
	}

	e := &Event{
		ID:              idgen.WithPrefix("evt_"),
		OrganizationID:  orgID,
		CustomerID:      req.CustomerID,
		EventType:       req.EventType,
		Feature:         validation.SanitizeString(req.Feature, 200),
		SessionDuration: req.SessionDuration,
		CreatedAt:       now,
	}
	if err := h.store.Create(c.Request.Context(), e); err != nil {
		logging.L(c.Request.Context()).Error("create usage event failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to create usage event"})
		return
	}

	metrics.UsageEventsTotal.WithLabelValues(string(e.EventType)).Inc()
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": e})
}
