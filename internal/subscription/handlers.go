package subscription

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulseboard/pulseboard/internal/auth"
	"github.com/pulseboard/pulseboard/internal/idgen"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/metrics"
)

// CustomerInfo is the display projection attached to listed subscriptions.
type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CustomerDirectory resolves customers for ownership checks and display
// decoration. The concrete implementation is an adapter over the customer
// store, wired in the server package.
type CustomerDirectory interface {
	Exists(ctx context.Context, orgID, customerID string) (bool, error)
	DisplayInfo(ctx context.Context, orgID string, customerIDs []string) (map[string]CustomerInfo, error)
}

// Handler provides HTTP endpoints for subscription management.
type Handler struct {
	store     Store
	customers CustomerDirectory
}

// NewHandler creates a new subscription handler.
func NewHandler(store Store, customers CustomerDirectory) *Handler {
	return &Handler{store: store, customers: customers}
}

// RegisterRoutes sets up subscription routes (auth required).
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/subscriptions", h.ListSubscriptions)
	r.GET("/subscriptions/:id", h.GetSubscription)
	r.POST("/subscriptions", h.CreateSubscription)
	r.PUT("/subscriptions/:id", h.UpdateSubscription)
	r.DELETE("/subscriptions/:id", h.CancelSubscription)
}

type listItem struct {
	*Subscription
	Customer *CustomerInfo `json:"customer,omitempty"`
}

// ListSubscriptions handles GET /api/subscriptions
func (h *Handler) ListSubscriptions(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	f := Filter{
		CustomerID: c.Query("customerId"),
		Status:     Status(c.Query("status")),
		Plan:       Plan(c.Query("plan")),
	}
	if f.Status != "" && !ValidStatus(f.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown status"})
		return
	}
	if f.Plan != "" && !ValidPlan(f.Plan) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown plan"})
		return
	}

	subs, err := h.store.List(c.Request.Context(), orgID, f)
	if err != nil {
		logging.L(c.Request.Context()).Error("list subscriptions failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to list subscriptions"})
		return
	}

	items := make([]listItem, 0, len(subs))
	customerIDs := make([]string, 0, len(subs))
	for _, s := range subs {
		customerIDs = append(customerIDs, s.CustomerID)
	}
	info, err := h.customers.DisplayInfo(c.Request.Context(), orgID, customerIDs)
	if err != nil {
		info = nil
	}
	for _, s := range subs {
		item := listItem{Subscription: s}
		if ci, ok := info[s.CustomerID]; ok {
			item.Customer = &ci
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": items})
}

// GetSubscription handles GET /api/subscriptions/:id
func (h *Handler) GetSubscription(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	s, err := h.store.Get(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "subscription not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load subscription"})
		return
	}

	item := listItem{Subscription: s}
	if info, err := h.customers.DisplayInfo(c.Request.Context(), orgID, []string{s.CustomerID}); err == nil {
		if ci, ok := info[s.CustomerID]; ok {
			item.Customer = &ci
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": item})
}

// CreateSubscription handles POST /api/subscriptions
func (h *Handler) CreateSubscription(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	var req struct {
		CustomerID    string   `json:"customerId" binding:"required"`
		Plan          Plan     `json:"plan" binding:"required"`
		PricePerMonth *float64 `json:"pricePerMonth"`
		Status        Status   `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "customer ID and plan are required"})
		return
	}
	if !ValidPlan(req.Plan) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown plan"})
		return
	}
	if req.Status == "" {
		req.Status = StatusActive
	}
	if !ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown status"})
		return
	}

	exists, err := h.customers.Exists(c.Request.Context(), orgID, req.CustomerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to verify customer"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "customer not found"})
		return
	}

	price := PriceFor(req.Plan)
	if req.PricePerMonth != nil {
		price = *req.PricePerMonth
	}

	now := time.Now()
	s := &Subscription{
		ID:             idgen.WithPrefix("sub_"),
		OrganizationID: orgID,
		CustomerID:     req.CustomerID,
		Plan:           req.Plan,
		PricePerMonth:  price,
		Status:         req.Status,
		StartDate:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.store.Create(c.Request.Context(), s); err != nil {
		logging.L(c.Request.Context()).Error("create subscription failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to create subscription"})
		return
	}

	metrics.SubscriptionsTotal.WithLabelValues(string(s.Plan), "created").Inc()
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": s})
}

// UpdateCommand is the allow-listed set of subscription fields a caller may change.
type UpdateCommand struct {
	Plan          *Plan      `json:"plan"`
	PricePerMonth *float64   `json:"pricePerMonth"`
	Status        *Status    `json:"status"`
	EndDate       *time.Time `json:"endDate"`
}

// UpdateSubscription handles PUT /api/subscriptions/:id
func (h *Handler) UpdateSubscription(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	var cmd UpdateCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if cmd.Plan != nil && !ValidPlan(*cmd.Plan) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown plan"})
		return
	}
	if cmd.Status != nil && !ValidStatus(*cmd.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown status"})
		return
	}

	s, err := h.store.Get(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "subscription not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load subscription"})
		return
	}

	if cmd.Plan != nil {
		s.Plan = *cmd.Plan
		if cmd.PricePerMonth == nil {
			s.PricePerMonth = PriceFor(*cmd.Plan)
		}
	}
	if cmd.PricePerMonth != nil {
		s.PricePerMonth = *cmd.PricePerMonth
	}
	if cmd.Status != nil {
		s.Status = *cmd.Status
		if *cmd.Status == StatusCancelled && cmd.EndDate == nil && s.EndDate == nil {
			now := time.Now()
			s.EndDate = &now
		}
	}
	if cmd.EndDate != nil {
		s.EndDate = cmd.EndDate
	}
	s.UpdatedAt = time.Now()

	if err := h.store.Update(c.Request.Context(), s); err != nil {
		logging.L(c.Request.Context()).Error("update subscription failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to update subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": s})
}

// CancelSubscription handles DELETE /api/subscriptions/:id. Subscriptions are
// never removed; delete means cancel.
func (h *Handler) CancelSubscription(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	s, err := h.store.Get(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "subscription not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load subscription"})
		return
	}

	now := time.Now()
	s.Status = StatusCancelled
	s.EndDate = &now
	s.UpdatedAt = now
	if err := h.store.Update(c.Request.Context(), s); err != nil {
		logging.L(c.Request.Context()).Error("cancel subscription failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to cancel subscription"})
		return
	}

	metrics.SubscriptionsTotal.WithLabelValues(string(s.Plan), "cancelled").Inc()
	c.JSON(http.StatusOK, gin.H{"success": true, "data": s})
}
