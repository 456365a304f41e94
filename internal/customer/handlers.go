package customer

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulseboard/pulseboard/internal/auth"
	"github.com/pulseboard/pulseboard/internal/billing"
	"github.com/pulseboard/pulseboard/internal/idgen"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/pagination"
	"github.com/pulseboard/pulseboard/internal/subscription"
	"github.com/pulseboard/pulseboard/internal/usage"
	"github.com/pulseboard/pulseboard/internal/validation"
)

// Handler provides HTTP endpoints for customer management.
type Handler struct {
	store     Store
	subs      subscription.Store
	events    usage.Store
	lifecycle *billing.Lifecycle
}

// NewHandler creates a new customer handler.
func NewHandler(store Store, subs subscription.Store, events usage.Store, lifecycle *billing.Lifecycle) *Handler {
	return &Handler{store: store, subs: subs, events: events, lifecycle: lifecycle}
}

// RegisterRoutes sets up customer routes (auth required).
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/customers", h.ListCustomers)
	r.GET("/customers/:id", h.GetCustomer)
	r.POST("/customers", h.CreateCustomer)
	r.PUT("/customers/:id", h.UpdateCustomer)
	r.DELETE("/customers/:id", h.DeleteCustomer)
}

// withPlan decorates a customer with their effective plan: the active
// subscription's plan, or Free when none is active.
type withPlan struct {
	*Customer
	Plan subscription.Plan `json:"plan"`
}

// ListCustomers handles GET /api/customers
func (h *Handler) ListCustomers(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	f := Filter{
		Search:    c.Query("search"),
		Status:    Status(c.Query("status")),
		Region:    c.Query("region"),
		SortBy:    c.DefaultQuery("sortBy", "signupDate"),
		SortOrder: c.DefaultQuery("sortOrder", "desc"),
	}
	if f.Status != "" && !ValidStatus(f.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown status"})
		return
	}

	p := pagination.FromQuery(c)
	customers, total, err := h.store.List(c.Request.Context(), orgID, f, p)
	if err != nil {
		logging.L(c.Request.Context()).Error("list customers failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to list customers"})
		return
	}

	ids := make([]string, len(customers))
	for i, cust := range customers {
		ids[i] = cust.ID
	}
	plans, err := h.subs.ActivePlansByCustomer(c.Request.Context(), orgID, ids)
	if err != nil {
		logging.L(c.Request.Context()).Error("resolve customer plans failed", "error", err)
		plans = nil
	}

	items := make([]withPlan, len(customers))
	for i, cust := range customers {
		items[i] = withPlan{Customer: cust, Plan: effectivePlan(plans, cust.ID)}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": pagination.NewPage(items, total, p)})
}

// GetCustomer handles GET /api/customers/:id
func (h *Handler) GetCustomer(c *gin.Context) {
	orgID := auth.GetOrgID(c)
	id := c.Param("id")

	cust, err := h.store.Get(c.Request.Context(), orgID, id)
	if err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "customer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load customer"})
		return
	}

	subs, err := h.subs.ListByCustomer(c.Request.Context(), orgID, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load subscriptions"})
		return
	}
	if subs == nil {
		subs = []*subscription.Subscription{}
	}

	plan := subscription.PlanFree
	for _, s := range subs {
		if s.Status == subscription.StatusActive {
			plan = s.Plan
			break
		}
	}

	recent, err := h.events.RecentByCustomer(c.Request.Context(), orgID, id, 10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load activity"})
		return
	}
	if recent == nil {
		recent = []*usage.Event{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"customer":       withPlan{Customer: cust, Plan: plan},
			"subscriptions":  subs,
			"recentActivity": recent,
		},
	})
}

// CreateCustomer handles POST /api/customers. An initial subscription is
// always created; paid plans bill their first cycle immediately.
func (h *Handler) CreateCustomer(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	var req struct {
		Name   string            `json:"name" binding:"required"`
		Email  string            `json:"email" binding:"required"`
		Region string            `json:"region" binding:"required"`
		Status Status            `json:"status"`
		Plan   subscription.Plan `json:"plan"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "name, email, and region are required"})
		return
	}

	req.Email = validation.NormalizeEmail(req.Email)
	if !validation.IsValidEmail(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid email"})
		return
	}
	if req.Status == "" {
		req.Status = StatusActive
	}
	if !ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown status"})
		return
	}
	if req.Plan == "" {
		req.Plan = subscription.PlanFree
	}
	if !subscription.ValidPlan(req.Plan) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown plan"})
		return
	}

	now := time.Now()
	cust := &Customer{
		ID:             idgen.WithPrefix("cus_"),
		OrganizationID: orgID,
		Name:           validation.SanitizeString(req.Name, 200),
		Email:          req.Email,
		Status:         req.Status,
		Region:         validation.SanitizeString(req.Region, 100),
		SignupDate:     now,
		LastActiveAt:   now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.store.Create(c.Request.Context(), cust); err != nil {
		if err == ErrEmailTaken {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "customer with this email already exists"})
			return
		}
		logging.L(c.Request.Context()).Error("create customer failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to create customer"})
		return
	}

	if _, err := h.lifecycle.StartPlan(c.Request.Context(), orgID, cust.ID, req.Plan); err != nil {
		logging.L(c.Request.Context()).Error("initial subscription failed", "error", err, "customer_id", cust.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to create subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": cust})
}

// UpdateCommand is the allow-listed set of customer fields a caller may
// change. Plan is not a customer column; it routes through the billing
// lifecycle rules.
type UpdateCommand struct {
	Name   *string            `json:"name"`
	Email  *string            `json:"email"`
	Region *string            `json:"region"`
	Status *Status            `json:"status"`
	Plan   *subscription.Plan `json:"plan"`
}

// UpdateCustomer handles PUT /api/customers/:id
func (h *Handler) UpdateCustomer(c *gin.Context) {
	orgID := auth.GetOrgID(c)
	id := c.Param("id")

	var cmd UpdateCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if cmd.Status != nil && !ValidStatus(*cmd.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown status"})
		return
	}
	if cmd.Plan != nil && !subscription.ValidPlan(*cmd.Plan) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown plan"})
		return
	}
	if cmd.Email != nil {
		normalized := validation.NormalizeEmail(*cmd.Email)
		if !validation.IsValidEmail(normalized) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid email"})
			return
		}
		cmd.Email = &normalized
	}

	cust, err := h.store.Get(c.Request.Context(), orgID, id)
	if err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "customer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load customer"})
		return
	}

	var requestedStatus *string
	if cmd.Status != nil {
		s := string(*cmd.Status)
		requestedStatus = &s
	}

	resolvedStatus, err := h.lifecycle.ChangePlan(c.Request.Context(), orgID, id, cmd.Plan, requestedStatus)
	if err != nil {
		switch err {
		case billing.ErrPaidStatusLocked, billing.ErrActivePaidPlan:
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		default:
			logging.L(c.Request.Context()).Error("plan change failed", "error", err, "customer_id", id)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to update customer"})
		}
		return
	}

	if cmd.Name != nil {
		cust.Name = validation.SanitizeString(*cmd.Name, 200)
	}
	if cmd.Email != nil {
		cust.Email = *cmd.Email
	}
	if cmd.Region != nil {
		cust.Region = validation.SanitizeString(*cmd.Region, 100)
	}
	if resolvedStatus != nil {
		cust.Status = Status(*resolvedStatus)
	}
	cust.UpdatedAt = time.Now()

	if err := h.store.Update(c.Request.Context(), cust); err != nil {
		if err == ErrEmailTaken {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "customer with this email already exists"})
			return
		}
		logging.L(c.Request.Context()).Error("update customer failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to update customer"})
		return
	}

	if cust.Status == StatusChurned {
		if err := h.lifecycle.Churn(c.Request.Context(), orgID, id); err != nil {
			logging.L(c.Request.Context()).Error("churn cancellation failed", "error", err, "customer_id", id)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to cancel subscriptions"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": cust})
}

// DeleteCustomer handles DELETE /api/customers/:id. Customers are never
// removed; delete churns them and cancels their subscriptions.
func (h *Handler) DeleteCustomer(c *gin.Context) {
	orgID := auth.GetOrgID(c)
	id := c.Param("id")

	cust, err := h.store.Get(c.Request.Context(), orgID, id)
	if err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "customer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load customer"})
		return
	}

	cust.Status = StatusChurned
	cust.UpdatedAt = time.Now()
	if err := h.store.Update(c.Request.Context(), cust); err != nil {
		logging.L(c.Request.Context()).Error("churn customer failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to delete customer"})
		return
	}

	if err := h.lifecycle.Churn(c.Request.Context(), orgID, id); err != nil {
		logging.L(c.Request.Context()).Error("churn cancellation failed", "error", err, "customer_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to cancel subscriptions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": cust})
}

func effectivePlan(plans map[string]subscription.Plan, customerID string) subscription.Plan {
	if p, ok := plans[customerID]; ok {
		return p
	}
	return subscription.PlanFree
}
