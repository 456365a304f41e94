package ledger

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulseboard/pulseboard/internal/auth"
	"github.com/pulseboard/pulseboard/internal/idgen"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/pagination"
)

// SubscriptionResolver verifies that a subscription belongs to the caller's
// organization and resolves its customer. Wired as an adapter over the
// subscription store in the server package.
type SubscriptionResolver interface {
	ResolveCustomer(ctx context.Context, orgID, subscriptionID string) (customerID string, err error)
}

// Handler provides HTTP endpoints for the transaction ledger.
type Handler struct {
	store Store
	subs  SubscriptionResolver
}

// NewHandler creates a new transaction handler.
func NewHandler(store Store, subs SubscriptionResolver) *Handler {
	return &Handler{store: store, subs: subs}
}

// RegisterRoutes sets up transaction routes (auth required).
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/transactions", h.ListTransactions)
	r.POST("/transactions", h.CreateTransaction)
}

// ListTransactions handles GET /api/transactions
func (h *Handler) ListTransactions(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	f := Filter{
		CustomerID:     c.Query("userId"),
		SubscriptionID: c.Query("subscriptionId"),
		Status:         Status(c.Query("status")),
	}
	if f.Status != "" && !ValidStatus(f.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown status"})
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

	p := pagination.FromQuery(c)
	txns, total, err := h.store.List(c.Request.Context(), orgID, f, p)
	if err != nil {
		logging.L(c.Request.Context()).Error("list transactions failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to list transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": pagination.NewPage(txns, total, p)})
}

// CreateTransaction handles POST /api/transactions
func (h *Handler) CreateTransaction(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	var req struct {
		SubscriptionID string   `json:"subscriptionId" binding:"required"`
		Amount         *float64 `json:"amount" binding:"required"`
		Currency       string   `json:"currency"`
		Status         Status   `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "subscription ID and amount are required"})
		return
	}
	if *req.Amount < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "amount cannot be negative"})
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	if req.Status == "" {
		req.Status = StatusSuccess
	}
	if !ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown status"})
		return
	}

	customerID, err := h.subs.ResolveCustomer(c.Request.Context(), orgID, req.SubscriptionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "subscription not found"})
		return
	}

	t := &Transaction{
		ID:             idgen.WithPrefix("txn_"),
		OrganizationID: orgID,
		CustomerID:     customerID,
		SubscriptionID: req.SubscriptionID,
		Amount:         *req.Amount,
		Currency:       req.Currency,
		Status:         req.Status,
		CreatedAt:      time.Now(),
	}
	if err := h.store.Create(c.Request.Context(), t); err != nil {
		logging.L(c.Request.Context()).Error("create transaction failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to create transaction"})
		return
	}

	metrics.TransactionsTotal.WithLabelValues(string(t.Status)).Inc()
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": t})
}
