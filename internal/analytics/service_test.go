package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulseboard/internal/auth"
	"github.com/pulseboard/pulseboard/internal/customer"
	"github.com/pulseboard/pulseboard/internal/ledger"
	"github.com/pulseboard/pulseboard/internal/subscription"
	"github.com/pulseboard/pulseboard/internal/usage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	customers *customer.MemoryStore
	subs      *subscription.MemoryStore
	txns      *ledger.MemoryStore
	events    *usage.MemoryStore
	svc       *Service
}

func newFixture() *fixture {
	f := &fixture{
		customers: customer.NewMemoryStore(),
		subs:      subscription.NewMemoryStore(),
		txns:      ledger.NewMemoryStore(),
		events:    usage.NewMemoryStore(),
	}
	f.svc = NewService(f.customers, f.subs, f.txns, f.events)
	return f
}

func (f *fixture) addCustomer(t *testing.T, id string, signup, lastActive time.Time) {
	t.Helper()
	require.NoError(t, f.customers.Create(context.Background(), &customer.Customer{
		ID: id, OrganizationID: "org_1", Name: id, Email: id + "@x.test",
		Status: customer.StatusActive, Region: "EU",
		SignupDate: signup, LastActiveAt: lastActive,
		CreatedAt: signup, UpdatedAt: signup,
	}))
}

func (f *fixture) addSub(t *testing.T, id, customerID string, plan subscription.Plan, status subscription.Status) {
	t.Helper()
	now := time.Now()
	require.NoError(t, f.subs.Create(context.Background(), &subscription.Subscription{
		ID: id, OrganizationID: "org_1", CustomerID: customerID,
		Plan: plan, PricePerMonth: subscription.PriceFor(plan), Status: status,
		StartDate: now, CreatedAt: now, UpdatedAt: now,
	}))
}

func (f *fixture) addTxn(t *testing.T, id string, amount float64, status ledger.Status, created time.Time) {
	t.Helper()
	require.NoError(t, f.txns.Create(context.Background(), &ledger.Transaction{
		ID: id, OrganizationID: "org_1", CustomerID: "cus_1", SubscriptionID: "sub_1",
		Amount: amount, Currency: "USD", Status: status, CreatedAt: created,
	}))
}

func TestOverview(t *testing.T) {
	f := newFixture()
	now := time.Now()

	// Four customers, two active within the trailing week.
	f.addCustomer(t, "cus_1", now.AddDate(0, -3, 0), now.Add(-time.Hour))
	f.addCustomer(t, "cus_2", now.AddDate(0, -2, 0), now.AddDate(0, 0, -3))
	f.addCustomer(t, "cus_3", now.AddDate(0, -1, 0), now.AddDate(0, 0, -20))
	f.addCustomer(t, "cus_4", now.AddDate(0, 0, -10), now.AddDate(0, 0, -10))

	f.addSub(t, "sub_1", "cus_1", subscription.PlanPro, subscription.StatusActive)
	f.addSub(t, "sub_2", "cus_2", subscription.PlanBasic, subscription.StatusActive)
	f.addSub(t, "sub_3", "cus_3", subscription.PlanFree, subscription.StatusActive)
	f.addSub(t, "sub_4", "cus_4", subscription.PlanPro, subscription.StatusCancelled)

	f.addTxn(t, "txn_1", 99, ledger.StatusSuccess, now.AddDate(0, 0, -5))
	f.addTxn(t, "txn_2", 29, ledger.StatusSuccess, now.AddDate(0, 0, -2))
	f.addTxn(t, "txn_3", 29, ledger.StatusFailed, now.AddDate(0, 0, -2))
	f.addTxn(t, "txn_4", 99, ledger.StatusSuccess, now.AddDate(0, -2, 0))

	o, err := f.svc.Overview(context.Background(), "org_1", now.AddDate(0, 0, -30), now)
	require.NoError(t, err)

	assert.EqualValues(t, 4, o.TotalUsers)
	assert.EqualValues(t, 2, o.ActiveUsers)
	assert.Equal(t, 128.0, o.MRR, "cancelled and free subscriptions add nothing")
	assert.Equal(t, 128.0, o.MonthlyRevenue, "failed and out-of-range transactions excluded")
	assert.Equal(t, 0.5, o.ConversionRate, "2 of 4 customers hold an active paid plan")
	assert.LessOrEqual(t, o.ConversionRate, 1.0)
}

func TestOverview_EmptyOrg(t *testing.T) {
	f := newFixture()
	now := time.Now()

	o, err := f.svc.Overview(context.Background(), "org_1", now.AddDate(0, 0, -30), now)
	require.NoError(t, err)
	assert.Zero(t, o.TotalUsers)
	assert.Zero(t, o.ConversionRate, "no users means zero, not a division error")
}

func TestTrends(t *testing.T) {
	f := newFixture()
	jan := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 5, 12, 0, 0, 0, time.UTC)

	f.addCustomer(t, "cus_1", jan, jan)
	f.addCustomer(t, "cus_2", jan.AddDate(0, 0, 1), jan)
	f.addCustomer(t, "cus_3", feb, feb)

	f.addTxn(t, "txn_1", 29, ledger.StatusSuccess, jan)
	f.addTxn(t, "txn_2", 99, ledger.StatusSuccess, feb)

	from, to := jan.AddDate(0, -1, 0), feb.AddDate(0, 1, 0)

	points, err := f.svc.Trends(context.Background(), "org_1", "users", "month", from, to)
	require.NoError(t, err)
	assert.Equal(t, []Point{{Date: "2026-01", Value: 2}, {Date: "2026-02", Value: 1}}, points)

	points, err = f.svc.Trends(context.Background(), "org_1", "revenue", "month", from, to)
	require.NoError(t, err)
	assert.Equal(t, []Point{{Date: "2026-01", Value: 29}, {Date: "2026-02", Value: 99}}, points)

	points, err = f.svc.Trends(context.Background(), "org_1", "users", "day", jan, jan.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, []Point{{Date: "2026-01-05", Value: 1}, {Date: "2026-01-06", Value: 1}}, points)

	_, err = f.svc.Trends(context.Background(), "org_1", "happiness", "day", from, to)
	assert.Equal(t, ErrUnknownMetric, err)

	_, err = f.svc.Trends(context.Background(), "org_1", "users", "week", from, to)
	assert.Equal(t, ErrUnknownGroupBy, err)
}

func TestRetention(t *testing.T) {
	f := newFixture()
	now := time.Now()
	cohortMonth := now.AddDate(0, -2, 0)

	f.addCustomer(t, "cus_1", cohortMonth, now.Add(-time.Hour))
	f.addCustomer(t, "cus_2", cohortMonth, cohortMonth)

	cohorts, err := f.svc.Retention(context.Background(), "org_1")
	require.NoError(t, err)
	require.Len(t, cohorts, 1)
	assert.Equal(t, cohortMonth.UTC().Format("2006-01"), cohorts[0].Month)
	assert.EqualValues(t, 2, cohorts[0].SignedUp)
	assert.EqualValues(t, 1, cohorts[0].Returning)
	assert.Equal(t, 0.5, cohorts[0].RetentionRate)
}

func newTestRouter(svc *Service) *gin.Engine {
	h := NewHandler(svc)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(auth.ContextKeyOrgID, "org_1")
	})
	h.RegisterRoutes(r.Group("/api"))
	return r
}

func doGET(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOverviewEndpoint(t *testing.T) {
	f := newFixture()
	now := time.Now()
	f.addCustomer(t, "cus_1", now.AddDate(0, -1, 0), now)
	f.addSub(t, "sub_1", "cus_1", subscription.PlanBasic, subscription.StatusActive)

	r := newTestRouter(f.svc)
	w := doGET(r, "/api/analytics/overview")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool     `json:"success"`
		Data    Overview `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.EqualValues(t, 1, resp.Data.TotalUsers)
	assert.Equal(t, 29.0, resp.Data.MRR)
	assert.Equal(t, 1.0, resp.Data.ConversionRate, "every customer on a paid plan caps the rate at 1")
}

func TestTrendsEndpoint_Validation(t *testing.T) {
	r := newTestRouter(newFixture().svc)

	w := doGET(r, "/api/analytics/trends?metric=happiness")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doGET(r, "/api/analytics/trends?groupBy=week")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doGET(r, "/api/analytics/trends?from=notadate")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doGET(r, "/api/analytics/trends?from=2026-02-01T00:00:00Z&to=2026-01-01T00:00:00Z")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doGET(r, "/api/analytics/trends")
	assert.Equal(t, http.StatusOK, w.Code, "defaults are valid")
}

func TestRetentionEndpoint_EmptyIsArray(t *testing.T) {
	r := newTestRouter(newFixture().svc)

	w := doGET(r, "/api/analytics/retention")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}
