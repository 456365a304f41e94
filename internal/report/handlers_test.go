package report

import (
	"bytes"
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
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(f *fixture) *gin.Engine {
	h := NewHandler(f.store, f.gen)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(auth.ContextKeyOrgID, "org_1")
	})
	h.RegisterRoutes(r.Group("/api"))
	return r
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateReport_MonthlyPeriod(t *testing.T) {
	f := newFixture()
	r := newTestRouter(f)

	w := doJSON(r, "POST", "/api/reports", gin.H{"type": "monthly"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, TypeMonthly, resp.Data.Type)
	assert.Equal(t, StatusPending, resp.Data.Status)
	assert.Nil(t, resp.Data.Summary)
	assert.WithinDuration(t, time.Now().AddDate(0, -1, 0), resp.Data.PeriodStart, time.Minute)
	assert.WithinDuration(t, time.Now(), resp.Data.PeriodEnd, time.Minute)
}

func TestCreateReport_Custom(t *testing.T) {
	f := newFixture()
	r := newTestRouter(f)

	w := doJSON(r, "POST", "/api/reports", gin.H{
		"type":        "custom",
		"periodStart": "2026-01-01T00:00:00Z",
		"periodEnd":   "2026-02-01T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(r, "POST", "/api/reports", gin.H{"type": "custom"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "custom needs explicit dates")

	w = doJSON(r, "POST", "/api/reports", gin.H{
		"type":        "custom",
		"periodStart": "2026-02-01T00:00:00Z",
		"periodEnd":   "2026-01-01T00:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "inverted period")

	w = doJSON(r, "POST", "/api/reports", gin.H{"type": "quarterly"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListReports_Filters(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Now()

	reports := []*Report{
		{ID: "rep_1", OrganizationID: "org_1", Type: TypeMonthly, Status: StatusCompleted,
			PeriodStart: now.AddDate(0, -1, 0), PeriodEnd: now, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "rep_2", OrganizationID: "org_1", Type: TypeYearly, Status: StatusPending,
			PeriodStart: now.AddDate(-1, 0, 0), PeriodEnd: now, CreatedAt: now.Add(-time.Hour)},
		{ID: "rep_9", OrganizationID: "org_2", Type: TypeMonthly, Status: StatusCompleted,
			PeriodStart: now.AddDate(0, -1, 0), PeriodEnd: now, CreatedAt: now},
	}
	for _, rep := range reports {
		require.NoError(t, f.store.Create(ctx, rep))
	}

	r := newTestRouter(f)

	w := doJSON(r, "GET", "/api/reports", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2, "must not leak other orgs")
	assert.Equal(t, "rep_2", resp.Data[0].ID, "newest first")

	w = doJSON(r, "GET", "/api/reports?type=monthly", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)

	w = doJSON(r, "GET", "/api/reports?status=pending", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "rep_2", resp.Data[0].ID)

	w = doJSON(r, "GET", "/api/reports?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadReport(t *testing.T) {
	f := newFixture()
	now := time.Now()
	completed := &Report{
		ID: "rep_1", OrganizationID: "org_1", Type: TypeMonthly, Status: StatusCompleted,
		PeriodStart: now.AddDate(0, -1, 0), PeriodEnd: now, CreatedAt: now, CompletedAt: &now,
		Summary: &Summary{TotalUsers: 10, ActiveUsers: 7, Revenue: 128, ChurnRate: 0.25, MRR: 128, ARR: 1536},
	}
	require.NoError(t, f.store.Create(context.Background(), completed))

	r := newTestRouter(f)

	w := doJSON(r, "GET", "/api/reports/rep_1/download?format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "report-rep_1.csv")
	assert.Contains(t, w.Body.String(), "Metric,Value\n")
	assert.Contains(t, w.Body.String(), "Total Users,10\n")
	assert.Contains(t, w.Body.String(), "Churn Rate,0.25\n")
	assert.Contains(t, w.Body.String(), "ARR,1536.00\n")
	assert.Contains(t, w.Body.String(), "Period Start,"+completed.PeriodStart.UTC().Format(time.RFC3339)+"\n")
	assert.Contains(t, w.Body.String(), "Period End,"+completed.PeriodEnd.UTC().Format(time.RFC3339)+"\n")
	assert.Contains(t, w.Body.String(), "Generated At,"+completed.CreatedAt.UTC().Format(time.RFC3339)+"\n")

	w = doJSON(r, "GET", "/api/reports/rep_1/download", nil)
	require.Equal(t, http.StatusOK, w.Code, "json is the default format")
	var rep Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.EqualValues(t, 10, rep.Summary.TotalUsers)

	w = doJSON(r, "GET", "/api/reports/rep_1/download?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadReport_PendingRejected(t *testing.T) {
	f := newFixture()
	now := time.Now()
	require.NoError(t, f.store.Create(context.Background(), &Report{
		ID: "rep_1", OrganizationID: "org_1", Type: TypeMonthly, Status: StatusPending,
		PeriodStart: now.AddDate(0, -1, 0), PeriodEnd: now, CreatedAt: now,
	}))

	r := newTestRouter(f)
	w := doJSON(r, "GET", "/api/reports/rep_1/download", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetReport_NotFoundAcrossOrgs(t *testing.T) {
	f := newFixture()
	now := time.Now()
	require.NoError(t, f.store.Create(context.Background(), &Report{
		ID: "rep_9", OrganizationID: "org_2", Type: TypeMonthly, Status: StatusPending,
		PeriodStart: now, PeriodEnd: now, CreatedAt: now,
	}))

	r := newTestRouter(f)
	w := doJSON(r, "GET", "/api/reports/rep_9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
