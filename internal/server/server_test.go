package server

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulseboard/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(&config.Config{
		Port:         "0",
		Env:          "development",
		LogLevel:     "error",
		JWTSecret:    "test-secret-key-of-sufficient-length",
		RateLimitRPM: 10000,
	})
	require.NoError(t, err)
	return s
}

func passwordDigest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func do(s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func register(t *testing.T, s *Server, email string) string {
	t.Helper()
	w := do(s, "POST", "/api/auth/register", "", gin.H{
		"name":             "Ada",
		"email":            email,
		"password":         passwordDigest("hunter2hunter2"),
		"organizationName": "Acme",
		"industry":         "SaaS",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Token)
	return resp.Data.Token
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		w := do(s, "GET", path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := do(s, "GET", "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)

	paths := []string{
		"/api/customers",
		"/api/subscriptions",
		"/api/transactions",
		"/api/usage-events",
		"/api/analytics/overview",
		"/api/reports",
		"/api/settings/organization",
		"/api/auth/me",
	}
	for _, path := range paths {
		w := do(s, "GET", path, "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Contains(t, w.Body.String(), `"error":"unauthorized"`, path)
	}

	w := do(s, "GET", "/api/customers", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterLoginAndMe(t *testing.T) {
	s := newTestServer(t)
	register(t, s, "ada@x.test")

	w := do(s, "POST", "/api/auth/login", "", gin.H{
		"email":    "ada@x.test",
		"password": passwordDigest("hunter2hunter2"),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var login struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	w = do(s, "GET", "/api/auth/me", login.Data.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ada@x.test")

	w = do(s, "POST", "/api/auth/login", "", gin.H{
		"email":    "ada@x.test",
		"password": passwordDigest("wrong"),
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCustomerLifecycleEndToEnd(t *testing.T) {
	s := newTestServer(t)
	token := register(t, s, "ada@x.test")

	// Create a paid customer.
	w := do(s, "POST", "/api/customers", token, gin.H{
		"name": "Big Co", "email": "big@co.test", "region": "EU", "plan": "Pro",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// The subscription and first transaction exist.
	w = do(s, "GET", "/api/subscriptions?customerId="+created.Data.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"plan":"Pro"`)

	w = do(s, "GET", "/api/transactions?userId="+created.Data.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	// Usage events bump activity.
	w = do(s, "POST", "/api/usage-events", token, gin.H{
		"customerId": created.Data.ID, "eventType": "session", "sessionDuration": 12.5,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Analytics sees all of it.
	w = do(s, "GET", "/api/analytics/overview", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var overview struct {
		Data struct {
			TotalUsers  int64   `json:"totalUsers"`
			ActiveUsers int64   `json:"activeUsers"`
			MRR         float64 `json:"mrr"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &overview))
	assert.EqualValues(t, 1, overview.Data.TotalUsers)
	assert.EqualValues(t, 1, overview.Data.ActiveUsers)
	assert.Equal(t, 99.0, overview.Data.MRR)

	// Churn the customer and verify the subscription is gone from MRR.
	w = do(s, "DELETE", "/api/customers/"+created.Data.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(s, "GET", "/api/analytics/overview", token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &overview))
	assert.Equal(t, 0.0, overview.Data.MRR)
}

func TestTenantIsolationEndToEnd(t *testing.T) {
	s := newTestServer(t)
	tokenA := register(t, s, "a@x.test")
	tokenB := register(t, s, "b@y.test")

	w := do(s, "POST", "/api/customers", tokenA, gin.H{
		"name": "A Corp", "email": "corp@a.test", "region": "EU",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// Tenant B cannot see or touch tenant A's customer.
	w = do(s, "GET", "/api/customers/"+created.Data.ID, tokenB, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(s, "DELETE", "/api/customers/"+created.Data.ID, tokenB, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(s, "GET", "/api/customers", tokenB, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t)

	w := do(s, "GET", "/health", "", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
