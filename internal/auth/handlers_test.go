package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeOrgCreator struct {
	lastName     string
	lastIndustry string
	failErr      error
}

func (f *fakeOrgCreator) CreateOrganization(_ context.Context, name, industry string) (string, error) {
	if f.failErr != nil {
		return "", f.failErr
	}
	f.lastName = name
	f.lastIndustry = industry
	return "org_test", nil
}

func newTestRouter(t *testing.T) (*gin.Engine, Store, *TokenManager, *fakeOrgCreator) {
	t.Helper()
	store := NewMemoryStore()
	tokens := NewTokenManager("test-secret-at-least-16-chars")
	orgs := &fakeOrgCreator{}
	h := NewHandler(store, tokens, orgs)

	r := gin.New()
	api := r.Group("/api")
	h.RegisterPublicRoutes(api)
	protected := r.Group("/api")
	protected.Use(Middleware(tokens, store))
	h.RegisterProtectedRoutes(protected)
	return r, store, tokens, orgs
}

func doJSON(r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
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
	r.ServeHTTP(w, req)
	return w
}

func register(t *testing.T, r *gin.Engine, email string) (token string, userID string) {
	t.Helper()
	w := doJSON(r, "POST", "/api/auth/register", "", gin.H{
		"name":             "Ada",
		"email":            email,
		"password":         digest("hunter22"),
		"organizationName": "Acme Analytics",
		"industry":         "SaaS",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"token"`
			User  User   `json:"user"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.Data.Token)
	return resp.Data.Token, resp.Data.User.ID
}

func TestRegister(t *testing.T) {
	r, store, _, orgs := newTestRouter(t)

	_, userID := register(t, r, "ada@acme.test")

	assert.Equal(t, "Acme Analytics", orgs.lastName)
	assert.Equal(t, "SaaS", orgs.lastIndustry)

	u, err := store.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, u.Role)
	assert.Equal(t, "org_test", u.OrganizationID)
	// Stored hash must be the bcrypt wrap, never the client digest.
	assert.NotEqual(t, digest("hunter22"), u.PasswordHash)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	r, _, _, _ := newTestRouter(t)
	register(t, r, "ada@acme.test")

	w := doJSON(r, "POST", "/api/auth/register", "", gin.H{
		"name":             "Ada Again",
		"email":            "ada@acme.test",
		"password":         digest("hunter22"),
		"organizationName": "Other Org",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")
}

func TestRegister_MissingFields(t *testing.T) {
	r, _, _, _ := newTestRouter(t)
	w := doJSON(r, "POST", "/api/auth/register", "", gin.H{"email": "x@y.test"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	r, store, _, _ := newTestRouter(t)
	_, userID := register(t, r, "ada@acme.test")

	w := doJSON(r, "POST", "/api/auth/login", "", gin.H{
		"email":    "ada@acme.test",
		"password": digest("hunter22"),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	u, err := store.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.NotNil(t, u.LastLoginAt)
}

func TestLogin_WrongPassword(t *testing.T) {
	r, _, _, _ := newTestRouter(t)
	register(t, r, "ada@acme.test")

	w := doJSON(r, "POST", "/api/auth/login", "", gin.H{
		"email":    "ada@acme.test",
		"password": digest("wrong"),
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid credentials")
}

func TestLogin_UnknownEmailSameError(t *testing.T) {
	r, _, _, _ := newTestRouter(t)

	w := doJSON(r, "POST", "/api/auth/login", "", gin.H{
		"email":    "nobody@acme.test",
		"password": digest("hunter22"),
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid credentials")
}

func TestLogin_LegacyDigestRehashes(t *testing.T) {
	r, store, _, _ := newTestRouter(t)
	_, userID := register(t, r, "ada@acme.test")

	// Downgrade the stored hash to the legacy bare-digest format.
	u, err := store.Get(context.Background(), userID)
	require.NoError(t, err)
	u.PasswordHash = digest("hunter22")
	require.NoError(t, store.Update(context.Background(), u))

	w := doJSON(r, "POST", "/api/auth/login", "", gin.H{
		"email":    "ada@acme.test",
		"password": digest("hunter22"),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	u, err = store.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, bcryptPrefix.MatchString(u.PasswordHash), "legacy hash should be upgraded on login")
}

func TestMe(t *testing.T) {
	r, _, _, _ := newTestRouter(t)
	token, userID := register(t, r, "ada@acme.test")

	w := doJSON(r, "GET", "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data User `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, userID, resp.Data.ID)
	assert.NotContains(t, w.Body.String(), "passwordHash")
}

func TestMe_GenericUnauthorized(t *testing.T) {
	r, _, tokens, _ := newTestRouter(t)
	register(t, r, "ada@acme.test")

	// Missing token, malformed token, and a valid token for a deleted user
	// must all return the same body.
	for _, token := range []string{"", "garbage"} {
		w := doJSON(r, "GET", "/api/auth/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"success":false,"error":"unauthorized"}`, w.Body.String())
	}

	orphan, err := tokens.Sign("usr_ghost")
	require.NoError(t, err)
	w := doJSON(r, "GET", "/api/auth/me", orphan, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"unauthorized"}`, w.Body.String())
}
