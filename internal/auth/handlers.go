package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulseboard/pulseboard/internal/idgen"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/validation"
)

// OrgCreator provisions a new organization during registration. The concrete
// implementation lives in the server package so this package stays free of
// domain imports.
type OrgCreator interface {
	CreateOrganization(ctx context.Context, name, industry string) (orgID string, err error)
}

// Handler provides HTTP endpoints for registration, login, and identity.
type Handler struct {
	store  Store
	tokens *TokenManager
	orgs   OrgCreator
}

// NewHandler creates a new auth handler.
func NewHandler(store Store, tokens *TokenManager, orgs OrgCreator) *Handler {
	return &Handler{store: store, tokens: tokens, orgs: orgs}
}

// RegisterPublicRoutes sets up the unauthenticated auth routes.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
}

// RegisterProtectedRoutes sets up auth routes that require a bearer token.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/auth/me", h.Me)
}

// Register handles POST /api/auth/register. The first user of a new
// organization is created as Owner; there is no invite flow after that.
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Name             string `json:"name" binding:"required"`
		Email            string `json:"email" binding:"required"`
		Password         string `json:"password" binding:"required"`
		OrganizationName string `json:"organizationName" binding:"required"`
		Industry         string `json:"industry"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing required fields"})
		return
	}

	req.Email = validation.NormalizeEmail(req.Email)
	if !validation.IsValidEmail(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid email"})
		return
	}
	if req.Industry == "" {
		req.Industry = "SaaS"
	}

	if _, err := h.store.GetByEmail(c.Request.Context(), req.Email); err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "user already exists"})
		return
	}

	orgID, err := h.orgs.CreateOrganization(c.Request.Context(), req.OrganizationName, req.Industry)
	if err != nil {
		logging.L(c.Request.Context()).Error("create organization failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "registration failed"})
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "registration failed"})
		return
	}

	now := time.Now()
	user := &User{
		ID:             idgen.WithPrefix("usr_"),
		OrganizationID: orgID,
		Name:           validation.SanitizeString(req.Name, 200),
		Email:          req.Email,
		PasswordHash:   hash,
		Role:           RoleOwner,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.store.Create(c.Request.Context(), user); err != nil {
		if err == ErrEmailTaken {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "user already exists"})
			return
		}
		logging.L(c.Request.Context()).Error("create user failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "registration failed"})
		return
	}

	token, err := h.tokens.Sign(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "registration failed"})
		return
	}

	logging.L(c.Request.Context()).Info("user registered", "user_id", user.ID, "org_id", orgID)
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    gin.H{"token": token, "user": user},
	})
}

// Login handles POST /api/auth/login. Clients send the SHA-256 hex digest of
// the password, never the raw password.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "email and password required"})
		return
	}

	user, err := h.store.GetByEmail(c.Request.Context(), validation.NormalizeEmail(req.Email))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid credentials"})
		return
	}

	ok, legacy := VerifyPassword(user.PasswordHash, req.Password)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid credentials"})
		return
	}
	if legacy {
		// Stored digest predates the bcrypt wrap; upgrade it in place.
		logging.L(c.Request.Context()).Warn("legacy password format verified, rehashing", "user_id", user.ID)
		if hash, err := HashPassword(req.Password); err == nil {
			user.PasswordHash = hash
		}
	}

	now := time.Now()
	user.LastLoginAt = &now
	user.UpdatedAt = now
	if err := h.store.Update(c.Request.Context(), user); err != nil {
		logging.L(c.Request.Context()).Error("update last login failed", "error", err, "user_id", user.ID)
	}

	token, err := h.tokens.Sign(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"token": token, "user": user},
	})
}

// Me handles GET /api/auth/me
func (h *Handler) Me(c *gin.Context) {
	user, ok := GetUser(c)
	if !ok {
		unauthorized(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}
