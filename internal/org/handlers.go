package org

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulseboard/pulseboard/internal/auth"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/validation"
)

// Handler provides HTTP endpoints for organization settings.
type Handler struct {
	store Store
}

// NewHandler creates a new organization handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up organization settings routes (auth required).
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/settings/organization", h.GetOrganization)
	r.PUT("/settings/organization", h.UpdateOrganization)
}

// GetOrganization handles GET /api/settings/organization
func (h *Handler) GetOrganization(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	o, err := h.store.Get(c.Request.Context(), orgID)
	if err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "organization not found"})
			return
		}
		logging.L(c.Request.Context()).Error("get organization failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load organization"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": o})
}

// UpdateCommand is the allow-listed set of organization fields a caller may change.
type UpdateCommand struct {
	Name        *string   `json:"name"`
	Industry    *Industry `json:"industry"`
	Timezone    *string   `json:"timezone"`
	Currency    *Currency `json:"currency"`
	Website     *string   `json:"website"`
	Address     *string   `json:"address"`
	Phone       *string   `json:"phone"`
	Description *string   `json:"description"`
}

// UpdateOrganization handles PUT /api/settings/organization
func (h *Handler) UpdateOrganization(c *gin.Context) {
	orgID := auth.GetOrgID(c)

	var cmd UpdateCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	if cmd.Name != nil && *cmd.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "name cannot be empty"})
		return
	}
	if cmd.Industry != nil && !ValidIndustry(*cmd.Industry) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown industry"})
		return
	}
	if cmd.Currency != nil && !ValidCurrency(*cmd.Currency) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown currency"})
		return
	}
	if cmd.Timezone != nil {
		if _, err := time.LoadLocation(*cmd.Timezone); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown timezone"})
			return
		}
	}

	o, err := h.store.Get(c.Request.Context(), orgID)
	if err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "organization not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load organization"})
		return
	}

	if cmd.Name != nil {
		o.Name = validation.SanitizeString(*cmd.Name, 200)
	}
	if cmd.Industry != nil {
		o.Industry = *cmd.Industry
	}
	if cmd.Timezone != nil {
		o.Timezone = *cmd.Timezone
	}
	if cmd.Currency != nil {
		o.Currency = *cmd.Currency
	}
	if cmd.Website != nil {
		o.Website = validation.SanitizeString(*cmd.Website, 500)
	}
	if cmd.Address != nil {
		o.Address = validation.SanitizeString(*cmd.Address, 500)
	}
	if cmd.Phone != nil {
		o.Phone = validation.SanitizeString(*cmd.Phone, 50)
	}
	if cmd.Description != nil {
		o.Description = validation.SanitizeString(*cmd.Description, 2000)
	}
	o.UpdatedAt = time.Now()

	if err := h.store.Update(c.Request.Context(), o); err != nil {
		logging.L(c.Request.Context()).Error("update organization failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to update organization"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": o})
}
