// Package subscription provides subscription records and the fixed plan
// catalogue for the Pulseboard platform.
package subscription

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotFound = errors.New("subscription: not found")
)

// Status represents a subscription's lifecycle state.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusTrial, StatusActive, StatusCancelled:
		return true
	}
	return false
}

// Subscription is one billing arrangement for a customer. A customer may
// accumulate many rows over time but holds at most one with status active
// at any instant.
type Subscription struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	CustomerID     string     `json:"customerId"`
	Plan           Plan       `json:"plan"`
	PricePerMonth  float64    `json:"pricePerMonth"`
	Status         Status     `json:"status"`
	StartDate      time.Time  `json:"startDate"`
	EndDate        *time.Time `json:"endDate,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}
