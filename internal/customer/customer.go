// Package customer provides customer records for the Pulseboard platform.
package customer

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotFound   = errors.New("customer: not found")
	ErrEmailTaken = errors.New("customer: email already exists in this organization")
)

// Status represents a customer's lifecycle state. Churned is a soft delete:
// the row remains for analytics but the customer holds no active subscription.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusChurned  Status = "churned"
)

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusInactive, StatusChurned:
		return true
	}
	return false
}

// Customer is an end user of one organization's product.
type Customer struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Status         Status    `json:"status"`
	Region         string    `json:"region"`
	SignupDate     time.Time `json:"signupDate"`
	LastActiveAt   time.Time `json:"lastActiveAt"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Cohort is one signup-month group with its retention counts.
type Cohort struct {
	Month     string `json:"month"`
	SignedUp  int64  `json:"signedUp"`
	Returning int64  `json:"returning"`
}
