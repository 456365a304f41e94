// Package ledger provides the append-only transaction ledger for the
// Pulseboard platform.
package ledger

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotFound = errors.New("ledger: transaction not found")
)

// Status represents a transaction's outcome.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// Transaction is one billing event. Rows are append-only; corrections are
// recorded as new refunded entries, never edits.
type Transaction struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	CustomerID     string    `json:"customerId"`
	SubscriptionID string    `json:"subscriptionId"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}
