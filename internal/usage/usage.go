// Package usage provides product usage events for the Pulseboard platform.
package usage

import "time"

// EventType classifies a usage event.
type EventType string

const (
	EventLogin       EventType = "login"
	EventSession     EventType = "session"
	EventFeatureUsed EventType = "feature_used"
)

// ValidEventType reports whether t is a known event type.
func ValidEventType(t EventType) bool {
	switch t {
	case EventLogin, EventSession, EventFeatureUsed:
		return true
	}
	return false
}

// Event is one recorded customer interaction. Append-only.
type Event struct {
	ID              string    `json:"id"`
	OrganizationID  string    `json:"organizationId"`
	CustomerID      string    `json:"customerId"`
	EventType       EventType `json:"eventType"`
	Feature         string    `json:"feature,omitempty"`
	SessionDuration float64   `json:"sessionDuration,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}
