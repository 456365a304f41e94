package usage

import (
	"context"
	"time"
)

// MaxListResults caps event listings to keep responses bounded.
const MaxListResults = 1000

// Filter narrows an event listing. Zero values mean "no filter".
type Filter struct {
	CustomerID string
	EventType  EventType
	Feature    string
	From       time.Time
	To         time.Time
}

// Store persists usage events. Append-only.
type Store interface {
	Create(ctx context.Context, e *Event) error

	// List returns events newest first, capped at MaxListResults.
	List(ctx context.Context, orgID string, f Filter) ([]*Event, error)

	// RecentByCustomer returns a customer's newest events, up to limit.
	RecentByCustomer(ctx context.Context, orgID, customerID string, limit int) ([]*Event, error)

	// SessionSeries counts session events bucketed by UTC day ("2006-01-02")
	// or month ("2006-01").
	SessionSeries(ctx context.Context, orgID, groupBy string, from, to time.Time) (map[string]float64, error)
}
