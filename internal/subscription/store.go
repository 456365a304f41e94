package subscription

import (
	"context"
	"time"
)

// Filter narrows a subscription listing. Zero values mean "no filter".
type Filter struct {
	CustomerID string
	Status     Status
	Plan       Plan
}

// Store persists subscriptions. All reads and writes are scoped to one
// organization; implementations must never return another tenant's rows.
type Store interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, orgID, id string) (*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	List(ctx context.Context, orgID string, f Filter) ([]*Subscription, error)
	ListByCustomer(ctx context.Context, orgID, customerID string) ([]*Subscription, error)

	// FindActiveByCustomer returns the customer's active subscription, or
	// (nil, nil) when they have none.
	FindActiveByCustomer(ctx context.Context, orgID, customerID string) (*Subscription, error)

	// CancelActiveByCustomer cancels every active subscription of a customer
	// (status=cancelled, endDate=endDate) and returns how many were cancelled.
	CancelActiveByCustomer(ctx context.Context, orgID, customerID string, endDate time.Time) (int, error)

	// ReplaceActive atomically cancels the customer's active subscriptions and
	// inserts newSub in their place. Either everything commits or nothing does.
	ReplaceActive(ctx context.Context, orgID, customerID string, newSub *Subscription) error

	// ActivePlansByCustomer returns the active plan per customer ID for plan
	// decoration; customers with no active subscription are absent from the map.
	ActivePlansByCustomer(ctx context.Context, orgID string, customerIDs []string) (map[string]Plan, error)

	// Aggregates for analytics and reporting.
	SumActiveMonthlyPrice(ctx context.Context, orgID string) (float64, error)
	CountDistinctPaidCustomers(ctx context.Context, orgID string) (int64, error)
	CountCancelledBetween(ctx context.Context, orgID string, from, to time.Time) (int64, error)
	CountAll(ctx context.Context, orgID string) (int64, error)
}
