package ledger

import (
	"context"
	"time"

	"github.com/pulseboard/pulseboard/internal/pagination"
)

// Filter narrows a transaction listing. Zero values mean "no filter".
type Filter struct {
	CustomerID     string
	SubscriptionID string
	Status         Status
	From           time.Time
	To             time.Time
}

// Store persists transactions. Append-only: there is no update or delete.
type Store interface {
	Create(ctx context.Context, t *Transaction) error
	List(ctx context.Context, orgID string, f Filter, p pagination.Params) ([]*Transaction, int64, error)

	// SumSucceededBetween totals success transactions in [from, to].
	SumSucceededBetween(ctx context.Context, orgID string, from, to time.Time) (float64, error)

	// RevenueSeries sums success transaction amounts bucketed by UTC day
	// ("2006-01-02") or month ("2006-01").
	RevenueSeries(ctx context.Context, orgID, groupBy string, from, to time.Time) (map[string]float64, error)
}
