package customer

import (
	"context"
	"time"

	"github.com/pulseboard/pulseboard/internal/pagination"
)

// Filter narrows a customer listing. Zero values mean "no filter".
type Filter struct {
	Search    string // matches name or email, case-insensitive
	Status    Status
	Region    string
	SortBy    string // signupDate, lastActiveAt, name, email, status, region
	SortOrder string // asc or desc
}

// Store persists customers. All reads and writes are scoped to one
// organization.
type Store interface {
	Create(ctx context.Context, c *Customer) error
	Get(ctx context.Context, orgID, id string) (*Customer, error)
	Update(ctx context.Context, c *Customer) error
	List(ctx context.Context, orgID string, f Filter, p pagination.Params) ([]*Customer, int64, error)

	// TouchLastActive bumps a customer's lastActiveAt, used when usage events
	// arrive.
	TouchLastActive(ctx context.Context, orgID, id string, t time.Time) error

	// Aggregates for analytics and reporting.
	Count(ctx context.Context, orgID string) (int64, error)
	CountActiveSince(ctx context.Context, orgID string, since time.Time) (int64, error)
	CountSignedUpBefore(ctx context.Context, orgID string, before time.Time) (int64, error)
	CountActiveBetween(ctx context.Context, orgID string, from, to time.Time) (int64, error)

	// SignupSeries returns signup counts bucketed by day ("2006-01-02") or
	// month ("2006-01") in UTC.
	SignupSeries(ctx context.Context, orgID, groupBy string, from, to time.Time) (map[string]float64, error)

	// Cohorts groups customers by UTC signup month; returning counts customers
	// in the cohort whose lastActiveAt is at or after activeSince.
	Cohorts(ctx context.Context, orgID string, activeSince time.Time) ([]Cohort, error)
}
