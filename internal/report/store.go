package report

import "context"

// Filter narrows a report listing. Zero values mean "no filter".
type Filter struct {
	Type   Type
	Status Status
}

// Store persists reports. All reads and writes are scoped to one organization
// except Update, which the background worker calls with the full row.
type Store interface {
	Create(ctx context.Context, r *Report) error
	Get(ctx context.Context, orgID, id string) (*Report, error)
	Update(ctx context.Context, r *Report) error
	List(ctx context.Context, orgID string, f Filter) ([]*Report, error)
}
