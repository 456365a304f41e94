package org

import "context"

// Store persists organizations.
type Store interface {
	Create(ctx context.Context, o *Organization) error
	Get(ctx context.Context, id string) (*Organization, error)
	Update(ctx context.Context, o *Organization) error
}
