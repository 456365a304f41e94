package report

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory report store for demo/development.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*Report
}

// NewMemoryStore creates a new in-memory report store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]*Report)}
}

func (m *MemoryStore) Create(_ context.Context, r *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := copyReport(r)
	m.reports[r.ID] = cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, orgID, id string) (*Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reports[id]
	if !ok || r.OrganizationID != orgID {
		return nil, ErrNotFound
	}
	return copyReport(r), nil
}

func (m *MemoryStore) Update(_ context.Context, r *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.reports[r.ID]
	if !ok || existing.OrganizationID != r.OrganizationID {
		return ErrNotFound
	}
	m.reports[r.ID] = copyReport(r)
	return nil
}

func (m *MemoryStore) List(_ context.Context, orgID string, f Filter) ([]*Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Report
	for _, r := range m.reports {
		if r.OrganizationID != orgID {
			continue
		}
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		matched = append(matched, copyReport(r))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
}

func copyReport(r *Report) *Report {
	cp := *r
	if r.Summary != nil {
		s := *r.Summary
		cp.Summary = &s
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

var _ Store = (*MemoryStore)(nil)
