package usage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory usage event store for demo/development.
type MemoryStore struct {
	mu     sync.RWMutex
	events []*Event
}

// NewMemoryStore creates a new in-memory usage event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Create(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *MemoryStore) List(_ context.Context, orgID string, f Filter) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Event
	for _, e := range m.events {
		if e.OrganizationID != orgID {
			continue
		}
		if f.CustomerID != "" && e.CustomerID != f.CustomerID {
			continue
		}
		if f.EventType != "" && e.EventType != f.EventType {
			continue
		}
		if f.Feature != "" && e.Feature != f.Feature {
			continue
		}
		if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && e.CreatedAt.After(f.To) {
			continue
		}
		cp := *e
		matched = append(matched, &cp)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if len(matched) > MaxListResults {
		matched = matched[:MaxListResults]
	}
	return matched, nil
}

func (m *MemoryStore) RecentByCustomer(ctx context.Context, orgID, customerID string, limit int) ([]*Event, error) {
	events, err := m.List(ctx, orgID, Filter{CustomerID: customerID})
	if err != nil {
		return nil, err
	}
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (m *MemoryStore) SessionSeries(_ context.Context, orgID, groupBy string, from, to time.Time) (map[string]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	series := make(map[string]float64)
	for _, e := range m.events {
		if e.OrganizationID != orgID || e.EventType != EventSession ||
			e.CreatedAt.Before(from) || e.CreatedAt.After(to) {
			continue
		}
		key := e.CreatedAt.UTC().Format("2006-01-02")
		if groupBy == "month" {
			key = e.CreatedAt.UTC().Format("2006-01")
		}
		series[key]++
	}
	return series, nil
}

var _ Store = (*MemoryStore)(nil)
