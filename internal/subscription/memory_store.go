package subscription

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory subscription store for demo/development.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

// NewMemoryStore creates a new in-memory subscription store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[string]*Subscription)}
}

func (m *MemoryStore) Create(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	m.subs[s.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, orgID, id string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.subs[id]
	if !ok || s.OrganizationID != orgID {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.subs[s.ID]
	if !ok || existing.OrganizationID != s.OrganizationID {
		return ErrNotFound
	}
	cp := *s
	m.subs[s.ID] = &cp
	return nil
}

func (m *MemoryStore) List(_ context.Context, orgID string, f Filter) ([]*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Subscription
	for _, s := range m.subs {
		if s.OrganizationID != orgID {
			continue
		}
		if f.CustomerID != "" && s.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.Plan != "" && s.Plan != f.Plan {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sortByCreatedDesc(out)
	return out, nil
}

func (m *MemoryStore) ListByCustomer(ctx context.Context, orgID, customerID string) ([]*Subscription, error) {
	return m.List(ctx, orgID, Filter{CustomerID: customerID})
}

func (m *MemoryStore) FindActiveByCustomer(_ context.Context, orgID, customerID string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findActiveLocked(orgID, customerID), nil
}

func (m *MemoryStore) findActiveLocked(orgID, customerID string) *Subscription {
	var newest *Subscription
	for _, s := range m.subs {
		if s.OrganizationID != orgID || s.CustomerID != customerID || s.Status != StatusActive {
			continue
		}
		if newest == nil || s.CreatedAt.After(newest.CreatedAt) {
			newest = s
		}
	}
	if newest == nil {
		return nil
	}
	cp := *newest
	return &cp
}

func (m *MemoryStore) CancelActiveByCustomer(_ context.Context, orgID, customerID string, endDate time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelActiveLocked(orgID, customerID, endDate), nil
}

func (m *MemoryStore) cancelActiveLocked(orgID, customerID string, endDate time.Time) int {
	count := 0
	for _, s := range m.subs {
		if s.OrganizationID == orgID && s.CustomerID == customerID && s.Status == StatusActive {
			s.Status = StatusCancelled
			end := endDate
			s.EndDate = &end
			s.UpdatedAt = endDate
			count++
		}
	}
	return count
}

// ReplaceActive cancels and inserts under one lock so no reader can observe
// two active subscriptions for the customer.
func (m *MemoryStore) ReplaceActive(_ context.Context, orgID, customerID string, newSub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelActiveLocked(orgID, customerID, newSub.StartDate)
	cp := *newSub
	m.subs[newSub.ID] = &cp
	return nil
}

func (m *MemoryStore) ActivePlansByCustomer(_ context.Context, orgID string, customerIDs []string) (map[string]Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]bool, len(customerIDs))
	for _, id := range customerIDs {
		wanted[id] = true
	}

	plans := make(map[string]Plan)
	for _, s := range m.subs {
		if s.OrganizationID == orgID && s.Status == StatusActive && wanted[s.CustomerID] {
			plans[s.CustomerID] = s.Plan
		}
	}
	return plans, nil
}

func (m *MemoryStore) SumActiveMonthlyPrice(_ context.Context, orgID string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sum float64
	for _, s := range m.subs {
		if s.OrganizationID == orgID && s.Status == StatusActive {
			sum += s.PricePerMonth
		}
	}
	return sum, nil
}

func (m *MemoryStore) CountDistinctPaidCustomers(_ context.Context, orgID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	customers := make(map[string]bool)
	for _, s := range m.subs {
		if s.OrganizationID == orgID && s.Status == StatusActive && s.PricePerMonth > 0 {
			customers[s.CustomerID] = true
		}
	}
	return int64(len(customers)), nil
}

func (m *MemoryStore) CountCancelledBetween(_ context.Context, orgID string, from, to time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, s := range m.subs {
		if s.OrganizationID != orgID || s.Status != StatusCancelled || s.EndDate == nil {
			continue
		}
		if !s.EndDate.Before(from) && !s.EndDate.After(to) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CountAll(_ context.Context, orgID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, s := range m.subs {
		if s.OrganizationID == orgID {
			count++
		}
	}
	return count, nil
}

func sortByCreatedDesc(subs []*Subscription) {
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
}

var _ Store = (*MemoryStore)(nil)
