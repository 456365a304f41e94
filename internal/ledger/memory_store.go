package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pulseboard/pulseboard/internal/pagination"
)

// MemoryStore is an in-memory transaction store for demo/development.
type MemoryStore struct {
	mu   sync.RWMutex
	txns []*Transaction
}

// NewMemoryStore creates a new in-memory transaction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Create(_ context.Context, t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *t
	m.txns = append(m.txns, &cp)
	return nil
}

func (m *MemoryStore) List(_ context.Context, orgID string, f Filter, pg pagination.Params) ([]*Transaction, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Transaction
	for _, t := range m.txns {
		if !m.matches(t, orgID, f) {
			continue
		}
		cp := *t
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := pg.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pg.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m *MemoryStore) matches(t *Transaction, orgID string, f Filter) bool {
	if t.OrganizationID != orgID {
		return false
	}
	if f.CustomerID != "" && t.CustomerID != f.CustomerID {
		return false
	}
	if f.SubscriptionID != "" && t.SubscriptionID != f.SubscriptionID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && t.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.CreatedAt.After(f.To) {
		return false
	}
	return true
}

func (m *MemoryStore) SumSucceededBetween(_ context.Context, orgID string, from, to time.Time) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sum float64
	for _, t := range m.txns {
		if t.OrganizationID == orgID && t.Status == StatusSuccess &&
			!t.CreatedAt.Before(from) && !t.CreatedAt.After(to) {
			sum += t.Amount
		}
	}
	return sum, nil
}

func (m *MemoryStore) RevenueSeries(_ context.Context, orgID, groupBy string, from, to time.Time) (map[string]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	series := make(map[string]float64)
	for _, t := range m.txns {
		if t.OrganizationID != orgID || t.Status != StatusSuccess ||
			t.CreatedAt.Before(from) || t.CreatedAt.After(to) {
			continue
		}
		key := t.CreatedAt.UTC().Format("2006-01-02")
		if groupBy == "month" {
			key = t.CreatedAt.UTC().Format("2006-01")
		}
		series[key] += t.Amount
	}
	return series, nil
}

var _ Store = (*MemoryStore)(nil)
