package customer

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pulseboard/pulseboard/internal/pagination"
)

// MemoryStore is an in-memory customer store for demo/development.
type MemoryStore struct {
	mu        sync.RWMutex
	customers map[string]*Customer
}

// NewMemoryStore creates a new in-memory customer store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{customers: make(map[string]*Customer)}
}

func (m *MemoryStore) Create(_ context.Context, c *Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.customers {
		if existing.OrganizationID == c.OrganizationID && strings.EqualFold(existing.Email, c.Email) {
			return ErrEmailTaken
		}
	}

	cp := *c
	m.customers[c.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, orgID, id string) (*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.customers[id]
	if !ok || c.OrganizationID != orgID {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, c *Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.customers[c.ID]
	if !ok || existing.OrganizationID != c.OrganizationID {
		return ErrNotFound
	}
	for id, other := range m.customers {
		if id != c.ID && other.OrganizationID == c.OrganizationID && strings.EqualFold(other.Email, c.Email) {
			return ErrEmailTaken
		}
	}
	cp := *c
	m.customers[c.ID] = &cp
	return nil
}

func (m *MemoryStore) List(_ context.Context, orgID string, f Filter, pg pagination.Params) ([]*Customer, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Customer
	search := strings.ToLower(f.Search)
	for _, c := range m.customers {
		if c.OrganizationID != orgID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Name), search) &&
			!strings.Contains(strings.ToLower(c.Email), search) {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Region != "" && c.Region != f.Region {
			continue
		}
		cp := *c
		matched = append(matched, &cp)
	}

	sortCustomers(matched, f.SortBy, f.SortOrder)

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

func (m *MemoryStore) TouchLastActive(_ context.Context, orgID, id string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.customers[id]
	if !ok || c.OrganizationID != orgID {
		return ErrNotFound
	}
	c.LastActiveAt = t
	c.UpdatedAt = t
	return nil
}

func (m *MemoryStore) Count(_ context.Context, orgID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, c := range m.customers {
		if c.OrganizationID == orgID {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CountActiveSince(_ context.Context, orgID string, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, c := range m.customers {
		if c.OrganizationID == orgID && !c.LastActiveAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CountSignedUpBefore(_ context.Context, orgID string, before time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, c := range m.customers {
		if c.OrganizationID == orgID && !c.SignupDate.After(before) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CountActiveBetween(_ context.Context, orgID string, from, to time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, c := range m.customers {
		if c.OrganizationID == orgID && !c.LastActiveAt.Before(from) && !c.LastActiveAt.After(to) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) SignupSeries(_ context.Context, orgID, groupBy string, from, to time.Time) (map[string]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	series := make(map[string]float64)
	for _, c := range m.customers {
		if c.OrganizationID != orgID || c.SignupDate.Before(from) || c.SignupDate.After(to) {
			continue
		}
		series[bucketKey(c.SignupDate, groupBy)]++
	}
	return series, nil
}

func (m *MemoryStore) Cohorts(_ context.Context, orgID string, activeSince time.Time) ([]Cohort, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byMonth := make(map[string]*Cohort)
	for _, c := range m.customers {
		if c.OrganizationID != orgID {
			continue
		}
		month := c.SignupDate.UTC().Format("2006-01")
		cohort, ok := byMonth[month]
		if !ok {
			cohort = &Cohort{Month: month}
			byMonth[month] = cohort
		}
		cohort.SignedUp++
		if !c.LastActiveAt.Before(activeSince) {
			cohort.Returning++
		}
	}

	cohorts := make([]Cohort, 0, len(byMonth))
	for _, c := range byMonth {
		cohorts = append(cohorts, *c)
	}
	sort.Slice(cohorts, func(i, j int) bool { return cohorts[i].Month < cohorts[j].Month })
	return cohorts, nil
}

// bucketKey truncates a timestamp to its UTC day or month bucket.
func bucketKey(t time.Time, groupBy string) string {
	if groupBy == "month" {
		return t.UTC().Format("2006-01")
	}
	return t.UTC().Format("2006-01-02")
}

func sortCustomers(customers []*Customer, sortBy, sortOrder string) {
	asc := sortOrder == "asc"
	less := func(i, j *Customer) bool {
		switch sortBy {
		case "name":
			return i.Name < j.Name
		case "email":
			return i.Email < j.Email
		case "status":
			return i.Status < j.Status
		case "region":
			return i.Region < j.Region
		case "lastActiveAt":
			return i.LastActiveAt.Before(j.LastActiveAt)
		case "createdAt":
			return i.CreatedAt.Before(j.CreatedAt)
		default:
			return i.SignupDate.Before(j.SignupDate)
		}
	}
	sort.Slice(customers, func(i, j int) bool {
		if asc {
			return less(customers[i], customers[j])
		}
		return less(customers[j], customers[i])
	})
}

var _ Store = (*MemoryStore)(nil)
