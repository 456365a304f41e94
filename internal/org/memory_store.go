package org

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory organization store for demo/development.
type MemoryStore struct {
	mu   sync.RWMutex
	orgs map[string]*Organization
}

// NewMemoryStore creates a new in-memory organization store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orgs: make(map[string]*Organization)}
}

func (m *MemoryStore) Create(_ context.Context, o *Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *o
	m.orgs[o.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, o *Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orgs[o.ID]; !ok {
		return ErrNotFound
	}
	cp := *o
	m.orgs[o.ID] = &cp
	return nil
}

var _ Store = (*MemoryStore)(nil)
