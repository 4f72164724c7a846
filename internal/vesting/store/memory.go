package store

import (
	"context"
	"fmt"
	"sync"

	"custody/internal/vesting/models"
	id "custody/pkg/domain"
	"custody/pkg/platform/sentinel"
)

// InMemory stores custodians in process memory. It hands out copies so
// callers cannot mutate stored state without Update.
type InMemory struct {
	mu         sync.RWMutex
	custodians map[id.CustodianID]models.Custodian
}

func NewInMemory() *InMemory {
	return &InMemory{custodians: make(map[id.CustodianID]models.Custodian)}
}

func (s *InMemory) Create(_ context.Context, c *models.Custodian) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.custodians[c.ID]; ok {
		return fmt.Errorf("custodian %s: %w", c.ID, sentinel.ErrConflict)
	}
	s.custodians[c.ID] = *c
	return nil
}

func (s *InMemory) FindByID(_ context.Context, custodianID id.CustodianID) (*models.Custodian, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.custodians[custodianID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

func (s *InMemory) Update(_ context.Context, c *models.Custodian) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.custodians[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.custodians[c.ID] = *c
	return nil
}
