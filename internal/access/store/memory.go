package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"custody/internal/access/models"
	id "custody/pkg/domain"
)

type roleKey struct {
	scope id.CustodianID
	role  models.Role
}

// InMemory keeps role membership in process memory.
type InMemory struct {
	mu      sync.RWMutex
	members map[roleKey]map[id.AccountID]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{members: make(map[roleKey]map[id.AccountID]struct{})}
}

func (s *InMemory) Add(_ context.Context, scope id.CustodianID, role models.Role, account id.AccountID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := roleKey{scope: scope, role: role}
	set, ok := s.members[key]
	if !ok {
		set = make(map[id.AccountID]struct{})
		s.members[key] = set
	}
	if _, exists := set[account]; exists {
		return false, nil
	}
	set[account] = struct{}{}
	return true, nil
}

func (s *InMemory) Remove(_ context.Context, scope id.CustodianID, role models.Role, account id.AccountID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.members[roleKey{scope: scope, role: role}]
	if _, exists := set[account]; !exists {
		return false, nil
	}
	delete(set, account)
	return true, nil
}

func (s *InMemory) Contains(_ context.Context, scope id.CustodianID, role models.Role, account id.AccountID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[roleKey{scope: scope, role: role}][account]
	return ok, nil
}

// Members returns the role's members sorted by id for stable output.
func (s *InMemory) Members(_ context.Context, scope id.CustodianID, role models.Role) ([]id.AccountID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.members[roleKey{scope: scope, role: role}]
	out := make([]id.AccountID, 0, len(set))
	for account := range set {
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool {
		return uuid.UUID(out[i]).String() < uuid.UUID(out[j]).String()
	})
	return out, nil
}
