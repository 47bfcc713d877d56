// Package memory provides in-process implementations of the store contracts.
// They back development runs and tests; state is lost on restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ravelon/internal/domain"
)

// PrincipalStore keeps accounts in a map guarded by a RWMutex. Values are
// copied on the way in and out so callers never share state.
type PrincipalStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
}

// NewPrincipalStore returns an empty store.
func NewPrincipalStore() *PrincipalStore {
	return &PrincipalStore{accounts: make(map[string]domain.Account)}
}

func (s *PrincipalStore) Get(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (s *PrincipalStore) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			a := a
			return &a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *PrincipalStore) Put(_ context.Context, account *domain.Account) error {
	if account == nil || account.ID == "" {
		return domain.ErrUnknownPrincipal
	}
	s.mu.Lock()
	s.accounts[account.ID] = *account
	s.mu.Unlock()
	return nil
}

// ListAll returns accounts ordered by creation time, oldest first.
func (s *PrincipalStore) ListAll(_ context.Context) ([]domain.Account, error) {
	s.mu.RLock()
	out := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *PrincipalStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.accounts, id)
	return nil
}

var _ domain.PrincipalStore = (*PrincipalStore)(nil)
