package memory

import (
	"context"
	"sync"

	"ravelon/internal/domain"
)

// GuestUsageStore keeps one counter per device.
type GuestUsageStore struct {
	mu    sync.Mutex
	usage map[string]domain.GuestUsage
}

func NewGuestUsageStore() *GuestUsageStore {
	return &GuestUsageStore{usage: make(map[string]domain.GuestUsage)}
}

func (s *GuestUsageStore) Get(_ context.Context, deviceID string) (*domain.GuestUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usage[deviceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (s *GuestUsageStore) Put(_ context.Context, usage domain.GuestUsage) error {
	s.mu.Lock()
	s.usage[usage.DeviceID] = usage
	s.mu.Unlock()
	return nil
}

var _ domain.GuestUsageStore = (*GuestUsageStore)(nil)
