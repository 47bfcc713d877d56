package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ravelon/internal/domain"
)

// RecordStore is an append-only slice of enhancement records.
type RecordStore struct {
	mu      sync.RWMutex
	records []domain.EnhancementRecord
}

func NewRecordStore() *RecordStore {
	return &RecordStore{}
}

func (s *RecordStore) Append(_ context.Context, record domain.EnhancementRecord) error {
	s.mu.Lock()
	s.records = append(s.records, record)
	s.mu.Unlock()
	return nil
}

func (s *RecordStore) ListByAccount(_ context.Context, accountID string) ([]domain.EnhancementRecord, error) {
	s.mu.RLock()
	var out []domain.EnhancementRecord
	for _, r := range s.records {
		if r.AccountID == accountID && r.DetachedAt == nil {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *RecordStore) DetachByAccount(_ context.Context, accountID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.records {
		if s.records[i].AccountID == accountID && s.records[i].DetachedAt == nil {
			t := at
			s.records[i].DetachedAt = &t
			n++
		}
	}
	return n, nil
}

var _ domain.RecordStore = (*RecordStore)(nil)
