package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ravelon/internal/domain"
)

func TestPrincipalStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewPrincipalStore()
	a := &domain.Account{ID: "u-1", Email: "Ann@Example.com", Credits: 3}
	require.NoError(t, s.Put(ctx, a))

	a.Credits = 99
	got, err := s.Get(ctx, "u-1")
	require.NoError(t, err)
	require.Equal(t, 3, got.Credits)

	byEmail, err := s.GetByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	require.Equal(t, "u-1", byEmail.ID)

	require.NoError(t, s.Remove(ctx, "u-1"))
	_, err = s.Get(ctx, "u-1")
	require.True(t, errors.Is(err, domain.ErrNotFound))
	require.ErrorIs(t, s.Remove(ctx, "u-1"), domain.ErrNotFound)
}

func TestRecordStoreNewestFirstAndDetach(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append(ctx, domain.EnhancementRecord{ID: "r1", AccountID: "u-1", CreatedAt: base}))
	require.NoError(t, s.Append(ctx, domain.EnhancementRecord{ID: "r2", AccountID: "u-1", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, s.Append(ctx, domain.EnhancementRecord{ID: "r3", AccountID: "u-2", CreatedAt: base}))

	got, err := s.ListByAccount(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "r2", got[0].ID)

	n, err := s.DetachByAccount(ctx, "u-1", base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	got, err = s.ListByAccount(ctx, "u-1")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestAnalyticsRepositoryAccumulates(t *testing.T) {
	ctx := context.Background()
	r := NewAnalyticsRepository()
	_, err := r.GetSummary(ctx)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, r.IncrementCounters(ctx, "2025-01-01", map[string]int{domain.CounterEnhancements: 1}))
	require.NoError(t, r.IncrementCounters(ctx, "2025-01-02", map[string]int{domain.CounterEnhancements: 2}))
	require.NoError(t, r.IncrementCounters(ctx, "2025-01-02", map[string]int{domain.CounterCreditsGranted: 5}))

	sum, err := r.GetSummary(ctx)
	require.NoError(t, err)
	require.Equal(t, "2025-01-02", sum.Day)
	require.Equal(t, 2, sum.Enhancements)
	require.Equal(t, 5, sum.CreditsGranted)
}
