package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ravelon/internal/adapter/memory"
	"ravelon/internal/clock"
	"ravelon/internal/domain"
	"ravelon/internal/ledger"
	"ravelon/internal/plans"
)

func newService(t *testing.T) (*Service, *clock.Manual, *memory.PrincipalStore) {
	t.Helper()
	c := clock.NewManual(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	principals := memory.NewPrincipalStore()
	l, err := ledger.New(ledger.Options{
		Catalog:    plans.Default(),
		Principals: principals,
		Guests:     memory.NewGuestUsageStore(),
		Clock:      c,
	})
	require.NoError(t, err)
	s, err := New(Options{
		Ledger:      l,
		Principals:  principals,
		Clock:       c,
		AdminEmails: []string{"Admin@Ravelon.com"},
	})
	require.NoError(t, err)
	return s, c, principals
}

func TestLoginCreatesFreeAccount(t *testing.T) {
	s, _, _ := newService(t)

	p, err := s.Login(context.Background(), "Lerato@Example.com", "Lerato", "")
	require.NoError(t, err)
	require.Equal(t, "lerato@example.com", p.Account.Email)
	require.Equal(t, domain.PlanFree, p.Account.Plan)
	require.Equal(t, domain.RoleUser, p.Account.Role)
	require.Equal(t, 3, p.Balance)
	require.Equal(t, clock.Day("2025-03-10"), p.Account.LastCreditReset)
	require.True(t, p.AdGated)
	require.Equal(t, plans.MaxAdRewardsPerDay, p.RewardsRemaining)
}

func TestLoginLoadsExistingAccount(t *testing.T) {
	s, c, principals := newService(t)
	ctx := context.Background()

	first, err := s.Login(ctx, "lerato@example.com", "Lerato", "")
	require.NoError(t, err)

	stored, err := principals.Get(ctx, first.Account.ID)
	require.NoError(t, err)
	stored.Credits = 0
	require.NoError(t, principals.Put(ctx, stored))

	c.Advance(time.Hour)
	again, err := s.Login(ctx, "LERATO@example.com", "Other", "")
	require.NoError(t, err)
	require.Equal(t, first.Account.ID, again.Account.ID)
	require.Equal(t, 0, again.Balance)
	require.Equal(t, "Lerato", again.Account.Name)

	c.Advance(24 * time.Hour)
	nextDay, err := s.Login(ctx, "lerato@example.com", "", "")
	require.NoError(t, err)
	require.Equal(t, 3, nextDay.Balance)
}

func TestLoginAdminEmail(t *testing.T) {
	s, _, _ := newService(t)
	p, err := s.Login(context.Background(), "admin@ravelon.com", "", "")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, p.Account.Role)
	require.Equal(t, "admin", p.Account.Name)
}

func TestLoginRejectsInvalidEmail(t *testing.T) {
	s, _, _ := newService(t)
	_, err := s.Login(context.Background(), "not-an-email", "x", "")
	require.ErrorIs(t, err, ErrInvalidEmail)
}

func TestLoginStoresValidZone(t *testing.T) {
	s, _, _ := newService(t)
	p, err := s.Login(context.Background(), "sipho@example.com", "", "Africa/Johannesburg")
	require.NoError(t, err)
	require.Equal(t, "Africa/Johannesburg", p.Account.TimeZone)

	q, err := s.Login(context.Background(), "anele@example.com", "", "Mars/Olympus")
	require.NoError(t, err)
	require.Equal(t, "UTC", q.Account.TimeZone)

	again, err := s.Login(context.Background(), "sipho@example.com", "", "Asia/Tokyo")
	require.NoError(t, err)
	require.Equal(t, "Africa/Johannesburg", again.Account.TimeZone)
}

func TestLoginPinsUnsetZoneToUTC(t *testing.T) {
	s, _, principals := newService(t)
	ctx := context.Background()
	p, err := s.Login(ctx, "thabo@example.com", "", "")
	require.NoError(t, err)

	stored, err := principals.Get(ctx, p.Account.ID)
	require.NoError(t, err)
	stored.TimeZone = ""
	require.NoError(t, principals.Put(ctx, stored))

	again, err := s.Login(ctx, "thabo@example.com", "", "Asia/Tokyo")
	require.NoError(t, err)
	require.Equal(t, "UTC", again.Account.TimeZone)
}

func TestSubscribeReplacesBalance(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()
	p, err := s.Login(ctx, "lerato@example.com", "", "")
	require.NoError(t, err)

	up, err := s.Subscribe(ctx, p.Account.ID, domain.PlanPremiumMonthly)
	require.NoError(t, err)
	require.Equal(t, plans.UnlimitedAllotment, up.Balance)
	require.False(t, up.AdGated)

	_, err = s.Subscribe(ctx, p.Account.ID, domain.PlanPremiumMonthly)
	require.ErrorIs(t, err, domain.ErrSamePlan)

	_, err = s.Subscribe(ctx, p.Account.ID, "GOLD")
	require.ErrorIs(t, err, domain.ErrUnsupportedPlan)

	down, err := s.Subscribe(ctx, p.Account.ID, domain.PlanFree)
	require.NoError(t, err)
	require.Equal(t, 3, down.Balance)
}

func TestRefreshUnknown(t *testing.T) {
	s, _, _ := newService(t)
	_, err := s.Refresh(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrUnknownPrincipal)
}
