package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"ravelon/internal/clock"
	"ravelon/internal/domain"
	"ravelon/internal/sqlinline"
)

var (
	created = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	login   = time.Date(2025, 1, 5, 6, 0, 0, 0, time.UTC)
)

func principalRow(id, email string, credits int) []any {
	return []any{id, email, "Name " + id, "USER", "FREE", credits, "2025-01-05", "", 0, "Africa/Johannesburg", login, created}
}

func TestPrincipalGet(t *testing.T) {
	exec := &stubExecutor{row: principalRow("p-1", "a@example.com", 2)}
	repo := NewPrincipalRepository(exec)

	a, err := repo.Get(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if a.Plan != domain.PlanFree || a.Role != domain.RoleUser || a.Credits != 2 {
		t.Fatalf("unexpected account %#v", a)
	}
	if a.LastCreditReset != clock.Day("2025-01-05") || a.TimeZone != "Africa/Johannesburg" {
		t.Fatalf("unexpected day fields %#v", a)
	}
	if exec.calls[0].query != sqlinline.QSelectPrincipalByID || exec.calls[0].args[0] != "p-1" {
		t.Fatalf("unexpected call %#v", exec.calls[0])
	}
}

func TestPrincipalGetNotFound(t *testing.T) {
	repo := NewPrincipalRepository(&stubExecutor{rowErr: pgx.ErrNoRows})
	if _, err := repo.GetByEmail(context.Background(), "x@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPrincipalPut(t *testing.T) {
	exec := &stubExecutor{affected: 1}
	repo := NewPrincipalRepository(exec)
	a := &domain.Account{
		ID: "p-1", Email: "a@example.com", Role: domain.RoleAdmin, Plan: domain.PlanPremiumYearly,
		Credits: 10000, LastCreditReset: "2025-01-05", RewardDay: "2025-01-04", RewardsToday: 2,
		LastLogin: login, CreatedAt: created,
	}
	if err := repo.Put(context.Background(), a); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	args := exec.calls[0].args
	if len(args) != 12 {
		t.Fatalf("expected 12 args, got %d", len(args))
	}
	if args[3] != "ADMIN" || args[4] != "PREMIUM_YEARLY" || args[6] != "2025-01-05" || args[7] != "2025-01-04" {
		t.Fatalf("unexpected args %#v", args)
	}
	if err := repo.Put(context.Background(), &domain.Account{}); !errors.Is(err, domain.ErrUnknownPrincipal) {
		t.Fatalf("expected ErrUnknownPrincipal, got %v", err)
	}
}

func TestPrincipalListAll(t *testing.T) {
	exec := &stubExecutor{rows: [][]any{
		principalRow("p-1", "a@example.com", 3),
		principalRow("p-2", "b@example.com", 0),
	}}
	repo := NewPrincipalRepository(exec)
	list, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll error: %v", err)
	}
	if len(list) != 2 || list[1].ID != "p-2" {
		t.Fatalf("unexpected list %#v", list)
	}
}

func TestPrincipalRemove(t *testing.T) {
	repo := NewPrincipalRepository(&stubExecutor{affected: 0})
	if err := repo.Remove(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	repo = NewPrincipalRepository(&stubExecutor{affected: 1})
	if err := repo.Remove(context.Background(), "p-1"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
}

func TestGuestUsageRoundTrip(t *testing.T) {
	exec := &stubExecutor{row: []any{"dev-1", "2025-01-05", 2}}
	repo := NewGuestUsageRepository(exec)

	u, err := repo.Get(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if u.Day != "2025-01-05" || u.Count != 2 {
		t.Fatalf("unexpected usage %#v", u)
	}
	if err := repo.Put(context.Background(), domain.GuestUsage{DeviceID: "dev-1", Day: "2025-01-06", Count: 1}); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if got := exec.calls[1].args; got[1] != "2025-01-06" || got[2] != 1 {
		t.Fatalf("unexpected put args %#v", got)
	}

	repo = NewGuestUsageRepository(&stubExecutor{})
	if _, err := repo.Get(context.Background(), "dev-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordRepository(t *testing.T) {
	exec := &stubExecutor{
		rows: [][]any{
			{"r-2", "p-1", "in/2", "out/2", login, nil},
			{"r-1", "p-1", "in/1", "out/1", created, nil},
		},
		affected: 2,
	}
	repo := NewRecordRepository(exec)
	ctx := context.Background()

	if err := repo.Append(ctx, domain.EnhancementRecord{ID: "r-3", AccountID: "p-1", CreatedAt: login}); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	list, err := repo.ListByAccount(ctx, "p-1")
	if err != nil {
		t.Fatalf("ListByAccount error: %v", err)
	}
	if len(list) != 2 || list[0].ID != "r-2" || list[0].DetachedAt != nil {
		t.Fatalf("unexpected records %#v", list)
	}
	n, err := repo.DetachByAccount(ctx, "p-1", login)
	if err != nil || n != 2 {
		t.Fatalf("DetachByAccount = %d, %v", n, err)
	}
	for _, c := range exec.calls {
		if !strings.HasPrefix(c.query, "--sql ") {
			t.Fatalf("query without marker: %q", c.query)
		}
	}
}

func TestAnalyticsIncrement(t *testing.T) {
	exec := &stubExecutor{affected: 1}
	repo := NewAnalyticsRepository(exec)
	err := repo.IncrementCounters(context.Background(), "2025-01-05", map[string]int{
		domain.CounterEnhancements:   2,
		domain.CounterCreditsGranted: 5,
	})
	if err != nil {
		t.Fatalf("IncrementCounters error: %v", err)
	}
	args := exec.calls[0].args
	if args[0] != "2025-01-05" || args[1] != 2 || args[6] != 5 || args[8] != 0 {
		t.Fatalf("unexpected args %#v", args)
	}
}

func TestAnalyticsSummaryEmpty(t *testing.T) {
	repo := NewAnalyticsRepository(&stubExecutor{})
	if _, err := repo.GetSummary(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
