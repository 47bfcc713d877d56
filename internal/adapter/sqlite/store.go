// Package sqlite persists principals, guest usage, enhancement records and
// daily analytics in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"ravelon/internal/clock"
	"ravelon/internal/domain"
	"ravelon/internal/infra"
)

// Store implements every domain store contract on one database handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, logger zerolog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	dsn := path + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := infra.MigrateSQLite(ctx, db, logger); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, errors.Join(err, fmt.Errorf("close sqlite db after migration failure: %w", closeErr))
		}
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Principals returns the account store view.
func (s *Store) Principals() *PrincipalStore { return &PrincipalStore{db: s.db} }

// Guests returns the guest usage store view.
func (s *Store) Guests() *GuestUsageStore { return &GuestUsageStore{db: s.db} }

// Records returns the enhancement record store view.
func (s *Store) Records() *RecordStore { return &RecordStore{db: s.db} }

// Analytics returns the daily analytics view.
func (s *Store) Analytics() *AnalyticsRepository { return &AnalyticsRepository{db: s.db} }

type PrincipalStore struct{ db *sql.DB }

func (s *PrincipalStore) Get(ctx context.Context, id string) (*domain.Account, error) {
	return scanPrincipal(s.db.QueryRowContext(ctx, qSelectPrincipalByID, id))
}

func (s *PrincipalStore) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return scanPrincipal(s.db.QueryRowContext(ctx, qSelectPrincipalByEmail, email))
}

func (s *PrincipalStore) Put(ctx context.Context, a *domain.Account) error {
	if a == nil || a.ID == "" {
		return domain.ErrUnknownPrincipal
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, qUpsertPrincipal,
		a.ID, a.Email, a.Name, string(a.Role), string(a.Plan), a.Credits,
		string(a.LastCreditReset), string(a.RewardDay), a.RewardsToday, a.TimeZone,
		toUnix(a.LastLogin), toUnix(createdAt),
	)
	if err != nil {
		return fmt.Errorf("upsert principal: %w", err)
	}
	return nil
}

func (s *PrincipalStore) ListAll(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx, qListPrincipals)
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PrincipalStore) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, qDeletePrincipal, id)
	if err != nil {
		return fmt.Errorf("delete principal: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row scanner) (*domain.Account, error) {
	var (
		a                       domain.Account
		role, plan, reset, rday string
		lastLogin, createdAt    int64
	)
	err := row.Scan(&a.ID, &a.Email, &a.Name, &role, &plan, &a.Credits, &reset, &rday, &a.RewardsToday, &a.TimeZone, &lastLogin, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan principal: %w", err)
	}
	a.Role = domain.Role(role)
	a.Plan = domain.PlanID(plan)
	a.LastCreditReset = clock.Day(reset)
	a.RewardDay = clock.Day(rday)
	a.LastLogin = fromUnix(lastLogin)
	a.CreatedAt = fromUnix(createdAt)
	return &a, nil
}

type GuestUsageStore struct{ db *sql.DB }

func (s *GuestUsageStore) Get(ctx context.Context, deviceID string) (*domain.GuestUsage, error) {
	var (
		u   domain.GuestUsage
		day string
	)
	err := s.db.QueryRowContext(ctx, qSelectGuestUsage, deviceID).Scan(&u.DeviceID, &day, &u.Count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan guest usage: %w", err)
	}
	u.Day = clock.Day(day)
	return &u, nil
}

func (s *GuestUsageStore) Put(ctx context.Context, u domain.GuestUsage) error {
	if _, err := s.db.ExecContext(ctx, qUpsertGuestUsage, u.DeviceID, string(u.Day), u.Count); err != nil {
		return fmt.Errorf("upsert guest usage: %w", err)
	}
	return nil
}

type RecordStore struct{ db *sql.DB }

func (s *RecordStore) Append(ctx context.Context, r domain.EnhancementRecord) error {
	if _, err := s.db.ExecContext(ctx, qInsertRecord, r.ID, r.AccountID, r.InputRef, r.OutputRef, toUnix(r.CreatedAt)); err != nil {
		return fmt.Errorf("insert enhancement record: %w", err)
	}
	return nil
}

func (s *RecordStore) ListByAccount(ctx context.Context, accountID string) ([]domain.EnhancementRecord, error) {
	rows, err := s.db.QueryContext(ctx, qListRecords, accountID)
	if err != nil {
		return nil, fmt.Errorf("list enhancement records: %w", err)
	}
	defer rows.Close()

	var out []domain.EnhancementRecord
	for rows.Next() {
		var (
			r       domain.EnhancementRecord
			created int64
		)
		if err := rows.Scan(&r.ID, &r.AccountID, &r.InputRef, &r.OutputRef, &created); err != nil {
			return nil, fmt.Errorf("scan enhancement record: %w", err)
		}
		r.CreatedAt = fromUnix(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *RecordStore) DetachByAccount(ctx context.Context, accountID string, at time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, qDetachRecords, toUnix(at), accountID)
	if err != nil {
		return 0, fmt.Errorf("detach enhancement records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

type AnalyticsRepository struct{ db *sql.DB }

func (r *AnalyticsRepository) IncrementCounters(ctx context.Context, day string, counters map[string]int) error {
	now := toUnix(time.Now())
	_, err := r.db.ExecContext(ctx, qIncrementAnalytics,
		day,
		counters[domain.CounterEnhancements],
		counters[domain.CounterGuestActions],
		counters[domain.CounterCreditsConsumed],
		counters[domain.CounterAdRewards],
		counters[domain.CounterPlanChanges],
		counters[domain.CounterCreditsGranted],
		counters[domain.CounterPrincipalsRemoved],
		counters[domain.CounterSignups],
		now, now,
	)
	if err != nil {
		return fmt.Errorf("increment analytics: %w", err)
	}
	return nil
}

func (r *AnalyticsRepository) GetSummary(ctx context.Context) (*domain.AnalyticsDaily, error) {
	var (
		s                  domain.AnalyticsDaily
		created, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, qSelectLatestAnalytics).Scan(
		&s.Day, &s.Enhancements, &s.GuestActions, &s.CreditsConsumed, &s.AdRewards,
		&s.PlanChanges, &s.CreditsGranted, &s.PrincipalsRemoved, &s.Signups, &created, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan analytics: %w", err)
	}
	s.CreatedAt = fromUnix(created)
	s.UpdatedAt = fromUnix(updatedAt)
	return &s, nil
}

// Timestamps are stored as unix nanoseconds so record ordering survives
// sub-second inserts.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

var (
	_ domain.PrincipalStore      = (*PrincipalStore)(nil)
	_ domain.GuestUsageStore     = (*GuestUsageStore)(nil)
	_ domain.RecordStore         = (*RecordStore)(nil)
	_ domain.AnalyticsRepository = (*AnalyticsRepository)(nil)
)
