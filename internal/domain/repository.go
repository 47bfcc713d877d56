package domain

import (
	"context"
	"time"
)

// PrincipalStore persists accounts. Get and GetByEmail return ErrNotFound
// for unknown keys.
type PrincipalStore interface {
	Get(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Put(ctx context.Context, account *Account) error
	ListAll(ctx context.Context) ([]Account, error)
	Remove(ctx context.Context, id string) error
}

// GuestUsageStore persists per-device guest counters. Get returns
// ErrNotFound when the device has no usage yet.
type GuestUsageStore interface {
	Get(ctx context.Context, deviceID string) (*GuestUsage, error)
	Put(ctx context.Context, usage GuestUsage) error
}

// RecordStore holds enhancement history.
type RecordStore interface {
	Append(ctx context.Context, record EnhancementRecord) error
	// ListByAccount returns attached records, newest first.
	ListByAccount(ctx context.Context, accountID string) ([]EnhancementRecord, error)
	DetachByAccount(ctx context.Context, accountID string, at time.Time) (int, error)
}

// AnalyticsRepository updates daily counters.
type AnalyticsRepository interface {
	IncrementCounters(ctx context.Context, day string, counters map[string]int) error
	GetSummary(ctx context.Context) (*AnalyticsDaily, error)
}
