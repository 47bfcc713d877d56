package repo

import (
	"context"
	"fmt"

	"ravelon/internal/clock"
	"ravelon/internal/domain"
	"ravelon/internal/infra"
	"ravelon/internal/sqlinline"
)

// GuestUsageRepositoryPG implements domain.GuestUsageStore backed by PostgreSQL.
type GuestUsageRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewGuestUsageRepository(sql infra.SQLExecutor) *GuestUsageRepositoryPG {
	return &GuestUsageRepositoryPG{sql: sql}
}

func (r *GuestUsageRepositoryPG) Get(ctx context.Context, deviceID string) (*domain.GuestUsage, error) {
	var (
		u   domain.GuestUsage
		day string
	)
	row := r.sql.QueryRow(ctx, sqlinline.QSelectGuestUsage, deviceID)
	if err := row.Scan(&u.DeviceID, &day, &u.Count); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	u.Day = clock.Day(day)
	return &u, nil
}

func (r *GuestUsageRepositoryPG) Put(ctx context.Context, u domain.GuestUsage) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QUpsertGuestUsage, u.DeviceID, string(u.Day), u.Count); err != nil {
		return fmt.Errorf("upsert guest usage: %w", err)
	}
	return nil
}

var _ domain.GuestUsageStore = (*GuestUsageRepositoryPG)(nil)
