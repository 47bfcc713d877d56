package repo

import (
	"context"

	"ravelon/internal/domain"
	"ravelon/internal/infra"
	"ravelon/internal/sqlinline"
)

// AnalyticsRepositoryPG implements AnalyticsRepository using PostgreSQL.
type AnalyticsRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewAnalyticsRepository constructs the repository.
func NewAnalyticsRepository(sql infra.SQLExecutor) *AnalyticsRepositoryPG {
	return &AnalyticsRepositoryPG{sql: sql}
}

// IncrementCounters upserts counters for the provided day.
func (r *AnalyticsRepositoryPG) IncrementCounters(ctx context.Context, day string, counters map[string]int) error {
	_, err := r.sql.Exec(ctx, sqlinline.QIncrementAnalyticsDaily,
		day,
		counters[domain.CounterEnhancements],
		counters[domain.CounterGuestActions],
		counters[domain.CounterCreditsConsumed],
		counters[domain.CounterAdRewards],
		counters[domain.CounterPlanChanges],
		counters[domain.CounterCreditsGranted],
		counters[domain.CounterPrincipalsRemoved],
		counters[domain.CounterSignups],
	)
	return err
}

// GetSummary returns the most recent day.
func (r *AnalyticsRepositoryPG) GetSummary(ctx context.Context) (*domain.AnalyticsDaily, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectLatestAnalyticsDaily)

	var summary domain.AnalyticsDaily
	if err := row.Scan(
		&summary.Day,
		&summary.Enhancements,
		&summary.GuestActions,
		&summary.CreditsConsumed,
		&summary.AdRewards,
		&summary.PlanChanges,
		&summary.CreditsGranted,
		&summary.PrincipalsRemoved,
		&summary.Signups,
		&summary.CreatedAt,
		&summary.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &summary, nil
}

var _ domain.AnalyticsRepository = (*AnalyticsRepositoryPG)(nil)
