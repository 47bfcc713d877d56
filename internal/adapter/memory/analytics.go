package memory

import (
	"context"
	"sync"
	"time"

	"ravelon/internal/domain"
)

// AnalyticsRepository aggregates counters per day.
type AnalyticsRepository struct {
	mu   sync.Mutex
	days map[string]*domain.AnalyticsDaily
	now  func() time.Time
}

func NewAnalyticsRepository() *AnalyticsRepository {
	return &AnalyticsRepository{days: make(map[string]*domain.AnalyticsDaily), now: time.Now}
}

func (r *AnalyticsRepository) IncrementCounters(_ context.Context, day string, counters map[string]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.days[day]
	now := r.now().UTC()
	if !ok {
		d = &domain.AnalyticsDaily{Day: day, CreatedAt: now}
		r.days[day] = d
	}
	d.Enhancements += counters[domain.CounterEnhancements]
	d.GuestActions += counters[domain.CounterGuestActions]
	d.CreditsConsumed += counters[domain.CounterCreditsConsumed]
	d.AdRewards += counters[domain.CounterAdRewards]
	d.PlanChanges += counters[domain.CounterPlanChanges]
	d.CreditsGranted += counters[domain.CounterCreditsGranted]
	d.PrincipalsRemoved += counters[domain.CounterPrincipalsRemoved]
	d.Signups += counters[domain.CounterSignups]
	d.UpdatedAt = now
	return nil
}

// GetSummary returns the most recent day.
func (r *AnalyticsRepository) GetSummary(_ context.Context) (*domain.AnalyticsDaily, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.AnalyticsDaily
	for _, d := range r.days {
		if latest == nil || d.Day > latest.Day {
			latest = d
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	out := *latest
	return &out, nil
}

var _ domain.AnalyticsRepository = (*AnalyticsRepository)(nil)
