package events

import (
	"context"

	"ravelon/internal/domain"
)

// CountInto returns a Handler that adds the event's counters to repo.
func CountInto(repo domain.AnalyticsRepository) Handler {
	return func(ctx context.Context, ev Event) error {
		counters := ev.Counters()
		if len(counters) == 0 {
			return nil
		}
		return repo.IncrementCounters(ctx, ev.Day, counters)
	}
}

// Inline publishes by calling a Handler in-process. It stands in for the
// broker when none is configured.
type Inline Handler

func (h Inline) Publish(ctx context.Context, ev Event) error {
	return h(ctx, ev)
}

var _ Publisher = Inline(nil)
