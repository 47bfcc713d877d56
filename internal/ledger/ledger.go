package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"ravelon/internal/clock"
	"ravelon/internal/domain"
	"ravelon/internal/events"
	"ravelon/internal/metrics"
	"ravelon/internal/plans"
)

// Options wires a Ledger.
type Options struct {
	Catalog    *plans.Catalog
	Principals domain.PrincipalStore
	Guests     domain.GuestUsageStore
	Clock      clock.Clock
	Publisher  events.Publisher
	Logger     *zerolog.Logger
}

// Ledger applies the credit rules and persists the results. Account
// operations take the caller's copy and return the persisted successor;
// the input is never modified.
type Ledger struct {
	catalog    *plans.Catalog
	principals domain.PrincipalStore
	guests     domain.GuestUsageStore
	clock      clock.Clock
	publisher  events.Publisher
	logger     zerolog.Logger
}

// New constructs a Ledger. Catalog, Principals and Guests are required.
func New(opts Options) (*Ledger, error) {
	if opts.Catalog == nil || opts.Principals == nil || opts.Guests == nil {
		return nil, errors.New("ledger: catalog, principal store and guest store are required")
	}
	l := &Ledger{
		catalog:    opts.Catalog,
		principals: opts.Principals,
		guests:     opts.Guests,
		clock:      opts.Clock,
		publisher:  opts.Publisher,
		logger:     zerolog.New(io.Discard),
	}
	if l.clock == nil {
		l.clock = clock.System{}
	}
	if l.publisher == nil {
		l.publisher = events.Nop{}
	}
	if opts.Logger != nil {
		l.logger = opts.Logger.With().Str("component", "ledger").Logger()
	}
	return l, nil
}

// Catalog returns the plan catalog the ledger evaluates against.
func (l *Ledger) Catalog() *plans.Catalog { return l.catalog }

// CurrentBalance is Balance against the ledger's catalog.
func (l *Ledger) CurrentBalance(a domain.Account, today clock.Day) int {
	return Balance(a, today, l.catalog)
}

// ApplyDailyResetIfDue persists the reset when the stored day differs from
// today. Calling it again on the same day is a no-op.
func (l *Ledger) ApplyDailyResetIfDue(ctx context.Context, a domain.Account, today clock.Day) (domain.Account, error) {
	next, due := ResetIfDue(a, today, l.catalog)
	if !due {
		return a, nil
	}
	if err := l.principals.Put(ctx, &next); err != nil {
		return a, fmt.Errorf("ledger: persist reset: %w", err)
	}
	metrics.DailyResets.Inc()
	l.logger.Debug().Str("principal_id", next.ID).Str("day", today.String()).Int("balance", next.Credits).Msg("daily reset applied")
	l.emit(ctx, events.TypeDailyReset, today, func(ev *events.Event) {
		ev.PrincipalID = next.ID
		ev.Plan = next.Plan
		ev.Balance = next.Credits
	})
	return next, nil
}

// Consume spends one credit. It applies a pending reset first and fails with
// ErrInsufficientCredit, leaving the balance untouched, when nothing is left.
func (l *Ledger) Consume(ctx context.Context, a domain.Account, today clock.Day) (domain.Account, error) {
	current, err := l.ApplyDailyResetIfDue(ctx, a, today)
	if err != nil {
		return a, err
	}
	if current.Credits <= 0 {
		metrics.CreditsDenied.WithLabelValues("insufficient_credit").Inc()
		return current, domain.ErrInsufficientCredit
	}
	next := current
	next.Credits--
	if err := l.principals.Put(ctx, &next); err != nil {
		return current, fmt.Errorf("ledger: persist consume: %w", err)
	}
	metrics.CreditsConsumed.WithLabelValues("account").Inc()
	l.logger.Debug().Str("principal_id", next.ID).Str("day", today.String()).Int("balance", next.Credits).Msg("credit consumed")
	l.emit(ctx, events.TypeCreditConsumed, today, func(ev *events.Event) {
		ev.PrincipalID = next.ID
		ev.Plan = next.Plan
		ev.Amount = 1
		ev.Balance = next.Credits
	})
	return next, nil
}

// Refund gives back the credit taken by a Consume whose follow-up work could
// not be committed.
func (l *Ledger) Refund(ctx context.Context, a domain.Account) (domain.Account, error) {
	return l.credit(ctx, a, 1, events.TypeCreditRefunded, "")
}

// Reward adds amount credits without looking at the day boundary.
func (l *Ledger) Reward(ctx context.Context, a domain.Account, amount int) (domain.Account, error) {
	return l.credit(ctx, a, amount, events.TypeCreditRewarded, "")
}

// Grant is the administrative form of Reward; actorID is recorded on the event.
func (l *Ledger) Grant(ctx context.Context, a domain.Account, amount int, actorID string) (domain.Account, error) {
	return l.credit(ctx, a, amount, events.TypeCreditsGranted, actorID)
}

func (l *Ledger) credit(ctx context.Context, a domain.Account, amount int, typ events.Type, actorID string) (domain.Account, error) {
	if amount <= 0 {
		return a, domain.ErrInvalidAmount
	}
	next := a
	next.Credits += amount
	if err := l.principals.Put(ctx, &next); err != nil {
		return a, fmt.Errorf("ledger: persist credit: %w", err)
	}
	source := "reward"
	switch typ {
	case events.TypeCreditsGranted:
		source = "grant"
	case events.TypeCreditRefunded:
		source = "refund"
	}
	metrics.CreditsAdded.WithLabelValues(source).Add(float64(amount))
	l.logger.Debug().Str("principal_id", next.ID).Str("source", source).Int("amount", amount).Int("balance", next.Credits).Msg("credits added")
	l.emit(ctx, typ, l.dayOf(next), func(ev *events.Event) {
		ev.PrincipalID = next.ID
		ev.ActorID = actorID
		ev.Plan = next.Plan
		ev.Amount = amount
		ev.Balance = next.Credits
	})
	return next, nil
}

// RecordAdReward completes one reward ad: it brings the balance up to date for
// today, enforces the per-day reward cap stored on the account and adds the
// reward, all in a single write.
func (l *Ledger) RecordAdReward(ctx context.Context, a domain.Account, today clock.Day) (domain.Account, error) {
	next, _ := ResetIfDue(a, today, l.catalog)
	if RewardsRemaining(next, today) == 0 {
		return a, domain.ErrRewardLimitReached
	}
	if next.RewardDay != today {
		next.RewardDay = today
		next.RewardsToday = 0
	}
	next.RewardsToday++
	next.Credits += plans.AdWatchReward
	if err := l.principals.Put(ctx, &next); err != nil {
		return a, fmt.Errorf("ledger: persist ad reward: %w", err)
	}
	metrics.CreditsAdded.WithLabelValues("reward").Add(plans.AdWatchReward)
	l.logger.Debug().Str("principal_id", next.ID).Int("rewards_today", next.RewardsToday).Int("balance", next.Credits).Msg("ad reward granted")
	l.emit(ctx, events.TypeCreditRewarded, today, func(ev *events.Event) {
		ev.PrincipalID = next.ID
		ev.Plan = next.Plan
		ev.Amount = plans.AdWatchReward
		ev.Balance = next.Credits
	})
	return next, nil
}

// ChangePlan moves the account to plan and replaces the balance with the new
// allotment. Prior credits, including rewards and grants, are discarded.
func (l *Ledger) ChangePlan(ctx context.Context, a domain.Account, plan domain.PlanID, today clock.Day) (domain.Account, error) {
	if err := l.catalog.Validate(plan); err != nil {
		return a, err
	}
	next := a
	next.Plan = plan
	next.Credits = l.catalog.Allotment(plan)
	next.LastCreditReset = today
	if err := l.principals.Put(ctx, &next); err != nil {
		return a, fmt.Errorf("ledger: persist plan change: %w", err)
	}
	metrics.PlanChanges.WithLabelValues(string(plan)).Inc()
	l.logger.Info().Str("principal_id", next.ID).Str("from", string(a.Plan)).Str("to", string(plan)).Msg("plan changed")
	l.emit(ctx, events.TypePlanChanged, today, func(ev *events.Event) {
		ev.PrincipalID = next.ID
		ev.Plan = plan
		ev.Balance = next.Credits
	})
	return next, nil
}

// GuestRemaining reports the allowance left for deviceID on today.
func (l *Ledger) GuestRemaining(ctx context.Context, deviceID string, today clock.Day) (int, error) {
	u, err := l.guestUsage(ctx, deviceID)
	if err != nil {
		return 0, err
	}
	return GuestRemaining(u, today), nil
}

// GuestConsume spends one unit of the guest allowance and returns what is
// left. It fails with ErrGuestLimitReached once the daily limit is used up.
func (l *Ledger) GuestConsume(ctx context.Context, deviceID string, today clock.Day) (int, error) {
	u, err := l.guestUsage(ctx, deviceID)
	if err != nil {
		return 0, err
	}
	if GuestRemaining(u, today) == 0 {
		metrics.CreditsDenied.WithLabelValues("guest_limit").Inc()
		return 0, domain.ErrGuestLimitReached
	}
	next := domain.GuestUsage{DeviceID: deviceID, Day: today, Count: 1}
	if u != nil && !u.Day.Before(today) {
		next.Day = u.Day
		next.Count = u.Count + 1
	}
	if err := l.guests.Put(ctx, next); err != nil {
		return 0, fmt.Errorf("ledger: persist guest usage: %w", err)
	}
	remaining := GuestRemaining(&next, today)
	metrics.CreditsConsumed.WithLabelValues("guest").Inc()
	l.emit(ctx, events.TypeGuestConsumed, today, func(ev *events.Event) {
		ev.DeviceID = deviceID
		ev.Amount = 1
		ev.Balance = remaining
	})
	return remaining, nil
}

func (l *Ledger) guestUsage(ctx context.Context, deviceID string) (*domain.GuestUsage, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: empty device id", domain.ErrUnknownPrincipal)
	}
	u, err := l.guests.Get(ctx, deviceID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: load guest usage: %w", err)
	}
	return u, nil
}

func (l *Ledger) dayOf(a domain.Account) clock.Day {
	return clock.DayOf(l.clock.Now(), a.Location())
}

func (l *Ledger) emit(ctx context.Context, typ events.Type, day clock.Day, fill func(*events.Event)) {
	ev := events.New(typ, day.String(), l.clock.Now())
	fill(&ev)
	if err := l.publisher.Publish(ctx, ev); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		l.logger.Warn().Err(err).Str("event", string(typ)).Msg("publish ledger event failed")
		return
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
}
