// Package admin holds the privileged mutations available to ADMIN accounts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"ravelon/internal/clock"
	"ravelon/internal/domain"
	"ravelon/internal/events"
	"ravelon/internal/ledger"
	"ravelon/internal/metrics"
)

// SystemActorID identifies mutations issued from the operator CLI.
const SystemActorID = "system"

// SystemActor is the admin identity used by creditctl.
func SystemActor() *domain.Account {
	return &domain.Account{ID: SystemActorID, Email: "system@localhost", Name: "creditctl", Role: domain.RoleAdmin}
}

// Controls wires the admin surface to the stores and the ledger.
type Controls struct {
	principals domain.PrincipalStore
	records    domain.RecordStore
	ledger     *ledger.Ledger
	clock      clock.Clock
	publisher  events.Publisher
	logger     zerolog.Logger
}

// NewControls constructs Controls. publisher and logger may be nil.
func NewControls(principals domain.PrincipalStore, records domain.RecordStore, l *ledger.Ledger, c clock.Clock, publisher events.Publisher, logger *zerolog.Logger) *Controls {
	ctl := &Controls{
		principals: principals,
		records:    records,
		ledger:     l,
		clock:      c,
		publisher:  publisher,
		logger:     zerolog.New(io.Discard),
	}
	if ctl.clock == nil {
		ctl.clock = clock.System{}
	}
	if ctl.publisher == nil {
		ctl.publisher = events.Nop{}
	}
	if logger != nil {
		ctl.logger = logger.With().Str("component", "admin").Logger()
	}
	return ctl
}

// GrantCredits adds amount to the principal's balance. There is no reset
// check and no ceiling, so the result may exceed the plan allotment.
func (c *Controls) GrantCredits(ctx context.Context, actor *domain.Account, principalID string, amount int) (*domain.Account, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	target, err := c.load(ctx, principalID)
	if err != nil {
		return nil, err
	}
	next, err := c.ledger.Grant(ctx, *target, amount, actor.ID)
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("actor_id", actor.ID).Str("principal_id", principalID).Int("amount", amount).Int("balance", next.Credits).Msg("credits granted")
	return &next, nil
}

// RemovePrincipal deletes the account and detaches its enhancement records.
// Removing oneself is a silent no-op and reports removed=false.
func (c *Controls) RemovePrincipal(ctx context.Context, actor *domain.Account, principalID string) (bool, error) {
	if err := authorize(actor); err != nil {
		return false, err
	}
	if principalID == actor.ID {
		c.logger.Warn().Str("actor_id", actor.ID).Msg("ignored self removal")
		return false, nil
	}
	target, err := c.load(ctx, principalID)
	if err != nil {
		return false, err
	}
	// Records are detached first so a failed removal can simply be retried;
	// detaching is idempotent.
	now := c.clock.Now()
	detached, err := c.records.DetachByAccount(ctx, target.ID, now.UTC())
	if err != nil {
		return false, fmt.Errorf("admin: detach records: %w", err)
	}
	if err := c.principals.Remove(ctx, target.ID); err != nil {
		return false, fmt.Errorf("admin: remove principal: %w", err)
	}
	c.logger.Info().Str("actor_id", actor.ID).Str("principal_id", target.ID).Int("records_detached", detached).Msg("principal removed")

	ev := events.New(events.TypePrincipalRemoved, clock.DayOf(now, nil).String(), now)
	ev.PrincipalID = target.ID
	ev.ActorID = actor.ID
	ev.Amount = detached
	if err := c.publisher.Publish(ctx, ev); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Msg("publish removal event failed")
	} else {
		metrics.EventsPublished.WithLabelValues("ok").Inc()
	}
	return true, nil
}

// ListPrincipals returns every account whose name or email contains filter,
// case-insensitively. An empty filter returns all accounts.
func (c *Controls) ListPrincipals(ctx context.Context, actor *domain.Account, filter string) ([]domain.Account, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	all, err := c.principals.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("admin: list principals: %w", err)
	}
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return all, nil
	}
	out := make([]domain.Account, 0, len(all))
	for _, a := range all {
		if strings.Contains(strings.ToLower(a.Name), filter) || strings.Contains(strings.ToLower(a.Email), filter) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (c *Controls) load(ctx context.Context, id string) (*domain.Account, error) {
	a, err := c.principals.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPrincipal, id)
	}
	if err != nil {
		return nil, fmt.Errorf("admin: load principal: %w", err)
	}
	return a, nil
}

func authorize(actor *domain.Account) error {
	if actor == nil || !actor.IsAdmin() {
		return domain.ErrPermissionDenied
	}
	return nil
}
