// Package orchestrator runs billable actions end to end: entitlement
// pre-check, the ad gate for ad-supported principals, the action itself and
// the credit accounting that follows a success.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ravelon/internal/adgate"
	"ravelon/internal/clock"
	"ravelon/internal/domain"
	"ravelon/internal/events"
	"ravelon/internal/ledger"
	"ravelon/internal/metrics"
)

const (
	DefaultGateDuration = 5 * time.Second
	DefaultRewardDelay  = 3 * time.Second
	DefaultSessionTTL   = 30 * time.Minute
)

// Outcome is what a finished action hands back. Balance is the principal's
// remaining credits (or guest allowance) after accounting.
type Outcome struct {
	Kind        domain.ActionKind `json:"kind"`
	InputRef    string            `json:"input_ref,omitempty"`
	OutputRef   string            `json:"output_ref,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	RecordID    string            `json:"record_id,omitempty"`
	Balance     int               `json:"balance"`
	Data        []byte            `json:"-"`
}

// Action is a unit of work to run under the engine's rules. Only billable
// actions are pre-checked and consume a credit on success.
type Action struct {
	Kind     domain.ActionKind
	Label    string
	Billable bool
	Run      func(ctx context.Context) (Outcome, error)
}

// Result is either a finished outcome or the ticket of a gate the client must
// wait out and complete.
type Result struct {
	Outcome *Outcome       `json:"outcome,omitempty"`
	Gate    *adgate.Ticket `json:"gate,omitempty"`
}

// Options wires an Orchestrator.
type Options struct {
	Ledger       *ledger.Ledger
	Principals   domain.PrincipalStore
	Records      domain.RecordStore
	Clock        clock.Clock
	Publisher    events.Publisher
	Logger       *zerolog.Logger
	GateDuration time.Duration
	RewardDelay  time.Duration
	SessionTTL   time.Duration
}

// Orchestrator enforces at most one in-flight action per principal.
type Orchestrator struct {
	ledger       *ledger.Ledger
	principals   domain.PrincipalStore
	records      domain.RecordStore
	clock        clock.Clock
	publisher    events.Publisher
	logger       zerolog.Logger
	gateDuration time.Duration
	rewardDelay  time.Duration
	sessions     *registry
}

// New constructs an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Ledger == nil || opts.Principals == nil || opts.Records == nil {
		return nil, errors.New("orchestrator: ledger, principal store and record store are required")
	}
	o := &Orchestrator{
		ledger:       opts.Ledger,
		principals:   opts.Principals,
		records:      opts.Records,
		clock:        opts.Clock,
		publisher:    opts.Publisher,
		logger:       zerolog.New(io.Discard),
		gateDuration: opts.GateDuration,
		rewardDelay:  opts.RewardDelay,
	}
	if o.clock == nil {
		o.clock = clock.System{}
	}
	if o.publisher == nil {
		o.publisher = events.Nop{}
	}
	if opts.Logger != nil {
		o.logger = opts.Logger.With().Str("component", "orchestrator").Logger()
	}
	if o.gateDuration <= 0 {
		o.gateDuration = DefaultGateDuration
	}
	if o.rewardDelay <= 0 {
		o.rewardDelay = DefaultRewardDelay
	}
	ttl := opts.SessionTTL
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}
	o.sessions = newRegistry(o.clock, ttl)
	return o, nil
}

// Perform runs act for p. Principals on ad-supported tiers get a gate ticket
// back and the action runs when the gate is completed; everyone else gets
// the outcome directly.
func (o *Orchestrator) Perform(ctx context.Context, p domain.Principal, act Action) (*Result, error) {
	if act.Run == nil {
		return nil, fmt.Errorf("orchestrator: action %q has no body", act.Kind)
	}
	sess := o.sessions.get(p.Key())
	if !sess.acquire(o.clock.Now()) {
		metrics.GateTransitions.WithLabelValues("busy").Inc()
		return nil, domain.ErrGateBusy
	}

	p, err := o.refresh(ctx, p)
	if err != nil {
		sess.release()
		return nil, err
	}
	if act.Billable {
		if err := o.precheck(ctx, p); err != nil {
			sess.release()
			metrics.ActionOutcomes.WithLabelValues(string(act.Kind), "denied").Inc()
			return nil, err
		}
	}

	cont := func(ctx context.Context) (Outcome, error) {
		defer sess.release()
		return o.execute(ctx, p, act)
	}

	if o.Gated(p) {
		ticket, err := sess.gate.Show(adgate.Request[Outcome]{
			Kind:        act.Kind,
			Label:       act.Label,
			MinDuration: o.gateDuration,
			Continue:    cont,
		})
		if err != nil {
			sess.release()
			return nil, err
		}
		o.logger.Debug().Str("principal", p.Key()).Str("action", string(act.Kind)).Str("token", ticket.Token).Msg("gate shown")
		return &Result{Gate: &ticket}, nil
	}

	out, err := cont(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: &out}, nil
}

// WatchAd starts the reward flow. It always shows the gate, regardless of
// plan, and grants the reward when the gate is completed.
func (o *Orchestrator) WatchAd(ctx context.Context, p domain.Principal) (*Result, error) {
	if p.IsGuest() {
		return nil, domain.ErrAccountRequired
	}
	sess := o.sessions.get(p.Key())
	if !sess.acquire(o.clock.Now()) {
		metrics.GateTransitions.WithLabelValues("busy").Inc()
		return nil, domain.ErrGateBusy
	}
	p, err := o.refresh(ctx, p)
	if err != nil {
		sess.release()
		return nil, err
	}
	if ledger.RewardsRemaining(*p.Account, o.today(p)) == 0 {
		sess.release()
		return nil, domain.ErrRewardLimitReached
	}

	accountID := p.Account.ID
	ticket, err := sess.gate.Show(adgate.Request[Outcome]{
		Kind:        domain.ActionAdReward,
		Label:       "Watch ad",
		MinDuration: o.rewardDelay,
		Continue: func(ctx context.Context) (Outcome, error) {
			defer sess.release()
			if err := ctx.Err(); err != nil {
				return Outcome{}, err
			}
			a, err := o.loadAccount(ctx, accountID)
			if err != nil {
				return Outcome{}, err
			}
			p.Account = a
			next, err := o.ledger.RecordAdReward(ctx, *a, o.today(p))
			if err != nil {
				return Outcome{}, err
			}
			metrics.ActionOutcomes.WithLabelValues(string(domain.ActionAdReward), "succeeded").Inc()
			return Outcome{Kind: domain.ActionAdReward, Balance: next.Credits}, nil
		},
	})
	if err != nil {
		sess.release()
		return nil, err
	}
	return &Result{Gate: &ticket}, nil
}

// CompleteGate finishes the pending gate of p and returns the action's outcome.
func (o *Orchestrator) CompleteGate(ctx context.Context, p domain.Principal, token string) (*Outcome, error) {
	sess := o.sessions.lookup(p.Key())
	if sess == nil {
		return nil, domain.ErrGateIdle
	}
	out, err := sess.gate.Complete(ctx, token)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelGate abandons the pending action of p. Nothing is committed.
func (o *Orchestrator) CancelGate(p domain.Principal, token string) error {
	sess := o.sessions.lookup(p.Key())
	if sess == nil {
		return domain.ErrGateIdle
	}
	if err := sess.gate.Cancel(token); err != nil {
		return err
	}
	sess.release()
	metrics.ActionOutcomes.WithLabelValues("gate", "cancelled").Inc()
	return nil
}

// GateStatus reports the gate of p.
func (o *Orchestrator) GateStatus(p domain.Principal) (adgate.State, *adgate.Ticket) {
	sess := o.sessions.lookup(p.Key())
	if sess == nil {
		return adgate.StateIdle, nil
	}
	return sess.gate.Current()
}

// Busy reports whether p has an action in flight.
func (o *Orchestrator) Busy(p domain.Principal) bool {
	sess := o.sessions.lookup(p.Key())
	return sess != nil && sess.busy()
}

// Gated reports whether actions of p go through the ad gate.
func (o *Orchestrator) Gated(p domain.Principal) bool {
	if p.IsGuest() {
		return true
	}
	return o.ledger.Catalog().AdSupported(p.Account.Plan)
}

func (o *Orchestrator) refresh(ctx context.Context, p domain.Principal) (domain.Principal, error) {
	if p.IsGuest() {
		if p.DeviceID == "" {
			return p, fmt.Errorf("%w: guest without device id", domain.ErrUnknownPrincipal)
		}
		return p, nil
	}
	a, err := o.loadAccount(ctx, p.Account.ID)
	if err != nil {
		return p, err
	}
	p.Account = a
	next, err := o.ledger.ApplyDailyResetIfDue(ctx, *a, o.today(p))
	if err != nil {
		return p, err
	}
	p.Account = &next
	return p, nil
}

func (o *Orchestrator) precheck(ctx context.Context, p domain.Principal) error {
	today := o.today(p)
	if p.IsGuest() {
		left, err := o.ledger.GuestRemaining(ctx, p.DeviceID, today)
		if err != nil {
			return err
		}
		if left == 0 {
			metrics.CreditsDenied.WithLabelValues("guest_limit").Inc()
			return domain.ErrGuestLimitReached
		}
		return nil
	}
	if o.ledger.CurrentBalance(*p.Account, today) == 0 {
		metrics.CreditsDenied.WithLabelValues("insufficient_credit").Inc()
		return domain.ErrInsufficientCredit
	}
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, p domain.Principal, act Action) (Outcome, error) {
	kind := string(act.Kind)
	start := o.clock.Now()
	out, err := act.Run(ctx)
	metrics.ActionDuration.WithLabelValues(kind).Observe(o.clock.Now().Sub(start).Seconds())
	if ctx.Err() != nil {
		metrics.ActionOutcomes.WithLabelValues(kind, "abandoned").Inc()
		o.logger.Info().Str("principal", p.Key()).Str("action", kind).Msg("action abandoned, nothing committed")
		return Outcome{}, ctx.Err()
	}
	if err != nil {
		metrics.ActionOutcomes.WithLabelValues(kind, "failed").Inc()
		var ext *domain.ExternalActionError
		if !errors.As(err, &ext) {
			err = &domain.ExternalActionError{Action: act.Kind, Err: err}
		}
		o.logger.Warn().Err(err).Str("principal", p.Key()).Str("action", kind).Msg("action failed, no credit consumed")
		return Outcome{}, err
	}
	out.Kind = act.Kind

	today := o.today(p)
	switch {
	case !act.Billable:
		bal, err := o.balance(ctx, p, today)
		if err != nil {
			return Outcome{}, err
		}
		out.Balance = bal
	case p.IsGuest():
		left, err := o.ledger.GuestConsume(ctx, p.DeviceID, today)
		if err != nil {
			metrics.ActionOutcomes.WithLabelValues(kind, "denied").Inc()
			return Outcome{}, err
		}
		out.Balance = left
	default:
		a, err := o.loadAccount(ctx, p.Account.ID)
		if err != nil {
			return Outcome{}, err
		}
		next, err := o.ledger.Consume(ctx, *a, today)
		if err != nil {
			metrics.ActionOutcomes.WithLabelValues(kind, "denied").Inc()
			return Outcome{}, err
		}
		out.Balance = next.Credits
		if act.Kind == domain.ActionEnhance {
			if out.RecordID, err = o.appendRecord(ctx, next, out); err != nil {
				metrics.ActionOutcomes.WithLabelValues(kind, "failed").Inc()
				return Outcome{}, err
			}
		}
	}

	metrics.ActionOutcomes.WithLabelValues(kind, "succeeded").Inc()
	ev := events.New(events.TypeActionCompleted, today.String(), o.clock.Now())
	ev.Action = act.Kind
	ev.DeviceID = p.DeviceID
	ev.Balance = out.Balance
	if p.Account != nil {
		ev.PrincipalID = p.Account.ID
	}
	if err := o.publisher.Publish(ctx, ev); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		o.logger.Warn().Err(err).Msg("publish action event failed")
	} else {
		metrics.EventsPublished.WithLabelValues("ok").Inc()
	}
	return out, nil
}

// appendRecord writes the history entry of a consumed enhancement. When the
// write fails the credit is refunded and the failure returned, so a consumed
// credit always has its record.
func (o *Orchestrator) appendRecord(ctx context.Context, a domain.Account, out Outcome) (string, error) {
	rec := domain.EnhancementRecord{
		ID:        uuid.NewString(),
		AccountID: a.ID,
		InputRef:  out.InputRef,
		OutputRef: out.OutputRef,
		CreatedAt: o.clock.Now().UTC(),
	}
	err := o.records.Append(ctx, rec)
	if err == nil {
		return rec.ID, nil
	}
	err = fmt.Errorf("orchestrator: append record: %w", err)
	o.logger.Error().Err(err).Str("principal_id", a.ID).Msg("enhancement not recorded, refunding credit")
	if _, rerr := o.ledger.Refund(context.WithoutCancel(ctx), a); rerr != nil {
		return "", errors.Join(err, rerr)
	}
	return "", err
}

func (o *Orchestrator) balance(ctx context.Context, p domain.Principal, today clock.Day) (int, error) {
	if p.IsGuest() {
		return o.ledger.GuestRemaining(ctx, p.DeviceID, today)
	}
	a, err := o.loadAccount(ctx, p.Account.ID)
	if err != nil {
		return 0, err
	}
	return o.ledger.CurrentBalance(*a, today), nil
}

func (o *Orchestrator) loadAccount(ctx context.Context, id string) (*domain.Account, error) {
	a, err := o.principals.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPrincipal, id)
	}
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load account: %w", err)
	}
	return a, nil
}

func (o *Orchestrator) today(p domain.Principal) clock.Day {
	return clock.DayOf(o.clock.Now(), p.Zone())
}
