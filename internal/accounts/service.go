// Package accounts creates, loads and refreshes authenticated principals.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ravelon/internal/clock"
	"ravelon/internal/domain"
	"ravelon/internal/events"
	"ravelon/internal/ledger"
	"ravelon/internal/metrics"
	"ravelon/internal/plans"
)

const utcZone = "UTC"

// ErrInvalidEmail is returned by Login for malformed addresses.
var ErrInvalidEmail = errors.New("accounts: invalid email")

// Options wires a Service.
type Options struct {
	Ledger      *ledger.Ledger
	Principals  domain.PrincipalStore
	Clock       clock.Clock
	Publisher   events.Publisher
	Logger      *zerolog.Logger
	AdminEmails []string
}

// Service implements login and the profile operations.
type Service struct {
	ledger     *ledger.Ledger
	principals domain.PrincipalStore
	clock      clock.Clock
	publisher  events.Publisher
	logger     zerolog.Logger
	admins     map[string]struct{}
}

// Profile is an account with its derived entitlement fields.
type Profile struct {
	Account          domain.Account
	Plan             plans.Plan
	Balance          int
	Allotment        int
	AdGated          bool
	RewardsRemaining int
	Day              clock.Day
}

// New constructs a Service.
func New(opts Options) (*Service, error) {
	if opts.Ledger == nil || opts.Principals == nil {
		return nil, errors.New("accounts: ledger and principal store are required")
	}
	s := &Service{
		ledger:     opts.Ledger,
		principals: opts.Principals,
		clock:      opts.Clock,
		publisher:  opts.Publisher,
		logger:     zerolog.New(io.Discard),
		admins:     make(map[string]struct{}, len(opts.AdminEmails)),
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	if opts.Logger != nil {
		s.logger = opts.Logger.With().Str("component", "accounts").Logger()
	}
	for _, e := range opts.AdminEmails {
		if e = normalizeEmail(e); e != "" {
			s.admins[e] = struct{}{}
		}
	}
	return s, nil
}

// Login loads the account registered under email or creates it on FREE with
// a full allotment. An existing account gets its login time updated and any
// pending daily reset applied. The account's zone is pinned at creation: tz
// when it is a valid IANA name, otherwise UTC. It is never changed afterwards
// so every day token of the account is computed in the same zone.
func (s *Service) Login(ctx context.Context, email, name, tz string) (*Profile, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}
	email = normalizeEmail(addr.Address)
	now := s.clock.Now()

	existing, err := s.principals.GetByEmail(ctx, email)
	switch {
	case err == nil:
		next := *existing
		next.LastLogin = now.UTC()
		if next.TimeZone == "" {
			// Unpinned accounts have always been counted in UTC.
			next.TimeZone = utcZone
		}
		if _, ok := s.admins[email]; ok {
			next.Role = domain.RoleAdmin
		}
		if err := s.principals.Put(ctx, &next); err != nil {
			return nil, fmt.Errorf("accounts: update login: %w", err)
		}
		return s.profile(ctx, next)
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, fmt.Errorf("accounts: lookup email: %w", err)
	}

	a := domain.Account{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		Role:      domain.RoleUser,
		Plan:      s.ledger.Catalog().Fallback(),
		LastLogin: now.UTC(),
		CreatedAt: now.UTC(),
	}
	if a.Name == "" {
		a.Name = strings.SplitN(email, "@", 2)[0]
	}
	a.TimeZone = utcZone
	if validZone(tz) {
		a.TimeZone = tz
	}
	if _, ok := s.admins[email]; ok {
		a.Role = domain.RoleAdmin
	}
	today := clock.DayOf(now, a.Location())
	a.Credits = s.ledger.Catalog().Allotment(a.Plan)
	a.LastCreditReset = today
	if err := s.principals.Put(ctx, &a); err != nil {
		return nil, fmt.Errorf("accounts: create: %w", err)
	}
	s.logger.Info().Str("principal_id", a.ID).Str("role", string(a.Role)).Msg("account created")

	ev := events.New(events.TypeAccountCreated, today.String(), now)
	ev.PrincipalID = a.ID
	ev.Plan = a.Plan
	ev.Balance = a.Credits
	if err := s.publisher.Publish(ctx, ev); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Msg("publish account event failed")
	} else {
		metrics.EventsPublished.WithLabelValues("ok").Inc()
	}
	return s.profile(ctx, a)
}

// Refresh reloads the account and applies a pending daily reset.
func (s *Service) Refresh(ctx context.Context, id string) (*Profile, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, *a)
}

// Subscribe moves the account to plan. The payment step is instant; the new
// allotment replaces the current balance.
func (s *Service) Subscribe(ctx context.Context, id string, plan domain.PlanID) (*Profile, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Catalog().Validate(plan); err != nil {
		return nil, err
	}
	if a.Plan == plan {
		return nil, domain.ErrSamePlan
	}
	next, err := s.ledger.ChangePlan(ctx, *a, plan, s.today(*a))
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, next)
}

func (s *Service) profile(ctx context.Context, a domain.Account) (*Profile, error) {
	today := s.today(a)
	current, err := s.ledger.ApplyDailyResetIfDue(ctx, a, today)
	if err != nil {
		return nil, err
	}
	catalog := s.ledger.Catalog()
	return &Profile{
		Account:          current,
		Plan:             catalog.Resolve(current.Plan),
		Balance:          current.Credits,
		Allotment:        catalog.Allotment(current.Plan),
		AdGated:          catalog.AdSupported(current.Plan),
		RewardsRemaining: ledger.RewardsRemaining(current, today),
		Day:              today,
	}, nil
}

func (s *Service) load(ctx context.Context, id string) (*domain.Account, error) {
	a, err := s.principals.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPrincipal, id)
	}
	if err != nil {
		return nil, fmt.Errorf("accounts: load: %w", err)
	}
	return a, nil
}

func (s *Service) today(a domain.Account) clock.Day {
	return clock.DayOf(s.clock.Now(), a.Location())
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

func validZone(tz string) bool {
	if tz == "" || tz == "Local" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}
