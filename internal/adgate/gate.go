// Package adgate implements the timed confirmation step shown before gated
// actions. A Gate holds at most one pending request; completing it runs the
// request's continuation exactly once.
package adgate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ravelon/internal/clock"
	"ravelon/internal/domain"
	"ravelon/internal/metrics"
)

// State is the gate's position in its two-state machine.
type State string

const (
	StateIdle    State = "idle"
	StateShowing State = "showing"
)

// Request is what a caller queues behind the gate.
type Request[T any] struct {
	Kind        domain.ActionKind
	Label       string
	MinDuration time.Duration
	Continue    func(ctx context.Context) (T, error)
}

// Ticket describes the request currently showing. Token must be presented to
// complete or cancel it.
type Ticket struct {
	Token       string            `json:"token"`
	Kind        domain.ActionKind `json:"kind"`
	Label       string            `json:"label"`
	ShownAt     time.Time         `json:"shown_at"`
	ReadyAt     time.Time         `json:"ready_at"`
	MinDuration time.Duration     `json:"-"`
}

// Remaining is the countdown left at now.
func (t Ticket) Remaining(now time.Time) time.Duration {
	if d := t.ReadyAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

type pending[T any] struct {
	ticket Ticket
	run    func(ctx context.Context) (T, error)
}

// Gate is safe for concurrent use.
type Gate[T any] struct {
	mu    sync.Mutex
	clock clock.Clock
	slot  *pending[T]
}

// New returns an idle gate driven by c.
func New[T any](c clock.Clock) *Gate[T] {
	if c == nil {
		c = clock.System{}
	}
	return &Gate[T]{clock: c}
}

// Show moves the gate to Showing. It fails with ErrGateBusy while another
// request occupies the slot; the occupant is never replaced.
func (g *Gate[T]) Show(req Request[T]) (Ticket, error) {
	if req.Continue == nil {
		return Ticket{}, fmt.Errorf("adgate: request %q has no continuation", req.Kind)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.slot != nil {
		metrics.GateTransitions.WithLabelValues("busy").Inc()
		return Ticket{}, domain.ErrGateBusy
	}
	now := g.clock.Now()
	t := Ticket{
		Token:       uuid.NewString(),
		Kind:        req.Kind,
		Label:       req.Label,
		ShownAt:     now,
		ReadyAt:     now.Add(req.MinDuration),
		MinDuration: req.MinDuration,
	}
	g.slot = &pending[T]{ticket: t, run: req.Continue}
	metrics.GateTransitions.WithLabelValues("shown").Inc()
	return t, nil
}

// Complete returns the gate to Idle and runs the continuation. Before the
// countdown ends it fails with ErrGateNotReady and the request stays queued.
// The slot is released before the continuation runs, so a second Complete
// for the same token reports ErrGateIdle instead of running it again.
func (g *Gate[T]) Complete(ctx context.Context, token string) (T, error) {
	var zero T
	g.mu.Lock()
	p, err := g.match(token)
	if err != nil {
		g.mu.Unlock()
		return zero, err
	}
	if g.clock.Now().Before(p.ticket.ReadyAt) {
		g.mu.Unlock()
		metrics.GateTransitions.WithLabelValues("not_ready").Inc()
		return zero, domain.ErrGateNotReady
	}
	g.slot = nil
	g.mu.Unlock()

	metrics.GateTransitions.WithLabelValues("completed").Inc()
	return p.run(ctx)
}

// Cancel drops the pending request without running it.
func (g *Gate[T]) Cancel(token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.match(token); err != nil {
		return err
	}
	g.slot = nil
	metrics.GateTransitions.WithLabelValues("cancelled").Inc()
	return nil
}

// Current returns the state and, while showing, the ticket.
func (g *Gate[T]) Current() (State, *Ticket) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.slot == nil {
		return StateIdle, nil
	}
	t := g.slot.ticket
	return StateShowing, &t
}

// Remaining is the countdown left on the pending request, zero when idle.
func (g *Gate[T]) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.slot == nil {
		return 0
	}
	return g.slot.ticket.Remaining(g.clock.Now())
}

func (g *Gate[T]) match(token string) (*pending[T], error) {
	if g.slot == nil {
		return nil, domain.ErrGateIdle
	}
	if token != "" && token != g.slot.ticket.Token {
		return nil, fmt.Errorf("%w: token %q does not match the pending action", domain.ErrGateIdle, token)
	}
	return g.slot, nil
}
