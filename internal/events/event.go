// Package events carries ledger activity to the analytics worker.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ravelon/internal/domain"
)

// Type names a ledger event.
type Type string

const (
	TypeAccountCreated   Type = "account.created"
	TypeCreditConsumed   Type = "credit.consumed"
	TypeGuestConsumed    Type = "guest.consumed"
	TypeCreditRewarded   Type = "credit.rewarded"
	TypeCreditRefunded   Type = "credit.refunded"
	TypeCreditsGranted   Type = "credits.granted"
	TypeDailyReset       Type = "credit.reset"
	TypePlanChanged      Type = "plan.changed"
	TypePrincipalRemoved Type = "principal.removed"
	TypeActionCompleted  Type = "action.completed"
)

// Event is the wire payload published for every ledger mutation.
type Event struct {
	ID          string            `json:"id"`
	Type        Type              `json:"type"`
	Day         string            `json:"day"`
	PrincipalID string            `json:"principal_id,omitempty"`
	DeviceID    string            `json:"device_id,omitempty"`
	ActorID     string            `json:"actor_id,omitempty"`
	Action      domain.ActionKind `json:"action,omitempty"`
	Plan        domain.PlanID     `json:"plan,omitempty"`
	Amount      int               `json:"amount,omitempty"`
	Balance     int               `json:"balance"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// New stamps an event with a fresh id.
func New(typ Type, day string, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Day:        day,
		OccurredAt: at.UTC(),
	}
}

// Counters maps the event onto analytics_daily counters.
func (e Event) Counters() map[string]int {
	switch e.Type {
	case TypeAccountCreated:
		return map[string]int{domain.CounterSignups: 1}
	case TypeCreditConsumed:
		return map[string]int{domain.CounterCreditsConsumed: 1}
	case TypeGuestConsumed:
		return map[string]int{domain.CounterGuestActions: 1}
	case TypeCreditRewarded:
		return map[string]int{domain.CounterAdRewards: 1}
	case TypeCreditRefunded:
		return map[string]int{domain.CounterCreditsConsumed: -1}
	case TypeCreditsGranted:
		return map[string]int{domain.CounterCreditsGranted: e.Amount}
	case TypePlanChanged:
		return map[string]int{domain.CounterPlanChanges: 1}
	case TypePrincipalRemoved:
		return map[string]int{domain.CounterPrincipalsRemoved: 1}
	case TypeActionCompleted:
		if e.Action == domain.ActionEnhance {
			return map[string]int{domain.CounterEnhancements: 1}
		}
	}
	return nil
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
