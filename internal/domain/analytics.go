package domain

import "time"

// Counter names aggregated per day by the analytics worker.
const (
	CounterEnhancements      = "enhancements"
	CounterGuestActions      = "guest_actions"
	CounterCreditsConsumed   = "credits_consumed"
	CounterAdRewards         = "ad_rewards"
	CounterPlanChanges       = "plan_changes"
	CounterCreditsGranted    = "credits_granted"
	CounterPrincipalsRemoved = "principals_removed"
	CounterSignups           = "signups"
)

// AnalyticsDaily stores aggregated ledger activity for a specific day.
type AnalyticsDaily struct {
	Day               string
	Enhancements      int
	GuestActions      int
	CreditsConsumed   int
	AdRewards         int
	PlanChanges       int
	CreditsGranted    int
	PrincipalsRemoved int
	Signups           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
