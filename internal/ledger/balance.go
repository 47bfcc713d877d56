// Package ledger implements the credit rules: lazy daily resets, consumption,
// rewards, plan changes and the guest allowance.
package ledger

import (
	"ravelon/internal/clock"
	"ravelon/internal/domain"
	"ravelon/internal/plans"
)

// Balance returns the credits available on today. A pending reset is
// reported as the full allotment without being persisted.
func Balance(a domain.Account, today clock.Day, catalog *plans.Catalog) int {
	if a.LastCreditReset != today {
		return catalog.Allotment(a.Plan)
	}
	if a.Credits < 0 {
		return 0
	}
	return a.Credits
}

// ResetIfDue returns a with the day-boundary reset applied and whether a
// reset happened.
func ResetIfDue(a domain.Account, today clock.Day, catalog *plans.Catalog) (domain.Account, bool) {
	if a.LastCreditReset == today {
		return a, false
	}
	a.Credits = catalog.Allotment(a.Plan)
	a.LastCreditReset = today
	return a, true
}

// RewardsRemaining is how many reward ads the account may still watch today.
func RewardsRemaining(a domain.Account, today clock.Day) int {
	if a.RewardDay != today {
		return plans.MaxAdRewardsPerDay
	}
	if left := plans.MaxAdRewardsPerDay - a.RewardsToday; left > 0 {
		return left
	}
	return 0
}

// GuestRemaining is the guest allowance left on today for usage u. A nil
// usage or one from an earlier day has the full limit available. Usage from
// a later day still counts: a guest's day never moves backwards, whatever
// zone the request claims.
func GuestRemaining(u *domain.GuestUsage, today clock.Day) int {
	if u == nil || u.Day.Before(today) {
		return plans.GuestDailyLimit
	}
	if left := plans.GuestDailyLimit - u.Count; left > 0 {
		return left
	}
	return 0
}
