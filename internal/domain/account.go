package domain

import (
	"strings"
	"time"

	"ravelon/internal/clock"
)

// Role enumerates account roles.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// PlanID identifies an entry in the plan catalog.
type PlanID string

const (
	PlanFree           PlanID = "FREE"
	PlanPremiumMonthly PlanID = "PREMIUM_MONTHLY"
	PlanPremiumYearly  PlanID = "PREMIUM_YEARLY"
)

// NormalizePlanID upper-cases free-form input such as "premium_monthly".
func NormalizePlanID(s string) PlanID {
	return PlanID(strings.ToUpper(strings.TrimSpace(s)))
}

// Account is an authenticated principal.
type Account struct {
	ID              string
	Email           string
	Name            string
	Role            Role
	Plan            PlanID
	Credits         int
	LastCreditReset clock.Day
	// RewardDay and RewardsToday track ad rewards claimed on RewardDay.
	RewardDay    clock.Day
	RewardsToday int
	TimeZone     string
	LastLogin    time.Time
	CreatedAt    time.Time
}

// IsAdmin reports whether the account holds the ADMIN role.
func (a Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Location returns the account's time zone, UTC when unset.
func (a Account) Location() *time.Location {
	return clock.LoadLocation(a.TimeZone)
}

// GuestUsage counts billable actions of an anonymous device on one day.
type GuestUsage struct {
	DeviceID string
	Day      clock.Day
	Count    int
}

// EnhancementRecord is the append-only history entry of a successful
// enhancement. DetachedAt is set once the owning account is removed.
type EnhancementRecord struct {
	ID         string
	AccountID  string
	InputRef   string
	OutputRef  string
	CreatedAt  time.Time
	DetachedAt *time.Time
}

// Principal is whoever is performing an action: an account when Account is
// set, otherwise the guest identified by DeviceID.
type Principal struct {
	Account  *Account
	DeviceID string
	Location *time.Location
}

// IsGuest reports whether no account is attached.
func (p Principal) IsGuest() bool {
	return p.Account == nil
}

// Key identifies the principal's session slot.
func (p Principal) Key() string {
	if p.Account != nil {
		return "account:" + p.Account.ID
	}
	return "device:" + p.DeviceID
}

// ActionKind tags the billable actions the orchestrator understands.
type ActionKind string

const (
	ActionEnhance  ActionKind = "enhance"
	ActionUpload   ActionKind = "upload"
	ActionDownload ActionKind = "download"
	ActionAdReward ActionKind = "ad_reward"
)

// Zone is the location used for calendar-day tokens. An account always uses
// its stored zone, so every service agrees on its day; guests use the
// request's zone, then UTC.
func (p Principal) Zone() *time.Location {
	if p.Account != nil {
		return p.Account.Location()
	}
	if p.Location != nil {
		return p.Location
	}
	return time.UTC
}
