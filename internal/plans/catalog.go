// Package plans holds the static plan catalog and the engine constants that
// ship with it. The catalog changes only with a deploy.
package plans

import (
	"fmt"

	"ravelon/internal/domain"
)

// Version identifies the catalog revision reported by /v1/plans.
const Version = "2024.11"

const (
	// GuestDailyLimit is the number of billable actions a guest may run per day.
	GuestDailyLimit = 3
	// AdWatchReward is the credit granted per completed reward ad.
	AdWatchReward = 1
	// MaxAdRewardsPerDay bounds reward ads per account per day.
	MaxAdRewardsPerDay = 5
	// UnlimitedAllotment is the sentinel allotment of paid tiers.
	UnlimitedAllotment = 10000
)

// Plan is one catalog entry.
type Plan struct {
	ID           domain.PlanID `json:"id"`
	Name         string        `json:"name"`
	Price        string        `json:"price"`
	Period       string        `json:"period"`
	DailyCredits int           `json:"credits_per_day"`
	Features     []string      `json:"features"`
	AdSupported  bool          `json:"ad_supported"`
}

// Catalog maps plan ids to entries. The zero value is not usable; use Default.
type Catalog struct {
	version  string
	fallback domain.PlanID
	order    []domain.PlanID
	plans    map[domain.PlanID]Plan
}

// New builds a catalog from entries. The first entry is the fallback plan used
// for unknown ids.
func New(version string, entries ...Plan) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("plans: catalog needs at least one plan")
	}
	c := &Catalog{
		version:  version,
		fallback: entries[0].ID,
		plans:    make(map[domain.PlanID]Plan, len(entries)),
	}
	for _, p := range entries {
		if p.DailyCredits < 0 {
			return nil, fmt.Errorf("plans: %s has negative allotment", p.ID)
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("plans: duplicate plan %s", p.ID)
		}
		c.plans[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// Default returns the production catalog.
func Default() *Catalog {
	c, err := New(Version,
		Plan{
			ID:           domain.PlanFree,
			Name:         "Starter",
			Price:        "R0",
			Period:       "forever",
			DailyCredits: 3,
			Features:     []string{"3 Enhancements daily", "Standard speed", "Basic support", "Watch ads to gain credits"},
			AdSupported:  true,
		},
		Plan{
			ID:           domain.PlanPremiumMonthly,
			Name:         "Pro Monthly",
			Price:        "R150",
			Period:       "month",
			DailyCredits: UnlimitedAllotment,
			Features:     []string{"Unlimited Enhancements daily", "High priority processing", "No ads", "Premium badge"},
		},
		Plan{
			ID:           domain.PlanPremiumYearly,
			Name:         "Pro Yearly",
			Price:        "R500",
			Period:       "year",
			DailyCredits: UnlimitedAllotment,
			Features:     []string{"Best Value", "Unlimited Enhancements daily", "High priority processing", "No ads", "Chat with Admin", "Premium badge"},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Version returns the catalog revision.
func (c *Catalog) Version() string { return c.version }

// Lookup returns the entry for id.
func (c *Catalog) Lookup(id domain.PlanID) (Plan, bool) {
	p, ok := c.plans[id]
	return p, ok
}

// Resolve returns the entry for id or the fallback plan when id is unknown.
func (c *Catalog) Resolve(id domain.PlanID) Plan {
	if p, ok := c.plans[id]; ok {
		return p
	}
	return c.plans[c.fallback]
}

// Allotment is the daily credit allotment of id.
func (c *Catalog) Allotment(id domain.PlanID) int {
	return c.Resolve(id).DailyCredits
}

// AdSupported reports whether principals on id see the ad gate.
func (c *Catalog) AdSupported(id domain.PlanID) bool {
	return c.Resolve(id).AdSupported
}

// Fallback is the plan new accounts start on.
func (c *Catalog) Fallback() domain.PlanID { return c.fallback }

// Validate rejects ids absent from the catalog.
func (c *Catalog) Validate(id domain.PlanID) error {
	if _, ok := c.plans[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedPlan, id)
	}
	return nil
}

// List returns entries in catalog order.
func (c *Catalog) List() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id])
	}
	return out
}
