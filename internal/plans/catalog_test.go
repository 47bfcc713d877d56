package plans

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"ravelon/internal/domain"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	require.Equal(t, 3, c.Allotment(domain.PlanFree))
	require.Equal(t, UnlimitedAllotment, c.Allotment(domain.PlanPremiumMonthly))
	require.Equal(t, UnlimitedAllotment, c.Allotment(domain.PlanPremiumYearly))
	require.True(t, c.AdSupported(domain.PlanFree))
	require.False(t, c.AdSupported(domain.PlanPremiumYearly))
	require.Equal(t, domain.PlanFree, c.Fallback())

	// paid tiers sit at least two orders of magnitude above the free tier
	require.GreaterOrEqual(t, c.Allotment(domain.PlanPremiumMonthly), 100*c.Allotment(domain.PlanFree))
}

func TestUnknownPlanFallsBackToFree(t *testing.T) {
	c := Default()

	require.Equal(t, 3, c.Allotment("GOLD"))
	require.True(t, c.AdSupported("GOLD"))
	err := c.Validate("GOLD")
	require.True(t, errors.Is(err, domain.ErrUnsupportedPlan))
	require.NoError(t, c.Validate(domain.PlanPremiumMonthly))
}

func TestListKeepsOrder(t *testing.T) {
	got := Default().List()
	require.Len(t, got, 3)
	require.Equal(t, []domain.PlanID{domain.PlanFree, domain.PlanPremiumMonthly, domain.PlanPremiumYearly},
		[]domain.PlanID{got[0].ID, got[1].ID, got[2].ID})
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New("x", Plan{ID: "A", DailyCredits: 1}, Plan{ID: "A", DailyCredits: 2})
	require.Error(t, err)
	_, err = New("x")
	require.Error(t, err)
	_, err = New("x", Plan{ID: "A", DailyCredits: -1})
	require.Error(t, err)
}
