package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyClampsToZeroToFive(t *testing.T) {
	a := NewAgent(ProfessionWorker)
	a.SocialStatus = 4.8

	hist := a.Apply(AttrSocialStatus, 1.0, 10, "Test", nil)
	assert.Equal(t, 5.0, hist.NewValue)
	assert.Equal(t, 5.0, a.SocialStatus)

	hist = a.Apply(AttrSocialStatus, -10, 20, "Test", nil)
	assert.Equal(t, 0.0, hist.NewValue)
}

func TestApplyQuantizesTimeBudgetToHalfSteps(t *testing.T) {
	a := NewAgent(ProfessionWorker)
	a.TimeBudget = 2.0

	hist := a.Apply(AttrTimeBudget, 0.3, 10, "Test", nil)
	assert.Equal(t, 2.5, hist.NewValue)
}

func TestApplyRecordsOldNewDeltaAndReason(t *testing.T) {
	a := NewAgent(ProfessionWorker)
	a.EnergyLevel = 3.0

	hist := a.Apply(AttrEnergyLevel, -0.5, 42, "SelfDev", nil)
	assert.Equal(t, 3.0, hist.OldValue)
	assert.Equal(t, 2.5, hist.NewValue)
	assert.Equal(t, -0.5, hist.Delta)
	assert.Equal(t, 42.0, hist.SimMinute)
	assert.Equal(t, "SelfDev", hist.Reason)
}

func TestIsWorkHours(t *testing.T) {
	assert.False(t, IsWorkHours(0))
	assert.False(t, IsWorkHours(479))
	assert.True(t, IsWorkHours(480))
	assert.True(t, IsWorkHours(1439))
	// second day, same minute-of-day logic applies
	assert.False(t, IsWorkHours(1440 + 100))
	assert.True(t, IsWorkHours(1440 + 500))
}

func TestCanPostRespectsCooldownEnergyTimeAndWorkHours(t *testing.T) {
	st := DefaultStaticTables()
	a := NewAgent(ProfessionBlogger)
	a.EnergyLevel = 5
	a.TimeBudget = 5

	assert.False(t, a.CanPost(100, st), "before work hours")
	assert.True(t, a.CanPost(500, st))

	ts := 500.0
	a.LastPostTs = &ts
	assert.False(t, a.CanPost(500+st.PostCooldownMin-1, st))
	assert.True(t, a.CanPost(500+st.PostCooldownMin, st))
}

func TestCanPostRequiresEnergyAndTimeBudget(t *testing.T) {
	st := DefaultStaticTables()
	a := NewAgent(ProfessionBlogger)
	a.EnergyLevel = 0
	a.TimeBudget = 5
	assert.False(t, a.CanPost(600, st))

	a.EnergyLevel = 5
	a.TimeBudget = 0
	assert.False(t, a.CanPost(600, st))
}

func TestCanSelfDevRespectsCooldownAndTimeBudget(t *testing.T) {
	st := DefaultStaticTables()
	a := NewAgent(ProfessionDeveloper)
	a.TimeBudget = 5

	assert.True(t, a.CanSelfDev(0, st))
	ts := 0.0
	a.LastSelfDevTs = &ts
	assert.False(t, a.CanSelfDev(st.SelfDevCooldownMin-1, st))
	assert.True(t, a.CanSelfDev(st.SelfDevCooldownMin, st))

	a.LastSelfDevTs = nil
	a.TimeBudget = 0
	assert.False(t, a.CanSelfDev(100, st))
}

func TestCanPurchaseRespectsDailyCapAndThreshold(t *testing.T) {
	st := DefaultStaticTables()
	a := NewAgent(ProfessionShopClerk)
	a.FinancialCapability = 5

	assert.True(t, a.CanPurchase(PurchaseL1, st))
	a.PurchasesToday = st.MaxPurchasesDay
	assert.False(t, a.CanPurchase(PurchaseL1, st))

	a.PurchasesToday = 0
	a.FinancialCapability = 0
	assert.False(t, a.CanPurchase(PurchaseL3, st))
}

func TestDecideActionReturnsNoActionWhenNoGatePasses(t *testing.T) {
	st := DefaultStaticTables()
	a := NewAgent(ProfessionWorker)
	a.EnergyLevel = 0
	a.TimeBudget = 0
	a.FinancialCapability = 0

	_, ok := a.DecideAction(600, st, nil, 0.25, fixedRNG{0.5})
	assert.False(t, ok)
}

func TestDecideActionIsDeterministicForAFixedDraw(t *testing.T) {
	st := DefaultStaticTables()
	a := NewAgent(ProfessionShopClerk)
	a.EnergyLevel = 5
	a.TimeBudget = 5
	a.FinancialCapability = 5
	a.SocialStatus = 3
	a.TrendReceptivity = 3

	first, ok1 := a.DecideAction(600, st, nil, 0.0, fixedRNG{0.1})
	second, ok2 := a.DecideAction(600, st, nil, 0.0, fixedRNG{0.1})
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first, second)
}

func TestSortCandidatesByNameIsStableAscending(t *testing.T) {
	names := []string{"Purchase_L2", "Post", "SelfDev"}
	scores := []float64{1, 2, 3}
	sortCandidatesByName(names, scores)
	assert.Equal(t, []string{"Post", "Purchase_L2", "SelfDev"}, names)
	assert.Equal(t, []float64{2, 1, 3}, scores)
}
