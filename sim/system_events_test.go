package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PollyDrive/capsim/sim/repository"
)

func bootstrappedSim(t *testing.T, agents int) (*Simulator, *repository.MemoryRepository) {
	t.Helper()
	repo := repository.NewMemoryRepository([]int{0})
	cfg := testConfig(agents, 100000)
	sim, err := Bootstrap(context.Background(), cfg, repo, NewFastClock())
	require.NoError(t, err)
	return sim, repo
}

func TestHandleDailyResetRestoresTimeBudgetAndClearsPurchases(t *testing.T) {
	sim, _ := bootstrappedSim(t, 3)
	for _, a := range sim.AllAgents() {
		a.PurchasesToday = 3
		a.TimeBudget = 0
	}
	sim.clock.Advance(minutesPerDay)

	sim.handleDailyReset()

	for _, a := range sim.AllAgents() {
		assert.Equal(t, 0, a.PurchasesToday)
		midpoint := sim.st.ProfessionRanges[a.Profession].TimeBudget.Midpoint()
		assert.Equal(t, quantizeHalf(midpoint), a.TimeBudget)
	}
}

func TestHandleDailyResetReschedulesItself(t *testing.T) {
	sim, _ := bootstrappedSim(t, 1)
	sizeBefore := sim.queue.Size()
	sim.handleDailyReset()
	assert.Equal(t, sizeBefore+1, sim.queue.Size())
}

func TestHandleEnergyRecoveryBoostsOnlyLowEnergyAgents(t *testing.T) {
	sim, _ := bootstrappedSim(t, 2)
	agents := sim.AllAgents()
	agents[0].EnergyLevel = 1.0
	agents[1].EnergyLevel = 4.0

	sim.handleEnergyRecovery()

	assert.Equal(t, 2.5, agents[0].EnergyLevel)
	assert.Equal(t, 4.0, agents[1].EnergyLevel)
}

func TestHandleSaveDailyTrendPersistsAndArchives(t *testing.T) {
	sim, repo := bootstrappedSim(t, 1)
	author := sim.AllAgents()[0]
	trend := NewTrend(sim.SimulationID(), author, TopicEconomic, 0, sim.st, 1, nil, fixedRNG{0.9})
	sim.AddTrend(trend)
	sim.clock.Advance(minutesPerDay*float64(sim.cfg.TrendArchiveThresholdDays) + 1)

	sim.handleSaveDailyTrend(context.Background())

	_, ok := sim.Trend(trend.ID)
	assert.False(t, ok, "stale trend should be removed from the active working set")

	rec, ok := repo.TrendSnapshot(trend.ID)
	require.True(t, ok)
	assert.True(t, rec.Archived)
}

func TestArchiveStaleTrendsKeepsFreshTrends(t *testing.T) {
	sim, _ := bootstrappedSim(t, 1)
	author := sim.AllAgents()[0]
	trend := NewTrend(sim.SimulationID(), author, TopicEconomic, 0, sim.st, 1, nil, fixedRNG{0.9})
	sim.AddTrend(trend)
	sim.persistTrendsSnapshot(context.Background())

	sim.archiveStaleTrends(context.Background(), 10)

	_, ok := sim.Trend(trend.ID)
	assert.True(t, ok, "a recently-active trend must not be archived")
}
