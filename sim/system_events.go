package sim

import (
	"context"

	"github.com/google/uuid"
)

// handleDailyReset implements DAILY_RESET (§4.8): every agent's
// purchases_today counter returns to zero and time_budget is restored to
// its profession's midpoint (quantised to a 0.5 step by Apply), then the
// event reschedules itself 1440 sim-minutes later.
func (s *Simulator) handleDailyReset() {
	now := s.clock.Now()
	for _, id := range s.agentOrder {
		agent := s.agents[id]
		agent.PurchasesToday = 0
		midpoint := s.st.ProfessionRanges[agent.Profession].TimeBudget.Midpoint()
		delta := midpoint - agent.TimeBudget
		if delta != 0 {
			s.ledger.RecordHistory(toRecord(agent.Apply(AttrTimeBudget, delta, now, "DailyReset", nil)))
		}
	}
	s.pushSystem(NewEvent(s.run.ID, now+minutesPerDay, EventDailyReset, nil))
}

// energyRecoveryThreshold is the energy_level below which DAILY recovery
// applies a boost; agents already above it are left alone.
const energyRecoveryThreshold = 2.0

// energyRecoveryAmount is the flat energy_level credit applied below threshold.
const energyRecoveryAmount = 1.5

// handleEnergyRecovery implements ENERGY_RECOVERY: agents whose energy_level
// sits below energyRecoveryThreshold recover energyRecoveryAmount, then the
// event reschedules after cfg.EnergyRecoveryIntervalMin.
func (s *Simulator) handleEnergyRecovery() {
	now := s.clock.Now()
	for _, id := range s.agentOrder {
		agent := s.agents[id]
		if agent.EnergyLevel < energyRecoveryThreshold {
			s.ledger.RecordHistory(toRecord(agent.Apply(AttrEnergyLevel, energyRecoveryAmount, now, "EnergyRecovery", nil)))
		}
	}
	s.pushSystem(NewEvent(s.run.ID, now+float64(s.cfg.EnergyRecoveryIntervalMin), EventEnergyRecovery, nil))
}

// handleSaveDailyTrend implements SAVE_DAILY_TREND: it persists the current
// trend population (so per-(topic, day) aggregates can be computed from the
// durable trends table rather than held in memory), runs the archival pass
// (I4), and reschedules itself 1440 sim-minutes later.
func (s *Simulator) handleSaveDailyTrend(ctx context.Context) {
	now := s.clock.Now()
	s.persistTrendsSnapshot(ctx)
	s.archiveStaleTrends(ctx, now)
	s.pushSystem(NewEvent(s.run.ID, now+minutesPerDay, EventSaveDailyTrend, nil))
}

// archiveStaleTrends implements I4: any trend whose last interaction is
// older than TrendArchiveThresholdDays is archived and removed from the
// engine's active working set (it no longer participates in contextTrendFor
// or as an audience-selection target), but its record remains in the
// Repository.
func (s *Simulator) archiveStaleTrends(ctx context.Context, now float64) {
	var kept []uuid.UUID
	for _, id := range s.trendOrder {
		t := s.trends[id]
		if t == nil {
			continue
		}
		if t.IsArchivable(now, s.cfg.TrendArchiveThresholdDays) {
			if err := s.repo.ArchiveTrend(ctx, t.ID); err != nil {
				s.log.WithError(err).Warnf("failed to archive trend %s", t.ID)
				kept = append(kept, id)
				continue
			}
			delete(s.trends, id)
			continue
		}
		kept = append(kept, id)
	}
	s.trendOrder = kept
}
