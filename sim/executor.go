package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/PollyDrive/capsim/sim/trace"
)

// ActionExecutor applies the §3 effect table for a chosen action and emits
// downstream events (§4.6). It holds no state of its own: every call
// receives the EngineState it should mutate through.
type ActionExecutor struct {
	log *logrus.Entry
}

// NewActionExecutor returns an ActionExecutor.
func NewActionExecutor() *ActionExecutor {
	return &ActionExecutor{log: logrus.WithField("component", "executor")}
}

// ExecutePost applies POST's effects: re-checks can_post, then debits
// time_budget/energy_level, credits social_status, stamps last_post_ts,
// creates a Trend (fresh or a reply), and schedules TREND_INFLUENCE at
// now+5 minutes. A failed gate re-check cancels the action silently (no
// effects, no history record) per §4.6's failure-mode rule.
func (x *ActionExecutor) ExecutePost(es EngineState, payload PublishPostPayload) error {
	now := es.Now()
	author, ok := es.Agent(payload.AuthorID)
	if !ok {
		return nil
	}
	st := es.StaticTables()
	if !author.CanPost(now, st) {
		x.log.Debugf("post gate failed for agent %s at t=%.2f", author.ID, now)
		return nil
	}

	effect := st.ActionEffects[EventPublishPost]
	es.Ledger().RecordHistory(toRecord(author.Apply(AttrTimeBudget, effect.TimeBudget, now, "Post", nil)))
	es.Ledger().RecordHistory(toRecord(author.Apply(AttrEnergyLevel, effect.EnergyLevel, now, "Post", nil)))
	es.Ledger().RecordHistory(toRecord(author.Apply(AttrSocialStatus, effect.SocialStatus, now, "Post", nil)))
	author.LastPostTs = floatPtr(now)

	mean := meanSocialStatusForTopic(es.AllAgents(), st, payload.Topic)
	trend := NewTrend(es.SimulationID(), author, payload.Topic, now, st, mean, payload.ParentTrendID, es.RNG().ForSubsystem(SubsystemTrend))
	es.AddTrend(trend)

	ev := NewEvent(es.SimulationID(), now+5, EventTrendInfluence, TrendInfluencePayload{
		TrendID:  trend.ID,
		DayIndex: int64(now / minutesPerDay),
	})
	if err := es.Schedule(ev); err != nil {
		x.log.Warnf("failed to schedule TREND_INFLUENCE for trend %s: %v", trend.ID, err)
	}
	es.RecordAction(EventPublishPost, "", author.Profession)
	return nil
}

// ExecuteSelfDev applies SELF_DEV's effects: re-checks can_self_dev, then
// debits time_budget and credits energy_level.
func (x *ActionExecutor) ExecuteSelfDev(es EngineState, payload SelfDevPayload) error {
	now := es.Now()
	agent, ok := es.Agent(payload.AgentID)
	if !ok {
		return nil
	}
	st := es.StaticTables()
	if !agent.CanSelfDev(now, st) {
		x.log.Debugf("self-dev gate failed for agent %s at t=%.2f", agent.ID, now)
		return nil
	}

	effect := st.ActionEffects[EventSelfDev]
	es.Ledger().RecordHistory(toRecord(agent.Apply(AttrTimeBudget, effect.TimeBudget, now, "SelfDev", nil)))
	es.Ledger().RecordHistory(toRecord(agent.Apply(AttrEnergyLevel, effect.EnergyLevel, now, "SelfDev", nil)))
	agent.LastSelfDevTs = floatPtr(now)
	es.RecordAction(EventSelfDev, "", agent.Profession)
	return nil
}

// ExecutePurchase applies PURCHASE_Lk's effects: re-checks can_purchase,
// then debits financial_capability by the level's cost, increments
// purchases_today, and stamps last_purchase_ts[Lk].
func (x *ActionExecutor) ExecutePurchase(es EngineState, payload PurchasePayload) error {
	now := es.Now()
	agent, ok := es.Agent(payload.AgentID)
	if !ok {
		return nil
	}
	st := es.StaticTables()
	if !agent.CanPurchase(payload.Level, st) {
		x.log.Debugf("purchase %s gate failed for agent %s at t=%.2f", payload.Level, agent.ID, now)
		return nil
	}

	kind := purchaseEventKind(payload.Level)
	effect := st.ActionEffects[kind]
	es.Ledger().RecordHistory(toRecord(agent.Apply(AttrFinancialCapability, effect.Cost, now, "Purchase"+string(payload.Level), nil)))
	agent.PurchasesToday++
	ts := now
	agent.LastPurchaseTs[payload.Level] = &ts
	es.RecordAction(kind, payload.Level, agent.Profession)
	return nil
}

func purchaseEventKind(level PurchaseLevel) EventKind {
	switch level {
	case PurchaseL1:
		return EventPurchaseL1
	case PurchaseL2:
		return EventPurchaseL2
	default:
		return EventPurchaseL3
	}
}

func floatPtr(v float64) *float64 { return &v }

func toRecord(h AttributeHistory) trace.AttributeHistoryRecord {
	return trace.AttributeHistoryRecord{
		AgentID:     h.AgentID,
		Attribute:   string(h.Attribute),
		OldValue:    h.OldValue,
		NewValue:    h.NewValue,
		Delta:       h.Delta,
		SimMinute:   h.SimMinute,
		Reason:      h.Reason,
		SourceTrend: h.SourceTrend,
	}
}

// meanSocialStatusForTopic computes the mean social_status of agents whose
// profession has non-zero affinity for topic, per §4.5's coverage-level
// derivation. Returns 0 if no agent qualifies.
func meanSocialStatusForTopic(agents []*Agent, st *StaticTables, topic Topic) float64 {
	sum, n := 0.0, 0
	for _, a := range agents {
		if st.AffinityFor(a.Profession, topic) > 0 {
			sum += a.SocialStatus
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
