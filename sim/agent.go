package sim

import (
	"math"

	"github.com/google/uuid"
)

// AttrName identifies a mutable scalar attribute for history recording (I3).
type AttrName string

const (
	AttrFinancialCapability AttrName = "financial_capability"
	AttrTrendReceptivity    AttrName = "trend_receptivity"
	AttrSocialStatus        AttrName = "social_status"
	AttrEnergyLevel         AttrName = "energy_level"
	AttrTimeBudget          AttrName = "time_budget"
)

// minutesPerDay is the sim-minute unit conversion named in the glossary.
const minutesPerDay = 1440.0

// Agent is the mutable per-entity state described in §3. All scalar writes
// flow through Apply so that I1 (clamping) and I3 (one history record per
// mutation) hold unconditionally.
type Agent struct {
	ID         uuid.UUID
	Profession Profession

	FinancialCapability float64
	TrendReceptivity     float64
	SocialStatus         float64
	EnergyLevel          float64
	TimeBudget           float64 // quantised to 0.5

	Interests       map[InterestCategory]float64
	ExposureHistory map[uuid.UUID]float64 // trend id -> sim-minute of last exposure

	PurchasesToday  int
	LastPostTs      *float64
	LastSelfDevTs   *float64
	LastPurchaseTs  map[PurchaseLevel]*float64
}

// NewAgent constructs an Agent with zeroed cooldown state and the given
// profession; scalar attributes and interests are populated by the caller
// (bootstrap draws them from StaticTables ranges).
func NewAgent(profession Profession) *Agent {
	return &Agent{
		ID:              uuid.New(),
		Profession:      profession,
		Interests:       make(map[InterestCategory]float64),
		ExposureHistory: make(map[uuid.UUID]float64),
		LastPurchaseTs:  make(map[PurchaseLevel]*float64),
	}
}

// clamp01to5 clamps a scalar attribute value into [0, 5] (I1).
func clamp01to5(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 5 {
		return 5
	}
	return v
}

// quantizeHalf rounds v to the nearest 0.5 step, used for time_budget (P2).
func quantizeHalf(v float64) float64 {
	return math.Round(v*2) / 2
}

// Apply is the single attribute-mutation routine named in §4.4: it clamps
// the new value into [0,5] (quantising time_budget to 0.5), writes it, and
// returns an AttributeHistory record for the caller to persist. The last
// mutation reason and source trend are recorded on the returned history
// entry, never stored back on the agent.
func (a *Agent) Apply(attr AttrName, delta float64, now float64, reason string, sourceTrend *uuid.UUID) AttributeHistory {
	old := a.get(attr)
	raw := old + delta
	var newVal float64
	if attr == AttrTimeBudget {
		newVal = quantizeHalf(clamp01to5(raw))
	} else {
		newVal = clamp01to5(raw)
	}
	a.set(attr, newVal)
	return AttributeHistory{
		AgentID:     a.ID,
		Attribute:   attr,
		OldValue:    old,
		NewValue:    newVal,
		Delta:       newVal - old,
		SimMinute:   now,
		Reason:      reason,
		SourceTrend: sourceTrend,
	}
}

func (a *Agent) get(attr AttrName) float64 {
	switch attr {
	case AttrFinancialCapability:
		return a.FinancialCapability
	case AttrTrendReceptivity:
		return a.TrendReceptivity
	case AttrSocialStatus:
		return a.SocialStatus
	case AttrEnergyLevel:
		return a.EnergyLevel
	case AttrTimeBudget:
		return a.TimeBudget
	default:
		return 0
	}
}

func (a *Agent) set(attr AttrName, v float64) {
	switch attr {
	case AttrFinancialCapability:
		a.FinancialCapability = v
	case AttrTrendReceptivity:
		a.TrendReceptivity = v
	case AttrSocialStatus:
		a.SocialStatus = v
	case AttrEnergyLevel:
		a.EnergyLevel = v
	case AttrTimeBudget:
		a.TimeBudget = v
	}
}

// IsWorkHours implements §4.4's work-hours predicate: agents are inactive
// during the first 480 sim-minutes of each day (00:00-08:00 human clock).
func IsWorkHours(t float64) bool {
	minuteOfDay := math.Mod(t, minutesPerDay)
	if minuteOfDay < 0 {
		minuteOfDay += minutesPerDay
	}
	return minuteOfDay >= 480
}

// CanPost implements the can_post(t) gate from §4.4.
func (a *Agent) CanPost(t float64, st *StaticTables) bool {
	if a.LastPostTs != nil && t-*a.LastPostTs < st.PostCooldownMin {
		return false
	}
	effect := st.ActionEffects[EventPublishPost]
	if a.EnergyLevel < effect.EnergyCost {
		return false
	}
	if a.TimeBudget < effect.TimeCost {
		return false
	}
	return IsWorkHours(t)
}

// CanSelfDev implements the can_self_dev(t) gate from §4.4.
func (a *Agent) CanSelfDev(t float64, st *StaticTables) bool {
	if a.LastSelfDevTs != nil && t-*a.LastSelfDevTs < st.SelfDevCooldownMin {
		return false
	}
	effect := st.ActionEffects[EventSelfDev]
	return a.TimeBudget >= effect.TimeCost
}

// CanPurchase implements the can_purchase(t, level) gate from §4.4.
// Per-level cooldowns are optional (nil permitted) and are not checked
// here: LastPurchaseTs is recorded but never consulted by this gate.
func (a *Agent) CanPurchase(level PurchaseLevel, st *StaticTables) bool {
	if a.PurchasesToday >= st.MaxPurchasesDay {
		return false
	}
	return a.FinancialCapability >= PurchaseThreshold(level)
}

const (
	candidatePost      = "Post"
	candidateSelfDev   = "SelfDev"
	candidatePurchaseL1 = "Purchase_L1"
	candidatePurchaseL2 = "Purchase_L2"
	candidatePurchaseL3 = "Purchase_L3"
)

// DecideAction implements the selector from §4.4: it builds scored
// candidates from the gates that currently pass, drops anything below
// threshold, and selects by score-weighted random sampling (tie-broken by
// candidate name, per §9's deterministic tie-break rule). Returns ("", false)
// for "no action".
func (a *Agent) DecideAction(t float64, st *StaticTables, trend *Trend, threshold float64, rng RandFloat64) (string, bool) {
	var names []string
	var scores []float64

	add := func(name string, score float64) {
		if score >= threshold {
			names = append(names, name)
			scores = append(scores, score)
		}
	}

	if a.CanPost(t, st) {
		add(candidatePost, a.postScore(trend))
	}
	if a.CanSelfDev(t, st) {
		add(candidateSelfDev, math.Max(0.0, 1-a.EnergyLevel/5))
	}
	for name, level := range map[string]PurchaseLevel{
		candidatePurchaseL1: PurchaseL1,
		candidatePurchaseL2: PurchaseL2,
		candidatePurchaseL3: PurchaseL3,
	} {
		if a.CanPurchase(level, st) {
			add(name, a.purchaseScore(st, trend))
		}
	}

	if len(names) == 0 {
		return "", false
	}

	sortCandidatesByName(names, scores)
	chosen, ok := WeightedSample(rng, names, scores)
	if !ok {
		return "", false
	}
	return chosen, true
}

func (a *Agent) postScore(trend *Trend) float64 {
	if trend == nil {
		return 0.3 // small positive baseline, per §4.4
	}
	return trend.BaseVirality * a.TrendReceptivity / 25 * (1 + a.SocialStatus/10)
}

func (a *Agent) purchaseScore(st *StaticTables, trend *Trend) float64 {
	score := 0.3 * st.ShopWeights[a.Profession]
	if trend != nil && trend.Topic == TopicEconomic {
		score *= 1.2
	}
	return score
}

// sortCandidatesByName sorts names/scores together by name ascending,
// implementing §4.4's deterministic tie-break.
func sortCandidatesByName(names []string, scores []float64) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
			scores[j], scores[j-1] = scores[j-1], scores[j]
		}
	}
}

// AttributeHistory is the append-only record described in §3. Agent id,
// attribute name, old/new values, delta, sim-minute, reason, and an
// optional source trend id.
type AttributeHistory struct {
	AgentID     uuid.UUID
	Attribute   AttrName
	OldValue    float64
	NewValue    float64
	Delta       float64
	SimMinute   float64
	Reason      string
	SourceTrend *uuid.UUID
}
