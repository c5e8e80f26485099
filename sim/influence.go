package sim

import (
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"
)

// fibHashMultiplier is the Fibonacci hashing constant 0x9E3779B97F4A7C15
// expressed as its int64 two's-complement bit pattern.
const fibHashMultiplier int64 = -7046029254386353131

// InfluenceProcessor handles a single TREND_INFLUENCE event: it selects the
// trend's audience, applies each reader's reaction, updates the trend's
// interaction counter exactly once, aggregates the effect back onto the
// author, and schedules a follow-up reply post after a random delay (§4.7).
type InfluenceProcessor struct {
	log *logrus.Entry
}

// NewInfluenceProcessor returns an InfluenceProcessor.
func NewInfluenceProcessor() *InfluenceProcessor {
	return &InfluenceProcessor{log: logrus.WithField("component", "influence")}
}

// replyLambda is the rate parameter for the follow-up PUBLISH_POST delay,
// Exp(λ=1/15) per §4.7, giving a mean delay of 15 sim-minutes.
const replyLambda = 1.0 / 15.0

// Process implements §4.7. A missing trend (already archived and pruned, or
// a stale event outliving it) is a silent no-op.
func (ip *InfluenceProcessor) Process(es EngineState, payload TrendInfluencePayload) error {
	trend, ok := es.Trend(payload.TrendID)
	if !ok {
		return nil
	}
	now := es.Now()
	cfg := es.Config()
	rng := es.RNG().ForSubsystem(SubsystemInfluence)

	audience := ip.selectAudience(es, trend, payload.DayIndex, cfg.ExposureResetMin)

	var sumEnergyDelta float64
	for _, reader := range audience {
		if energyDelta, reacted := ip.applyReaction(es, reader, trend, now, rng); reacted {
			sumEnergyDelta += energyDelta
		}
		reader.ExposureHistory[trend.ID] = now
	}

	trend.RecordInteraction(now)
	es.RecordAction(EventTrendInfluence, "", "")

	ip.applyAuthorEffect(es, trend, len(audience), sumEnergyDelta, now)
	ip.maybeScheduleReply(es, trend, now)
	return nil
}

// selectAudience implements §4.7's audience selection: filter to agents
// (other than the author) whose profession has non-zero affinity for the
// trend's topic and who have not been exposed to this trend within
// exposureResetMin, then cap to the coverage-level fraction via a
// deterministic shuffle seeded by (trend_id, day_index) so repeated runs
// with the same seed reach the same audience (P9).
func (ip *InfluenceProcessor) selectAudience(es EngineState, trend *Trend, dayIndex int64, exposureResetMin int) []*Agent {
	st := es.StaticTables()
	now := es.Now()

	var eligible []*Agent
	for _, a := range es.AllAgents() {
		if a.ID == trend.OriginatorAgentID {
			continue
		}
		if st.AffinityFor(a.Profession, trend.Topic) <= 0 {
			continue
		}
		if lastSeen, seen := a.ExposureHistory[trend.ID]; seen && now-lastSeen < float64(exposureResetMin) {
			continue
		}
		eligible = append(eligible, a)
	}
	if len(eligible) == 0 {
		return nil
	}

	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID.String() < eligible[j].ID.String() })

	seed := fnv1a64(trend.ID.String()) ^ (dayIndex * fibHashMultiplier)
	shuffleRng := rand.New(rand.NewSource(seed))
	shuffleRng.Shuffle(len(eligible), func(i, j int) { eligible[i], eligible[j] = eligible[j], eligible[i] })

	audienceCap := int(math.Ceil(float64(len(eligible)) * trend.CoverageLevel.CoverageFraction()))
	if audienceCap > len(eligible) {
		audienceCap = len(eligible)
	}
	return eligible[:audienceCap]
}

// reactionDelta is one row of §4.7's sentiment×match delta table.
type reactionDelta struct {
	trendReceptivity float64
	energyLevel      float64
}

// reactionTable implements §4.7's sentiment×match table exactly.
var reactionTable = map[Sentiment]map[bool]reactionDelta{
	SentimentPositive: {
		true:  {trendReceptivity: 0.01, energyLevel: 0.02},
		false: {trendReceptivity: 0, energyLevel: 0.015},
	},
	SentimentNegative: {
		true:  {trendReceptivity: 0.01, energyLevel: -0.015},
		false: {trendReceptivity: 0.01, energyLevel: -0.010},
	},
}

// applyReaction implements §4.7's per-reader decision: draw the reaction
// probability P = (virality/5)×(trend_receptivity/5)×(affinity/5)×
// uniform(0.8,1.2), gate on a random draw, and on a hit apply the
// sentiment×match delta table plus the social_status and time_budget
// formulas. Returns the reader's Δenergy_level and whether the reader
// reacted at all, for the caller's author-effect aggregate.
func (ip *InfluenceProcessor) applyReaction(es EngineState, reader *Agent, trend *Trend, now float64, rng RandFloat64) (float64, bool) {
	st := es.StaticTables()
	affinity := float64(st.AffinityFor(reader.Profession, trend.Topic))

	p := (trend.BaseVirality / 5) * (reader.TrendReceptivity / 5) * (affinity / 5) * (0.8 + rng.Float64()*0.4)
	if rng.Float64() >= p {
		return 0, false
	}

	match := affinity > 3
	row := reactionTable[trend.Sentiment][match]

	if row.trendReceptivity != 0 {
		es.Ledger().RecordHistory(toRecord(reader.Apply(AttrTrendReceptivity, row.trendReceptivity, now, "TrendInfluence", &trend.ID)))
	}
	es.Ledger().RecordHistory(toRecord(reader.Apply(AttrEnergyLevel, row.energyLevel, now, "TrendInfluence", &trend.ID)))

	socialDelta := (trend.BaseVirality - 1) * 0.02
	es.Ledger().RecordHistory(toRecord(reader.Apply(AttrSocialStatus, socialDelta, now, "TrendInfluence", &trend.ID)))

	timeDelta := -(0.5 * trend.CoverageLevel.CoverageFactor())
	es.Ledger().RecordHistory(toRecord(reader.Apply(AttrTimeBudget, timeDelta, now, "TrendInfluence", &trend.ID)))

	return row.energyLevel, true
}

// applyAuthorEffect implements §4.7's author PostEffect aggregate:
// delta_social = clamp((Σenergy × ln(n+1)/ln(10) × signed_sentiment)/50, −1, +1),
// applied once per TREND_INFLUENCE event regardless of audience size.
func (ip *InfluenceProcessor) applyAuthorEffect(es EngineState, trend *Trend, n int, sumEnergyDelta float64, now float64) {
	author, ok := es.Agent(trend.OriginatorAgentID)
	if !ok {
		return
	}
	delta := (sumEnergyDelta * math.Log(float64(n)+1) / math.Log(10) * trend.SignedSentiment()) / 50
	if delta > 1 {
		delta = 1
	}
	if delta < -1 {
		delta = -1
	}
	if delta == 0 {
		return
	}
	es.Ledger().RecordHistory(toRecord(author.Apply(AttrSocialStatus, delta, now, "PostEffect", &trend.ID)))
}

// maybeScheduleReply draws an Exp(λ=1/15) delay, clamps it to [1, 60]
// sim-minutes, and schedules a follow-up PUBLISH_POST from the trend's
// author referencing it as parent. A queue-full failure is logged and
// dropped per §4.6's failure-mode rule; it never aborts the influence pass.
func (ip *InfluenceProcessor) maybeScheduleReply(es EngineState, trend *Trend, now float64) {
	rng := es.RNG().ForSubsystem(SubsystemInfluence)
	delay := -math.Log(1-rng.Float64()) / replyLambda
	if delay < 1 {
		delay = 1
	}
	if delay > 60 {
		delay = 60
	}

	parentID := trend.ID
	ev := NewEvent(es.SimulationID(), now+delay, EventPublishPost, PublishPostPayload{
		AuthorID:      trend.OriginatorAgentID,
		Topic:         trend.Topic,
		ParentTrendID: &parentID,
	})
	if err := es.Schedule(ev); err != nil {
		ip.log.WithField("trend_id", trend.ID).Warnf("failed to schedule reply post: %v", err)
	}
}
