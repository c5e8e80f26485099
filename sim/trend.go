package sim

import (
	"math"

	"github.com/google/uuid"
)

// CoverageLevel is the discrete audience-size class from §3.
type CoverageLevel string

const (
	CoverageLow    CoverageLevel = "Low"
	CoverageMiddle CoverageLevel = "Middle"
	CoverageHigh   CoverageLevel = "High"
)

// Sentiment is a trend's emotional valence, introduced in v1.9 (§3).
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
)

// Trend is the per-post entity described in §3.
type Trend struct {
	ID                uuid.UUID
	SimulationID       uuid.UUID
	Topic              Topic
	OriginatorAgentID  uuid.UUID
	ParentTrendID      *uuid.UUID
	CreatedAt          float64 // sim-minute
	BaseVirality       float64
	CoverageLevel      CoverageLevel
	TotalInteractions  int64
	Sentiment          Sentiment
	LastInteractionTs  float64
}

// trendAlpha, trendBeta, trendGamma are the virality-formula weights from §4.5.
const (
	trendAlpha = 0.5
	trendBeta  = 0.3
	trendGamma = 0.2
)

// NewTrend creates a Trend per §4.5's creation formula. rng supplies the
// uniform(0.8, 1.2) jitter and the sentiment coin-flip; coverage is derived
// from meanSocialStatus, the mean social_status of agents whose profession
// has non-zero affinity for topic (computed by the caller, which has the
// agent population in scope).
func NewTrend(simID uuid.UUID, author *Agent, topic Topic, now float64, st *StaticTables, meanSocialStatus float64, parent *uuid.UUID, rng RandFloat64) *Trend {
	affinity := float64(st.AffinityFor(author.Profession, topic))
	raw := trendAlpha*(author.SocialStatus/5) + trendBeta*(affinity/5) + trendGamma*(author.EnergyLevel/5)
	jitter := 0.8 + rng.Float64()*0.4 // uniform(0.8, 1.2)
	base := clamp01to5(raw * jitter)

	sentiment := SentimentPositive
	if rng.Float64() < 0.5 {
		sentiment = SentimentNegative
	}

	return &Trend{
		ID:                uuid.New(),
		SimulationID:      simID,
		Topic:             topic,
		OriginatorAgentID: author.ID,
		ParentTrendID:     parent,
		CreatedAt:         now,
		BaseVirality:      base,
		CoverageLevel:     coverageFromMeanSocialStatus(meanSocialStatus),
		TotalInteractions: 0,
		Sentiment:         sentiment,
		LastInteractionTs: now,
	}
}

// coverageFromMeanSocialStatus implements §4.5's coverage-level derivation:
// mean social_status (already in [0,5]) is normalised to [0,1] and bucketed.
func coverageFromMeanSocialStatus(mean float64) CoverageLevel {
	normalized := mean / 5
	switch {
	case normalized < 0.33:
		return CoverageLow
	case normalized < 0.66:
		return CoverageMiddle
	default:
		return CoverageHigh
	}
}

// CoverageFraction returns the audience-cap fraction for §4.7's audience
// selection: Low→30%, Middle→60%, High→100%.
func (c CoverageLevel) CoverageFraction() float64 {
	switch c {
	case CoverageLow:
		return 0.30
	case CoverageMiddle:
		return 0.60
	default:
		return 1.00
	}
}

// CoverageFactor returns the time_budget multiplier used in §4.7's reader
// delta formula: Low=0.2/Middle=0.4/High=0.6.
func (c CoverageLevel) CoverageFactor() float64 {
	switch c {
	case CoverageLow:
		return 0.2
	case CoverageMiddle:
		return 0.4
	default:
		return 0.6
	}
}

// RecordInteraction implements §4.5's post-interaction update. It must be
// called exactly once per TREND_INFLUENCE event, regardless of reader count.
func (t *Trend) RecordInteraction(now float64) {
	t.TotalInteractions++
	t.BaseVirality = math.Min(5.0, t.BaseVirality+0.05*math.Log(float64(t.TotalInteractions)+1))
	t.LastInteractionTs = now
}

// IsArchivable implements §4.5's archival predicate (I4): a trend must be
// archived once now-lastInteraction exceeds archiveThresholdDays*1440.
func (t *Trend) IsArchivable(now float64, archiveThresholdDays int) bool {
	return now-t.LastInteractionTs > float64(archiveThresholdDays)*minutesPerDay
}

// SignedSentiment returns +1 for Positive, -1 for Negative, used by the
// author PostEffect formula in §4.7.
func (t *Trend) SignedSentiment() float64 {
	if t.Sentiment == SentimentPositive {
		return 1
	}
	return -1
}
