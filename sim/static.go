package sim

import "fmt"

// Profession enumerates the twelve agent professions named in §3.
type Profession string

const (
	ProfessionShopClerk        Profession = "ShopClerk"
	ProfessionWorker           Profession = "Worker"
	ProfessionDeveloper        Profession = "Developer"
	ProfessionPolitician       Profession = "Politician"
	ProfessionBlogger          Profession = "Blogger"
	ProfessionBusinessman      Profession = "Businessman"
	ProfessionSpiritualMentor  Profession = "SpiritualMentor"
	ProfessionPhilosopher      Profession = "Philosopher"
	ProfessionUnemployed       Profession = "Unemployed"
	ProfessionTeacher          Profession = "Teacher"
	ProfessionArtist           Profession = "Artist"
	ProfessionDoctor           Profession = "Doctor"
)

// AllProfessions lists every profession, in a fixed order used for
// deterministic bootstrap sampling and static-table validation.
var AllProfessions = []Profession{
	ProfessionShopClerk, ProfessionWorker, ProfessionDeveloper, ProfessionPolitician,
	ProfessionBlogger, ProfessionBusinessman, ProfessionSpiritualMentor, ProfessionPhilosopher,
	ProfessionUnemployed, ProfessionTeacher, ProfessionArtist, ProfessionDoctor,
}

// Topic enumerates trend topics from §3.
type Topic string

const (
	TopicEconomic   Topic = "Economic"
	TopicHealth     Topic = "Health"
	TopicSpiritual  Topic = "Spiritual"
	TopicConspiracy Topic = "Conspiracy"
	TopicScience    Topic = "Science"
	TopicCulture    Topic = "Culture"
	TopicSport      Topic = "Sport"
)

// AllTopics lists every topic in a fixed order.
var AllTopics = []Topic{
	TopicEconomic, TopicHealth, TopicSpiritual, TopicConspiracy, TopicScience, TopicCulture, TopicSport,
}

// InterestCategory enumerates the six interest buckets from §3.
type InterestCategory string

const (
	InterestEconomics   InterestCategory = "Economics"
	InterestWellbeing   InterestCategory = "Wellbeing"
	InterestSpirituality InterestCategory = "Spirituality"
	InterestKnowledge   InterestCategory = "Knowledge"
	InterestCreativity  InterestCategory = "Creativity"
	InterestSociety     InterestCategory = "Society"
)

// AllInterests lists every interest category in a fixed order.
var AllInterests = []InterestCategory{
	InterestEconomics, InterestWellbeing, InterestSpirituality, InterestKnowledge, InterestCreativity, InterestSociety,
}

// PurchaseLevel enumerates the three purchase tiers from §4.4.
type PurchaseLevel string

const (
	PurchaseL1 PurchaseLevel = "L1"
	PurchaseL2 PurchaseLevel = "L2"
	PurchaseL3 PurchaseLevel = "L3"
)

// PurchaseThreshold returns the financial_capability threshold required to
// attempt a purchase at the given level.
func PurchaseThreshold(level PurchaseLevel) float64 {
	switch level {
	case PurchaseL1:
		return 0.05
	case PurchaseL2:
		return 0.50
	case PurchaseL3:
		return 2.00
	default:
		return 1e9 // unreachable for a valid level; fails the gate safely
	}
}

// AttributeRange bounds a scalar attribute for a profession.
type AttributeRange struct {
	Min float64
	Max float64
}

// Midpoint returns (Min+Max)/2, used by DAILY_RESET to restore time_budget.
func (r AttributeRange) Midpoint() float64 {
	return (r.Min + r.Max) / 2
}

// ProfessionAttributes groups the four per-profession scalar ranges plus
// the profession's default time_budget range.
type ProfessionAttributes struct {
	FinancialCapability AttributeRange
	TrendReceptivity     AttributeRange
	SocialStatus         AttributeRange
	EnergyLevel          AttributeRange
	TimeBudget           AttributeRange
}

// EffectRow is a per-action set of attribute deltas, keyed by attribute name.
type EffectRow struct {
	TimeBudget    float64
	EnergyLevel   float64
	SocialStatus  float64
	Cost          float64 // for purchase levels: financial_capability delta (negative)
	EnergyCost    float64 // gate cost consulted by can_post, §4.4
	TimeCost      float64 // gate cost consulted by can_post/can_self_dev, §4.4
}

// StaticTables bundles every read-only lookup table named in §3, loaded once
// at bootstrap and never mutated afterward (§9 "Global mutable state").
type StaticTables struct {
	Affinity                map[Profession]map[Topic]int // 1..5
	ProfessionRanges        map[Profession]ProfessionAttributes
	InterestRanges          map[Profession]map[InterestCategory]AttributeRange
	TopicInterest           map[Topic]InterestCategory
	ShopWeights             map[Profession]float64
	ActionEffects           map[EventKind]EffectRow
	PostCooldownMin         float64
	SelfDevCooldownMin      float64
	MaxPurchasesDay         int
}

// AffinityFor returns the profession's affinity for topic, or 0 if unset.
func (s *StaticTables) AffinityFor(p Profession, t Topic) int {
	if row, ok := s.Affinity[p]; ok {
		return row[t]
	}
	return 0
}

// DefaultStaticTables returns the built-in lookup tables used when no
// override document is supplied via configuration. Values are chosen to
// satisfy §3's ranges and are internally consistent (every profession has a
// non-zero affinity for at least one topic; every topic maps to exactly one
// interest category).
func DefaultStaticTables() *StaticTables {
	t := &StaticTables{
		Affinity:         map[Profession]map[Topic]int{},
		ProfessionRanges: map[Profession]ProfessionAttributes{},
		InterestRanges:   map[Profession]map[InterestCategory]AttributeRange{},
		TopicInterest: map[Topic]InterestCategory{
			TopicEconomic:   InterestEconomics,
			TopicHealth:     InterestWellbeing,
			TopicSpiritual:  InterestSpirituality,
			TopicConspiracy: InterestKnowledge,
			TopicScience:    InterestKnowledge,
			TopicCulture:    InterestCreativity,
			TopicSport:      InterestWellbeing,
		},
		ShopWeights: map[Profession]float64{
			ProfessionShopClerk:       1.5,
			ProfessionWorker:          1.0,
			ProfessionDeveloper:       0.8,
			ProfessionPolitician:      1.2,
			ProfessionBlogger:         1.1,
			ProfessionBusinessman:     1.6,
			ProfessionSpiritualMentor: 0.6,
			ProfessionPhilosopher:     0.5,
			ProfessionUnemployed:      0.4,
			ProfessionTeacher:         0.9,
			ProfessionArtist:          0.7,
			ProfessionDoctor:          1.0,
		},
		ActionEffects: map[EventKind]EffectRow{
			EventPublishPost: {TimeBudget: -0.20, EnergyLevel: -0.50, SocialStatus: 0.10, TimeCost: 0.20, EnergyCost: 0.50},
			EventSelfDev:     {TimeBudget: -1.00, EnergyLevel: 0.80, TimeCost: 1.00},
		},
		PostCooldownMin:    60,
		SelfDevCooldownMin: 30,
		MaxPurchasesDay:    5,
	}

	for _, p := range AllProfessions {
		t.ProfessionRanges[p] = defaultProfessionAttributes(p)
		t.InterestRanges[p] = defaultInterestRanges(p)
		t.Affinity[p] = defaultAffinity(p)
	}

	t.ActionEffects[EventPurchaseL1] = EffectRow{Cost: -0.05}
	t.ActionEffects[EventPurchaseL2] = EffectRow{Cost: -0.50}
	t.ActionEffects[EventPurchaseL3] = EffectRow{Cost: -2.00}

	return t
}

func defaultProfessionAttributes(p Profession) ProfessionAttributes {
	// Base ranges are uniform-ish; a handful of professions get a skew that
	// matches their narrative role (e.g. Businessman skews financial).
	base := ProfessionAttributes{
		FinancialCapability: AttributeRange{0.5, 3.5},
		TrendReceptivity:    AttributeRange{0.5, 3.5},
		SocialStatus:        AttributeRange{0.5, 3.5},
		EnergyLevel:         AttributeRange{2.0, 5.0},
		TimeBudget:          AttributeRange{1.5, 4.0},
	}
	switch p {
	case ProfessionBusinessman:
		base.FinancialCapability = AttributeRange{2.0, 5.0}
	case ProfessionPolitician:
		base.SocialStatus = AttributeRange{2.5, 5.0}
	case ProfessionBlogger, ProfessionArtist:
		base.TrendReceptivity = AttributeRange{2.0, 5.0}
	case ProfessionUnemployed:
		base.FinancialCapability = AttributeRange{0.0, 1.0}
		base.TimeBudget = AttributeRange{3.0, 5.0}
	case ProfessionSpiritualMentor, ProfessionPhilosopher:
		base.FinancialCapability = AttributeRange{0.3, 2.0}
	}
	return base
}

func defaultInterestRanges(p Profession) map[InterestCategory]AttributeRange {
	ranges := map[InterestCategory]AttributeRange{}
	for _, ic := range AllInterests {
		ranges[ic] = AttributeRange{0.2, 2.0}
	}
	switch p {
	case ProfessionDeveloper, ProfessionTeacher:
		ranges[InterestKnowledge] = AttributeRange{1.5, 4.0}
	case ProfessionArtist, ProfessionBlogger:
		ranges[InterestCreativity] = AttributeRange{1.5, 4.0}
	case ProfessionSpiritualMentor, ProfessionPhilosopher:
		ranges[InterestSpirituality] = AttributeRange{1.5, 4.0}
	case ProfessionBusinessman, ProfessionPolitician:
		ranges[InterestEconomics] = AttributeRange{1.5, 4.0}
	case ProfessionDoctor:
		ranges[InterestWellbeing] = AttributeRange{1.5, 4.0}
	}
	return ranges
}

func defaultAffinity(p Profession) map[Topic]int {
	row := map[Topic]int{}
	for _, topic := range AllTopics {
		row[topic] = 1
	}
	switch p {
	case ProfessionBusinessman, ProfessionPolitician:
		row[TopicEconomic] = 5
	case ProfessionDoctor:
		row[TopicHealth] = 5
	case ProfessionSpiritualMentor:
		row[TopicSpiritual] = 5
	case ProfessionDeveloper, ProfessionTeacher:
		row[TopicScience] = 5
	case ProfessionArtist:
		row[TopicCulture] = 5
	case ProfessionBlogger:
		row[TopicConspiracy] = 4
		row[TopicCulture] = 4
	case ProfessionWorker:
		row[TopicSport] = 4
	case ProfessionPhilosopher:
		row[TopicSpiritual] = 3
		row[TopicScience] = 3
	case ProfessionShopClerk:
		row[TopicEconomic] = 3
	}
	return row
}

// Validate checks internal consistency of the static tables: every
// profession must have profession ranges, an affinity row and a shop
// weight, every affinity must be within [0,5], and every topic must map to
// an interest category. Shop weight values are not range-checked. Returns
// ErrConfigError wrapped with detail on the first violation found.
func (s *StaticTables) Validate() error {
	for _, p := range AllProfessions {
		if _, ok := s.ProfessionRanges[p]; !ok {
			return fmt.Errorf("%w: missing profession ranges for %s", ErrConfigError, p)
		}
		if _, ok := s.Affinity[p]; !ok {
			return fmt.Errorf("%w: missing affinity row for %s", ErrConfigError, p)
		}
		if _, ok := s.ShopWeights[p]; !ok {
			return fmt.Errorf("%w: missing shop weight for %s", ErrConfigError, p)
		}
	}
	for topic, row := range s.Affinity {
		for t, v := range row {
			if v < 0 || v > 5 {
				return fmt.Errorf("%w: affinity[%s][%s]=%d out of [0,5]", ErrConfigError, topic, t, v)
			}
		}
	}
	for _, topic := range AllTopics {
		if _, ok := s.TopicInterest[topic]; !ok {
			return fmt.Errorf("%w: missing topic->interest mapping for %s", ErrConfigError, topic)
		}
	}
	return nil
}
