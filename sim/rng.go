package sim

import (
	"hash/fnv"
	"math/rand"
)

// Subsystem names for PartitionedRNG. Isolating randomness per concern
// means a change to, say, influence sampling never perturbs agent
// bootstrap attribute draws for the same seed — required for P9 (given
// equal seed and configuration, two runs produce identical event sequences).
const (
	SubsystemBootstrap = "bootstrap"
	SubsystemDecision  = "decision"
	SubsystemTrend     = "trend"
	SubsystemInfluence = "influence"
)

// PartitionedRNG provides deterministic, isolated *rand.Rand instances per
// subsystem, derived from a single master seed. Adapted from the teacher's
// sim/rng.go PartitionedRNG; the engine owns the single instance per §5 and
// no other goroutine consumes randomness from it.
type PartitionedRNG struct {
	seed       int64
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a master seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{
		seed:       seed,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded *rand.Rand for name,
// caching the instance so repeated calls advance the same stream.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	derived := p.seed ^ fnv1a64(name)
	rng := rand.New(rand.NewSource(derived))
	p.subsystems[name] = rng
	return rng
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}

// RandFloat64 is the minimal RNG surface weighted sampling needs, satisfied
// by *rand.Rand's Float64 method. Kept as an interface so callers (and
// tests) can supply a deterministic stub without constructing a full
// PartitionedRNG.
type RandFloat64 interface {
	Float64() float64
}

// WeightedSample performs score-weighted random sampling over candidates
// using a prefix-sum + uniform-draw + binary-search routine, per §9
// ("Dynamic selection / weighted sampling"). Candidates and scores must be
// the same length and sorted by candidate name ascending by the caller for
// deterministic tie-breaking: the caller's order fixes which span of the
// prefix sum each candidate occupies, and the binary search compares only
// prefix sums, never names.
func WeightedSample(rng RandFloat64, names []string, scores []float64) (string, bool) {
	if len(names) == 0 || len(names) != len(scores) {
		return "", false
	}
	total := 0.0
	prefix := make([]float64, len(scores))
	for i, s := range scores {
		total += s
		prefix[i] = total
	}
	if total <= 0 {
		return "", false
	}
	draw := rng.Float64() * total
	idx := lowerBound(prefix, draw)
	return names[idx], true
}

// lowerBound returns the first index i such that prefix[i] > draw, using
// binary search. Guaranteed to return a valid index given draw < prefix[last].
func lowerBound(prefix []float64, draw float64) int {
	lo, hi := 0, len(prefix)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if prefix[mid] > draw {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}
