package rules

import (
	"math/rand"
	"time"
)

// Villain tiers. Higher tiers are stronger, rarer, and live longer.
type Tier string

const (
	Tier1 Tier = "tier1"
	Tier2 Tier = "tier2"
	Tier3 Tier = "tier3"
)

// VillainBaseStrength is the anchor for strength scaling.
const VillainBaseStrength = 100.0

var tierBaseWeights = map[string]float64{
	string(Tier1): 0.70,
	string(Tier2): 0.25,
	string(Tier3): 0.05,
}

var tierMultipliers = map[Tier]float64{
	Tier1: 1.0,
	Tier2: 1.8,
	Tier3: 3.0,
}

var tierDurations = map[Tier]time.Duration{
	Tier1: 2 * time.Hour,
	Tier2: 3 * time.Hour,
	Tier3: 4 * time.Hour,
}

// PickTier selects a villain tier. Peak evening hours and high server
// activity shift weight away from tier1 toward tier3.
func PickTier(hour int, activityFactor float64, r *rand.Rand) Tier {
	weights := make(map[string]float64, len(tierBaseWeights))
	for k, v := range tierBaseWeights {
		weights[k] = v
	}

	if hour >= 18 && hour <= 23 {
		weights[string(Tier1)] *= 0.8
		weights[string(Tier3)] *= 2.0
	}
	if activityFactor > 2.0 {
		weights[string(Tier2)] *= 1.3
		weights[string(Tier3)] *= 1.6
	}

	return Tier(WeightedChoice(weights, r))
}

// TierMultiplier returns the strength multiplier for a tier.
func TierMultiplier(t Tier) float64 {
	if m, ok := tierMultipliers[t]; ok {
		return m
	}
	return 1.0
}

// TierDuration returns how long a villain of this tier stays attackable.
// Long windows let cooperative damage build up.
func TierDuration(t Tier) time.Duration {
	if d, ok := tierDurations[t]; ok {
		return d
	}
	return 2 * time.Hour
}

// VillainStrength computes the HP pool for a freshly spawned villain.
// activityMultiplier comes from total server activity and is clamped to [1,3].
func VillainStrength(tier Tier, activityMultiplier float64) float64 {
	if activityMultiplier < 1.0 {
		activityMultiplier = 1.0
	}
	if activityMultiplier > 3.0 {
		activityMultiplier = 3.0
	}
	return VillainBaseStrength * activityMultiplier * TierMultiplier(tier)
}
