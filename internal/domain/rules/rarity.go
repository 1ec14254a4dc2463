package rules

import "math/rand"

// Rarity tiers for minions and collectibles.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// rarityWeights is the spawn distribution for minion/collectible rarities.
var rarityWeights = map[string]float64{
	string(RarityCommon):    0.60,
	string(RarityUncommon):  0.25,
	string(RarityRare):      0.10,
	string(RarityEpic):      0.04,
	string(RarityLegendary): 0.01,
}

// rarityMultipliers scale base reward ranges per rarity.
var rarityMultipliers = map[Rarity]float64{
	RarityCommon:    1,
	RarityUncommon:  2,
	RarityRare:      3.5,
	RarityEpic:      5,
	RarityLegendary: 10,
}

// PickRarity samples a rarity from the standard spawn table.
func PickRarity(r *rand.Rand) Rarity {
	return Rarity(WeightedChoice(rarityWeights, r))
}

// RarityMultiplier returns the reward multiplier for a rarity.
// Unknown rarities fall back to common.
func RarityMultiplier(rar Rarity) float64 {
	if m, ok := rarityMultipliers[rar]; ok {
		return m
	}
	return 1
}
