package rules

import "math/rand"

// Damage computes one villain attack by a player.
// Base formula: (10 + level*2) + 0.5*power + 0.3*dexterity, scaled by the
// player's club attribute buff and a +/-20% random jitter.
func Damage(level, power, dexterity int, attrBuffPercent float64, r *rand.Rand) float64 {
	base := float64(10+level*2) + 0.5*float64(power) + 0.3*float64(dexterity)
	base *= 1 + attrBuffPercent/100
	jitter := 0.8 + r.Float64()*0.4
	return base * jitter
}

// DuelScore computes a tournament match score: level scaled by uniform
// (0.8, 1.2). The higher score wins the match.
func DuelScore(level int, r *rand.Rand) float64 {
	return float64(level) * (0.8 + r.Float64()*0.4)
}

// ParticipationBonus rewards cooperative villain takedowns. More attackers
// means a bigger pot for everyone, capped at 3x.
func ParticipationBonus(participantCount int) float64 {
	bonus := 1.0 + 0.1*float64(participantCount)
	if bonus > 3.0 {
		return 3.0
	}
	return bonus
}

// HourFactor boosts random-event probability during evening peak hours and
// halves it late at night.
func HourFactor(hour int) float64 {
	switch {
	case hour >= 18 && hour <= 23:
		return 2.0
	case hour >= 0 && hour < 7:
		return 0.5
	default:
		return 1.0
	}
}

// RoleMultiplier applies turf-wars role weight to a fighter's score.
func RoleMultiplier(role string) float64 {
	switch role {
	case "queen":
		return 1.2
	case "jack":
		return 1.1
	default:
		return 1.0
	}
}
