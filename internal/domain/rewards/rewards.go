// Package rewards defines the fixed-shape reward delta applied to players
// when world events resolve, and the buff-stacking math around it.
// This package is PURE and must NOT import any infrastructure packages.
package rewards

import "math"

// AttributeBuff is a timed percentage boost to one named attribute,
// granted by rare collectibles.
type AttributeBuff struct {
	Attribute     string  `json:"attribute"`
	Percent       float64 `json:"percent"`
	DurationHours int     `json:"duration_hours"`
}

// Delta is the set of numeric changes applied to a player record.
// Zero-valued fields mean "no change"; deltas sum field-wise.
type Delta struct {
	EXP        int             `json:"exp,omitempty"`
	TUSD       int             `json:"tusd,omitempty"`
	Reputation int             `json:"reputation,omitempty"`
	HPLoss     int             `json:"hp_loss,omitempty"`
	Buffs      []AttributeBuff `json:"buffs,omitempty"`
}

// Add returns the field-wise sum of two deltas.
func (d Delta) Add(other Delta) Delta {
	return Delta{
		EXP:        d.EXP + other.EXP,
		TUSD:       d.TUSD + other.TUSD,
		Reputation: d.Reputation + other.Reputation,
		HPLoss:     d.HPLoss + other.HPLoss,
		Buffs:      append(append([]AttributeBuff(nil), d.Buffs...), other.Buffs...),
	}
}

// Scale multiplies the numeric fields of the delta, rounding to nearest.
// Buffs are not scaled; they are all-or-nothing grants.
func (d Delta) Scale(mult float64) Delta {
	return Delta{
		EXP:        int(math.Round(float64(d.EXP) * mult)),
		TUSD:       int(math.Round(float64(d.TUSD) * mult)),
		Reputation: int(math.Round(float64(d.Reputation) * mult)),
		HPLoss:     d.HPLoss,
		Buffs:      d.Buffs,
	}
}

// WithEXPBuff applies a percentage exp buff exactly once.
func (d Delta) WithEXPBuff(percent float64) Delta {
	d.EXP = int(math.Round(float64(d.EXP) * (1 + percent/100)))
	return d
}

// WithTUSDBuff applies a percentage currency buff exactly once.
func (d Delta) WithTUSDBuff(percent float64) Delta {
	d.TUSD = int(math.Round(float64(d.TUSD) * (1 + percent/100)))
	return d
}

// ApplyTUSD applies a currency delta to a balance. Balances never go
// negative: any decrement is floored at zero.
func ApplyTUSD(balance, delta int) int {
	result := balance + delta
	if result < 0 {
		return 0
	}
	return result
}
