// Package club defines clubs and their temporary buffs.
// This package is PURE and must NOT import any infrastructure packages.
package club

import "time"

// Club represents a student club competing for weekly reputation.
type Club struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Reputation    int     `json:"reputation"`
	ActivityScore float64 `json:"activity_score"`
}

// BuffType classifies what a club buff multiplies.
type BuffType string

const (
	BuffEXP       BuffType = "exp"
	BuffTUSD      BuffType = "tusd"
	BuffAttribute BuffType = "attribute"
)

// Buff is a temporary percentage modifier granted to all members of a club.
// At most one buff is active per club; a new buff overwrites the old one.
type Buff struct {
	Type      BuffType  `json:"type"`
	Value     float64   `json:"value"` // percent, e.g. 10 means +10%
	Attribute string    `json:"attribute,omitempty"`
	Expires   time.Time `json:"expires"`
}

// Expired reports whether the buff is past its expiry.
func (b Buff) Expired(now time.Time) bool {
	return !b.Expires.After(now)
}

// Multiplier returns the buff as a multiplicative factor.
func (b Buff) Multiplier() float64 {
	return 1 + b.Value/100
}
