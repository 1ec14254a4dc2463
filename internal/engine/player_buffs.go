package engine

import (
	"sync"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rewards"
)

// timedBuff is an attribute buff granted to one player, live until expiry.
type timedBuff struct {
	Attribute string
	Percent   float64
	Expires   time.Time
}

// PlayerBuffs tracks the timed attribute buffs collectibles grant to
// individual players. A player may hold several at once; expired buffs are
// purged lazily on read.
type PlayerBuffs struct {
	mu    sync.Mutex
	buffs map[string][]timedBuff
}

// NewPlayerBuffs starts with no active buffs.
func NewPlayerBuffs() *PlayerBuffs {
	return &PlayerBuffs{buffs: make(map[string][]timedBuff)}
}

// Grant installs a buff for a player. Zero-percent or zero-duration buffs
// are ignored.
func (pb *PlayerBuffs) Grant(playerID string, b rewards.AttributeBuff, now time.Time) {
	if b.Percent == 0 || b.DurationHours <= 0 {
		return
	}
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.buffs[playerID] = append(pb.buffs[playerID], timedBuff{
		Attribute: b.Attribute,
		Percent:   b.Percent,
		Expires:   now.Add(time.Duration(b.DurationHours) * time.Hour),
	})
}

// AttributePercent sums the player's active buffs for one attribute.
func (pb *PlayerBuffs) AttributePercent(playerID, attribute string, now time.Time) float64 {
	total := 0.0
	for _, b := range pb.active(playerID, now) {
		if b.Attribute == attribute {
			total += b.Percent
		}
	}
	return total
}

// CombatPercent sums the player's active buffs on combat attributes, the
// ones the damage roll reads.
func (pb *PlayerBuffs) CombatPercent(playerID string, now time.Time) float64 {
	total := 0.0
	for _, b := range pb.active(playerID, now) {
		if b.Attribute == "power" || b.Attribute == "dexterity" {
			total += b.Percent
		}
	}
	return total
}

// active returns a copy of the player's live buffs, dropping expired ones.
func (pb *PlayerBuffs) active(playerID string, now time.Time) []timedBuff {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	var live []timedBuff
	for _, b := range pb.buffs[playerID] {
		if b.Expires.After(now) {
			live = append(live, b)
		}
	}
	if len(live) == 0 {
		delete(pb.buffs, playerID)
		return nil
	}
	pb.buffs[playerID] = live
	return live
}
