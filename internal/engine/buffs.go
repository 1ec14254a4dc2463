package engine

import (
	"math/rand"
	"sync"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/club"
)

// buffableAttributes a daily club buff may boost.
var buffableAttributes = []string{"power", "dexterity", "intellect"}

// ClubBuffs tracks the single active buff per club. New buffs overwrite;
// expired buffs are purged lazily on read and on regeneration cycles.
type ClubBuffs struct {
	mu    sync.Mutex
	buffs map[string]club.Buff
}

// NewClubBuffs starts with no active buffs.
func NewClubBuffs() *ClubBuffs {
	return &ClubBuffs{buffs: make(map[string]club.Buff)}
}

// Set installs (or overwrites) the active buff for a club.
func (cb *ClubBuffs) Set(clubID string, b club.Buff) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.buffs[clubID] = b
}

// Get returns the active buff for a club, purging it if expired.
func (cb *ClubBuffs) Get(clubID string, now time.Time) (club.Buff, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	b, ok := cb.buffs[clubID]
	if !ok {
		return club.Buff{}, false
	}
	if b.Expired(now) {
		delete(cb.buffs, clubID)
		return club.Buff{}, false
	}
	return b, true
}

// EXPPercent returns the exp buff percent for a club, or 0.
func (cb *ClubBuffs) EXPPercent(clubID string, now time.Time) float64 {
	if b, ok := cb.Get(clubID, now); ok && b.Type == club.BuffEXP {
		return b.Value
	}
	return 0
}

// TUSDPercent returns the currency buff percent for a club, or 0.
func (cb *ClubBuffs) TUSDPercent(clubID string, now time.Time) float64 {
	if b, ok := cb.Get(clubID, now); ok && b.Type == club.BuffTUSD {
		return b.Value
	}
	return 0
}

// AttributePercent returns the attribute buff percent for a club, or 0.
func (cb *ClubBuffs) AttributePercent(clubID string, now time.Time) float64 {
	if b, ok := cb.Get(clubID, now); ok && b.Type == club.BuffAttribute {
		return b.Value
	}
	return 0
}

// Regenerate rolls a fresh 24-hour buff for every club. Called by the daily
// reset; old buffs (expired or not) are replaced.
func (cb *ClubBuffs) Regenerate(clubIDs []string, now time.Time, r *rand.Rand) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.buffs = make(map[string]club.Buff, len(clubIDs))
	types := []club.BuffType{club.BuffEXP, club.BuffTUSD, club.BuffAttribute}
	for _, id := range clubIDs {
		b := club.Buff{
			Type:    types[r.Intn(len(types))],
			Value:   float64(5 + r.Intn(11)), // 5-15%
			Expires: now.Add(24 * time.Hour),
		}
		if b.Type == club.BuffAttribute {
			b.Attribute = buffableAttributes[r.Intn(len(buffableAttributes))]
		}
		cb.buffs[id] = b
	}
}
