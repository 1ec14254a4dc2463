package engine

import (
	"sort"
	"sync"
)

// PlayerProgress aggregates one player's period totals for leaderboards.
type PlayerProgress struct {
	PlayerID        string `json:"player_id"`
	EXPGained       int    `json:"exp_gained"`
	DuelsWon        int    `json:"duels_won"`
	EventsCompleted int    `json:"events_completed"`
}

// ProgressTracker holds the daily and weekly leaderboard aggregates.
// Ephemeral by design: a restart silently resets both periods.
type ProgressTracker struct {
	mu     sync.Mutex
	daily  map[string]*PlayerProgress
	weekly map[string]*PlayerProgress
}

// NewProgressTracker starts with empty aggregates.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		daily:  make(map[string]*PlayerProgress),
		weekly: make(map[string]*PlayerProgress),
	}
}

func (t *ProgressTracker) entryLocked(m map[string]*PlayerProgress, playerID string) *PlayerProgress {
	p, ok := m[playerID]
	if !ok {
		p = &PlayerProgress{PlayerID: playerID}
		m[playerID] = p
	}
	return p
}

// RecordEXP adds experience to both periods.
func (t *ProgressTracker) RecordEXP(playerID string, exp int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entryLocked(t.daily, playerID).EXPGained += exp
	t.entryLocked(t.weekly, playerID).EXPGained += exp
}

// RecordDuelWin counts a tournament or turf-wars match win.
func (t *ProgressTracker) RecordDuelWin(playerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entryLocked(t.daily, playerID).DuelsWon++
	t.entryLocked(t.weekly, playerID).DuelsWon++
}

// RecordEventCompleted counts a resolved world-event participation.
func (t *ProgressTracker) RecordEventCompleted(playerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entryLocked(t.daily, playerID).EventsCompleted++
	t.entryLocked(t.weekly, playerID).EventsCompleted++
}

// leaderboard returns entries sorted by exp desc, then duels, then id.
func leaderboard(m map[string]*PlayerProgress) []PlayerProgress {
	out := make([]PlayerProgress, 0, len(m))
	for _, p := range m {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EXPGained != out[j].EXPGained {
			return out[i].EXPGained > out[j].EXPGained
		}
		if out[i].DuelsWon != out[j].DuelsWon {
			return out[i].DuelsWon > out[j].DuelsWon
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out
}

// DailyLeaderboard returns the current daily standings.
func (t *ProgressTracker) DailyLeaderboard() []PlayerProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return leaderboard(t.daily)
}

// WeeklyLeaderboard returns the current weekly standings.
func (t *ProgressTracker) WeeklyLeaderboard() []PlayerProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return leaderboard(t.weekly)
}

// ResetDaily clears the daily aggregates and returns the final standings.
func (t *ProgressTracker) ResetDaily() []PlayerProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	final := leaderboard(t.daily)
	t.daily = make(map[string]*PlayerProgress)
	return final
}

// ResetWeekly clears the weekly aggregates and returns the final standings.
func (t *ProgressTracker) ResetWeekly() []PlayerProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	final := leaderboard(t.weekly)
	t.weekly = make(map[string]*PlayerProgress)
	return final
}
