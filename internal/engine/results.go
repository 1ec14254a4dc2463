package engine

import "github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rewards"

// Announcer is the outbound half of the presentation boundary. The engine
// hands it plain payloads; rendering happens entirely outside the core.
type Announcer interface {
	Announce(kind string, channelRef string, body any)
}

// nopAnnouncer is used when no hub is wired (tests).
type nopAnnouncer struct{}

func (nopAnnouncer) Announce(kind string, channelRef string, body any) {}

// AttackResult is returned by minion and villain participation calls.
type AttackResult struct {
	OK                  bool          `json:"ok"`
	OnCooldown          bool          `json:"on_cooldown,omitempty"`
	NotFound            bool          `json:"not_found"`
	AlreadyParticipated bool          `json:"already_participated"`
	Defeated            bool          `json:"defeated"`
	Damage              float64       `json:"damage,omitempty"`
	RemainingHP         float64       `json:"remaining_hp,omitempty"`
	Name                string        `json:"name,omitempty"`
	Rewards             rewards.Delta `json:"rewards"`
}

// CollectResult is returned by collectible participation calls.
type CollectResult struct {
	OK             bool          `json:"ok"`
	OnCooldown     bool          `json:"on_cooldown,omitempty"`
	NotFound       bool          `json:"not_found"`
	AlreadyClaimed bool          `json:"already_claimed"`
	Name           string        `json:"name,omitempty"`
	Item           string        `json:"item,omitempty"`
	Rewards        rewards.Delta `json:"rewards"`
}

// QuizResult is returned by daily-subject answer calls.
type QuizResult struct {
	OK               bool          `json:"ok"`
	NotFound         bool          `json:"not_found"`
	AlreadyAnswered  bool          `json:"already_answered"`
	Correct          bool          `json:"correct"`
	Grade            float64       `json:"grade"`
	TechniqueLearned string        `json:"technique_learned,omitempty"`
	Rewards          rewards.Delta `json:"rewards"`
}

// JoinResult is returned by tournament and turf-wars signup calls.
type JoinResult struct {
	OK       bool   `json:"ok"`
	NotFound bool   `json:"not_found"`
	Reason   string `json:"reason,omitempty"`
}
