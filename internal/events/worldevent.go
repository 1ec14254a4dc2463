// Package events provides the active world-event model and the in-memory
// registry that is the single source of truth for everything currently
// happening in the world, mirrored best-effort to durable storage.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rewards"
)

// EventType categorizes a world event.
type EventType string

const (
	EventTypeMinion       EventType = "minion"
	EventTypeVillain      EventType = "villain"
	EventTypeCollectible  EventType = "collectible"
	EventTypeTournament   EventType = "tournament"
	EventTypeTurfWars     EventType = "turf_wars"
	EventTypeDailySubject EventType = "daily_subject"
	EventTypeDiaDeMateria EventType = "dia_de_materia"
	EventTypeNarrative    EventType = "narrative"
)

// Special events (tournament, turf wars) are exempt from the random-event
// concurrency cap.
func (t EventType) Special() bool {
	return t == EventTypeTournament || t == EventTypeTurfWars
}

// Payload is the tagged variant carried by a WorldEvent. Each event type owns
// one payload shape; Kind ties the two together for persistence round-trips.
type Payload interface {
	Kind() EventType
}

// MinionPayload: first successful attack wins the whole reward.
type MinionPayload struct {
	Name             string `json:"name"`
	Rarity           string `json:"rarity"`
	Defeated         bool   `json:"defeated"`
	EXPReward        int    `json:"exp_reward"`
	TUSDReward       int    `json:"tusd_reward"`
	ReputationReward int    `json:"reputation_reward"`
}

func (*MinionPayload) Kind() EventType { return EventTypeMinion }

// VillainPayload: cooperative HP pool, rewards fan out to all attackers.
type VillainPayload struct {
	Name                 string  `json:"name"`
	Tier                 string  `json:"tier"`
	Strength             float64 `json:"strength"`
	CurrentHP            float64 `json:"current_hp"`
	Defeated             bool    `json:"defeated"`
	Escaped              bool    `json:"escaped"`
	BaseEXPReward        int     `json:"base_exp_reward"`
	BaseTUSDReward       int     `json:"base_tusd_reward"`
	BaseReputationReward int     `json:"base_reputation_reward"`
}

func (*VillainPayload) Kind() EventType { return EventTypeVillain }

// CollectiblePayload: like a minion, but the prize includes a timed
// attribute buff alongside the usual rewards.
type CollectiblePayload struct {
	Name             string                `json:"name"`
	Rarity           string                `json:"rarity"`
	Collected        bool                  `json:"collected"`
	Item             string                `json:"item"`
	Buff             rewards.AttributeBuff `json:"buff"`
	EXPReward        int                   `json:"exp_reward"`
	TUSDReward       int                   `json:"tusd_reward"`
	ReputationReward int                   `json:"reputation_reward"`
}

func (*CollectiblePayload) Kind() EventType { return EventTypeCollectible }

// TournamentPayload tracks the Wednesday bracket through its phases.
type TournamentPayload struct {
	Phase    string   `json:"phase"` // "signup" | "running" | "done"
	Entrants []string `json:"entrants"`
	Champion string   `json:"champion,omitempty"`
	TrophyID string   `json:"trophy_id,omitempty"`
}

func (*TournamentPayload) Kind() EventType { return EventTypeTournament }

// TurfTeam is one self-assembled four-role team.
type TurfTeam struct {
	Name    string            `json:"name"`
	Members map[string]string `json:"members"` // playerID -> role (monarch/queen/jack/healer)
	Wins    int               `json:"wins"`
}

// TurfWarsPayload tracks the Sunday all-pairs team competition.
type TurfWarsPayload struct {
	Phase string               `json:"phase"`
	Teams map[string]*TurfTeam `json:"teams"`
}

func (*TurfWarsPayload) Kind() EventType { return EventTypeTurfWars }

// Question is one quiz question of the daily subject.
type Question struct {
	Prompt     string   `json:"prompt"`
	Options    []string `json:"options"`
	Answer     int      `json:"answer"`
	Difficulty int      `json:"difficulty"` // 1-5
}

// SubjectPayload is the day's answerable subject quiz.
type SubjectPayload struct {
	Subject    string     `json:"subject"`
	Difficulty int        `json:"difficulty"` // 1-5
	Questions  []Question `json:"questions"`
}

func (*SubjectPayload) Kind() EventType { return EventTypeDailySubject }

// MateriaPayload is the 09:00 subject-day announcement marker.
type MateriaPayload struct {
	Subject string `json:"subject"`
}

func (*MateriaPayload) Kind() EventType { return EventTypeDiaDeMateria }

// NarrativePayload schedules a story beat; the dialogue tree itself lives
// outside the core.
type NarrativePayload struct {
	Chapter   string `json:"chapter"`
	Beat      string `json:"beat"`
	Triggered bool   `json:"triggered"`
}

func (*NarrativePayload) Kind() EventType { return EventTypeNarrative }

// WorldEvent is an active occurrence in the world. EndTime is the sole
// expiry authority; Participants enforces at-most-once-per-player semantics.
type WorldEvent struct {
	ID           string
	Type         EventType
	ChannelRef   string
	MessageRef   string
	StartTime    time.Time
	EndTime      time.Time
	Participants []string
	Resolved     bool
	Payload      Payload
}

// NewEventID builds the registry key: type plus spawn timestamp with
// millisecond precision, e.g. "villain_1699999999.123".
func NewEventID(t EventType, now time.Time) string {
	return fmt.Sprintf("%s_%d.%03d", t, now.Unix(), now.Nanosecond()/1e6)
}

// Expired reports whether the event's lifetime has elapsed.
func (e *WorldEvent) Expired(now time.Time) bool {
	return e.EndTime.Before(now)
}

// HasParticipant reports whether a player already interacted with the event.
func (e *WorldEvent) HasParticipant(playerID string) bool {
	for _, p := range e.Participants {
		if p == playerID {
			return true
		}
	}
	return false
}

// AddParticipant records a player interaction, preserving order.
func (e *WorldEvent) AddParticipant(playerID string) {
	e.Participants = append(e.Participants, playerID)
}

// Record is the durable form of a WorldEvent, shared by the SQLite mirror
// and the registry snapshots.
type Record struct {
	ID           string          `json:"id"`
	Type         string          `json:"event_type"`
	ChannelRef   string          `json:"channel_ref"`
	MessageRef   string          `json:"message_ref"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      time.Time       `json:"end_time"`
	Completed    bool            `json:"completed"`
	Participants []string        `json:"participants"`
	Data         json.RawMessage `json:"data"`
}

// ToRecord serializes the event for durable storage.
func (e *WorldEvent) ToRecord() (Record, error) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return Record{}, fmt.Errorf("failed to marshal payload for %s: %w", e.ID, err)
	}
	participants := e.Participants
	if participants == nil {
		participants = []string{}
	}
	return Record{
		ID:           e.ID,
		Type:         string(e.Type),
		ChannelRef:   e.ChannelRef,
		MessageRef:   e.MessageRef,
		StartTime:    e.StartTime,
		EndTime:      e.EndTime,
		Completed:    e.Resolved,
		Participants: append([]string{}, participants...),
		Data:         data,
	}, nil
}

// FromRecord rebuilds a WorldEvent from its durable form. Unknown event
// types are rejected so corrupt rows cannot enter the registry.
func FromRecord(rec Record) (*WorldEvent, error) {
	payload, err := decodePayload(EventType(rec.Type), rec.Data)
	if err != nil {
		return nil, err
	}
	return &WorldEvent{
		ID:           rec.ID,
		Type:         EventType(rec.Type),
		ChannelRef:   rec.ChannelRef,
		MessageRef:   rec.MessageRef,
		StartTime:    rec.StartTime,
		EndTime:      rec.EndTime,
		Participants: append([]string(nil), rec.Participants...),
		Resolved:     rec.Completed,
		Payload:      payload,
	}, nil
}

func decodePayload(t EventType, data json.RawMessage) (Payload, error) {
	var p Payload
	switch t {
	case EventTypeMinion:
		p = &MinionPayload{}
	case EventTypeVillain:
		p = &VillainPayload{}
	case EventTypeCollectible:
		p = &CollectiblePayload{}
	case EventTypeTournament:
		p = &TournamentPayload{}
	case EventTypeTurfWars:
		p = &TurfWarsPayload{}
	case EventTypeDailySubject:
		p = &SubjectPayload{}
	case EventTypeDiaDeMateria:
		p = &MateriaPayload{}
	case EventTypeNarrative:
		p = &NarrativePayload{}
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", t, err)
		}
	}
	return p, nil
}
