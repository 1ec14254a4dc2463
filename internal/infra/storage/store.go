package storage

import (
	"context"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/club"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/player"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/events"
)

// PlayerStore persists player records. Updates are atomic per row.
type PlayerStore interface {
	GetPlayer(ctx context.Context, id string) (*player.Player, error)
	CreatePlayer(ctx context.Context, p *player.Player) error

	// UpdatePlayer patches the named fields. Allowed keys: name, level,
	// exp, tusd, reputation, hp, power, dexterity, intellect, club_id,
	// techniques.
	UpdatePlayer(ctx context.Context, id string, fields map[string]any) error
}

// ClubStore persists clubs and weekly reputation movement.
type ClubStore interface {
	GetClub(ctx context.Context, id string) (*club.Club, error)
	GetAllClubs(ctx context.Context) ([]club.Club, error)
	UpsertClub(ctx context.Context, c *club.Club) error
	UpdateClubReputationWeekly(ctx context.Context, id string, delta int) error
	GetTopClubsByActivity(ctx context.Context, limit int) ([]club.Club, error)
}

// EventStore mirrors the in-memory registry.
type EventStore interface {
	StoreEvent(ctx context.Context, rec events.Record) error
	GetEvent(ctx context.Context, id string) (*events.Record, error)
	UpdateEventStatus(ctx context.Context, id string, completed bool, participants []string, data []byte) error
	GetActiveEvents(ctx context.Context) (map[string]events.Record, error)
}

// FlagStore persists the idempotency flags consulted by the scheduler and
// the recovery routine.
type FlagStore interface {
	GetSystemFlag(ctx context.Context, name string) (string, error)
	SetSystemFlag(ctx context.Context, name, value string) error

	// PruneSystemFlags deletes flags last written before the given time.
	PruneSystemFlags(ctx context.Context, before time.Time) (int, error)
}

// CooldownRecord is one durable cooldown row.
type CooldownRecord struct {
	UserID  string
	Command string
	Expiry  time.Time
}

// CooldownStore mirrors command cooldowns so restarts do not reset them.
type CooldownStore interface {
	StoreCooldown(ctx context.Context, userID, command string, expiry time.Time) error
	GetCooldowns(ctx context.Context) ([]CooldownRecord, error)
	ClearExpiredCooldowns(ctx context.Context, now time.Time) (int, error)
}

// GradeStore records quiz grades and answers month-end queries.
type GradeStore interface {
	UpdatePlayerGrade(ctx context.Context, playerID, subject string, grade float64, at time.Time) error

	// GetGradeAverages returns per-player per-subject grade averages for
	// rows graded in [from, to).
	GetGradeAverages(ctx context.Context, from, to time.Time) (map[string]map[string]float64, error)
}

// Store is the full durable contract consumed by the engine.
type Store interface {
	PlayerStore
	ClubStore
	EventStore
	FlagStore
	CooldownStore
	GradeStore
}
