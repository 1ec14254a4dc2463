package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/club"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/player"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/events"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an initialized database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// ---------------------------------------------------------
// Players
// ---------------------------------------------------------

func (s *SQLiteStore) GetPlayer(ctx context.Context, id string) (*player.Player, error) {
	query := `SELECT player_id, name, level, exp, tusd, reputation, hp, power, dexterity, intellect, club_id, techniques FROM players WHERE player_id = ?`
	var p player.Player
	var techniques string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Level, &p.EXP, &p.TUSD, &p.Reputation,
		&p.HP, &p.Power, &p.Dexterity, &p.Intellect, &p.ClubID, &techniques,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(techniques), &p.Techniques); err != nil {
		return nil, fmt.Errorf("failed to decode techniques for %s: %w", id, err)
	}
	return &p, nil
}

func (s *SQLiteStore) CreatePlayer(ctx context.Context, p *player.Player) error {
	techniques, err := json.Marshal(p.Techniques)
	if err != nil {
		return fmt.Errorf("failed to marshal techniques: %w", err)
	}
	if p.Techniques == nil {
		techniques = []byte("[]")
	}
	query := `
		INSERT INTO players (player_id, name, level, exp, tusd, reputation, hp, power, dexterity, intellect, club_id, techniques, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(player_id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Level, p.EXP, p.TUSD, p.Reputation,
		p.HP, p.Power, p.Dexterity, p.Intellect, p.ClubID, string(techniques), time.Now(),
	)
	return err
}

// allowed columns for UpdatePlayer patches.
var playerColumns = map[string]bool{
	"name": true, "level": true, "exp": true, "tusd": true, "reputation": true,
	"hp": true, "power": true, "dexterity": true, "intellect": true,
	"club_id": true, "techniques": true,
}

func (s *SQLiteStore) UpdatePlayer(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !playerColumns[k] {
			return fmt.Errorf("refusing to update unknown player column %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sets []string
	var args []any
	for _, k := range keys {
		v := fields[k]
		if k == "techniques" {
			encoded, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("failed to marshal techniques: %w", err)
			}
			v = string(encoded)
		}
		sets = append(sets, k+" = ?")
		args = append(args, v)
	}
	sets = append(sets, "last_updated = ?")
	args = append(args, time.Now(), id)

	query := "UPDATE players SET " + strings.Join(sets, ", ") + " WHERE player_id = ?"
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update player %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("player %s not found", id)
	}
	return nil
}

// ---------------------------------------------------------
// Clubs
// ---------------------------------------------------------

func (s *SQLiteStore) GetClub(ctx context.Context, id string) (*club.Club, error) {
	query := `SELECT club_id, name, reputation, activity_score FROM clubs WHERE club_id = ?`
	var c club.Club
	err := s.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Reputation, &c.ActivityScore)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) GetAllClubs(ctx context.Context) ([]club.Club, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT club_id, name, reputation, activity_score FROM clubs ORDER BY club_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clubs []club.Club
	for rows.Next() {
		var c club.Club
		if err := rows.Scan(&c.ID, &c.Name, &c.Reputation, &c.ActivityScore); err != nil {
			return nil, err
		}
		clubs = append(clubs, c)
	}
	return clubs, rows.Err()
}

func (s *SQLiteStore) UpsertClub(ctx context.Context, c *club.Club) error {
	query := `
		INSERT INTO clubs (club_id, name, reputation, activity_score, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(club_id) DO UPDATE SET
			name=excluded.name,
			reputation=excluded.reputation,
			activity_score=excluded.activity_score,
			last_updated=excluded.last_updated
	`
	_, err := s.db.ExecContext(ctx, query, c.ID, c.Name, c.Reputation, c.ActivityScore, time.Now())
	return err
}

func (s *SQLiteStore) UpdateClubReputationWeekly(ctx context.Context, id string, delta int) error {
	query := `UPDATE clubs SET reputation = reputation + ?, last_updated = ? WHERE club_id = ?`
	res, err := s.db.ExecContext(ctx, query, delta, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update club reputation %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("club %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) GetTopClubsByActivity(ctx context.Context, limit int) ([]club.Club, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT club_id, name, reputation, activity_score FROM clubs ORDER BY activity_score DESC, club_id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clubs []club.Club
	for rows.Next() {
		var c club.Club
		if err := rows.Scan(&c.ID, &c.Name, &c.Reputation, &c.ActivityScore); err != nil {
			return nil, err
		}
		clubs = append(clubs, c)
	}
	return clubs, rows.Err()
}

// ---------------------------------------------------------
// Events
// ---------------------------------------------------------

func (s *SQLiteStore) StoreEvent(ctx context.Context, rec events.Record) error {
	participants, err := json.Marshal(rec.Participants)
	if err != nil {
		return fmt.Errorf("failed to marshal participants: %w", err)
	}
	if rec.Participants == nil {
		participants = []byte("[]")
	}
	data := rec.Data
	if len(data) == 0 {
		data = []byte("{}")
	}

	query := `
		INSERT INTO events (id, event_type, channel_ref, message_ref, start_time, end_time, completed, participants, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			completed=excluded.completed,
			participants=excluded.participants,
			data=excluded.data
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.Type, rec.ChannelRef, rec.MessageRef,
		rec.StartTime, rec.EndTime, rec.Completed, string(participants), string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to store event %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*events.Record, error) {
	query := `SELECT id, event_type, channel_ref, message_ref, start_time, end_time, completed, participants, data FROM events WHERE id = ?`
	rec, err := scanEventRow(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStore) UpdateEventStatus(ctx context.Context, id string, completed bool, participants []string, data []byte) error {
	encoded, err := json.Marshal(participants)
	if err != nil {
		return fmt.Errorf("failed to marshal participants: %w", err)
	}
	if participants == nil {
		encoded = []byte("[]")
	}
	if len(data) == 0 {
		data = []byte("{}")
	}

	query := `UPDATE events SET completed = ?, participants = ?, data = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, completed, string(encoded), string(data), id)
	if err != nil {
		return fmt.Errorf("failed to update event %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) GetActiveEvents(ctx context.Context) (map[string]events.Record, error) {
	query := `SELECT id, event_type, channel_ref, message_ref, start_time, end_time, completed, participants, data FROM events WHERE completed = 0 ORDER BY start_time ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]events.Record)
	for rows.Next() {
		rec, err := scanEventRow(rows)
		if err != nil {
			return nil, err
		}
		out[rec.ID] = *rec
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEventRow(row rowScanner) (*events.Record, error) {
	var rec events.Record
	var participants, data string
	err := row.Scan(
		&rec.ID, &rec.Type, &rec.ChannelRef, &rec.MessageRef,
		&rec.StartTime, &rec.EndTime, &rec.Completed, &participants, &data,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(participants), &rec.Participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants for %s: %w", rec.ID, err)
	}
	rec.Data = json.RawMessage(data)
	return &rec, nil
}

// ---------------------------------------------------------
// System flags
// ---------------------------------------------------------

func (s *SQLiteStore) GetSystemFlag(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM system_flags WHERE name = ?`, name).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (s *SQLiteStore) SetSystemFlag(ctx context.Context, name, value string) error {
	query := `
		INSERT INTO system_flags (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, name, value, time.Now())
	return err
}

func (s *SQLiteStore) PruneSystemFlags(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM system_flags WHERE updated_at < ?`, before)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ---------------------------------------------------------
// Cooldowns
// ---------------------------------------------------------

func (s *SQLiteStore) StoreCooldown(ctx context.Context, userID, command string, expiry time.Time) error {
	query := `
		INSERT INTO cooldowns (user_id, command, expiry) VALUES (?, ?, ?)
		ON CONFLICT(user_id, command) DO UPDATE SET expiry=excluded.expiry
	`
	_, err := s.db.ExecContext(ctx, query, userID, command, expiry)
	return err
}

func (s *SQLiteStore) GetCooldowns(ctx context.Context) ([]CooldownRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, command, expiry FROM cooldowns`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CooldownRecord
	for rows.Next() {
		var rec CooldownRecord
		if err := rows.Scan(&rec.UserID, &rec.Command, &rec.Expiry); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ClearExpiredCooldowns(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cooldowns WHERE expiry < ?`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ---------------------------------------------------------
// Grades
// ---------------------------------------------------------

func (s *SQLiteStore) UpdatePlayerGrade(ctx context.Context, playerID, subject string, grade float64, at time.Time) error {
	query := `INSERT INTO player_grades (player_id, subject, grade, graded_at) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, playerID, subject, grade, at)
	return err
}

func (s *SQLiteStore) GetGradeAverages(ctx context.Context, from, to time.Time) (map[string]map[string]float64, error) {
	query := `
		SELECT player_id, subject, AVG(grade)
		FROM player_grades
		WHERE graded_at >= ? AND graded_at < ?
		GROUP BY player_id, subject
	`
	rows, err := s.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]map[string]float64)
	for rows.Next() {
		var playerID, subject string
		var avg float64
		if err := rows.Scan(&playerID, &subject, &avg); err != nil {
			return nil, err
		}
		if out[playerID] == nil {
			out[playerID] = make(map[string]float64)
		}
		out[playerID][subject] = avg
	}
	return out, rows.Err()
}
