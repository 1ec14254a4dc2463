// Package storage provides the persistence layer for the world-event engine.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// InitSQLite initializes the local SQLite database and creates the schemas
// for events, system flags, cooldowns, players, clubs, and grades.
func InitSQLite(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := createSchemas(db); err != nil {
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	return db, nil
}

func createSchemas(db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			channel_ref TEXT NOT NULL DEFAULT '',
			message_ref TEXT NOT NULL DEFAULT '',
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT 0,
			participants TEXT NOT NULL DEFAULT '[]',
			data TEXT NOT NULL DEFAULT '{}'
		);`,
		`CREATE TABLE IF NOT EXISTS system_flags (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS cooldowns (
			user_id TEXT NOT NULL,
			command TEXT NOT NULL,
			expiry DATETIME NOT NULL,
			PRIMARY KEY (user_id, command)
		);`,
		`CREATE TABLE IF NOT EXISTS players (
			player_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			level INTEGER NOT NULL DEFAULT 1,
			exp INTEGER NOT NULL DEFAULT 0,
			tusd INTEGER NOT NULL DEFAULT 0,
			reputation INTEGER NOT NULL DEFAULT 0,
			hp INTEGER NOT NULL DEFAULT 100,
			power INTEGER NOT NULL DEFAULT 5,
			dexterity INTEGER NOT NULL DEFAULT 5,
			intellect INTEGER NOT NULL DEFAULT 5,
			club_id TEXT NOT NULL DEFAULT '',
			techniques TEXT NOT NULL DEFAULT '[]',
			last_updated DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS clubs (
			club_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			reputation INTEGER NOT NULL DEFAULT 0,
			activity_score REAL NOT NULL DEFAULT 0,
			last_updated DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS player_grades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			player_id TEXT NOT NULL,
			subject TEXT NOT NULL,
			grade REAL NOT NULL,
			graded_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_completed ON events(completed);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);`,
		`CREATE INDEX IF NOT EXISTS idx_grades_player ON player_grades(player_id);`,
		`CREATE INDEX IF NOT EXISTS idx_grades_graded_at ON player_grades(graded_at);`,
	}

	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}
