// Package player defines the core domain entity for academy students.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package player

// Player represents the persistent state of one student in the academy.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Progression
	Level      int `json:"level"`
	EXP        int `json:"exp"`
	TUSD       int `json:"tusd"` // Academy currency, never negative
	Reputation int `json:"reputation"`

	// Attributes
	HP        int `json:"hp"`        // 0-100
	Power     int `json:"power"`     // Physical attack stat
	Dexterity int `json:"dexterity"` // Speed/precision stat
	Intellect int `json:"intellect"` // Drives quiz grades

	// Affiliation
	ClubID string `json:"club_id"`

	// Techniques learned through quizzes and training
	Techniques []string `json:"techniques"`
}

// NewPlayer creates a fresh first-year student with baseline stats.
func NewPlayer(id, name string) *Player {
	return &Player{
		ID:        id,
		Name:      name,
		Level:     1,
		HP:        100,
		Power:     5,
		Dexterity: 5,
		Intellect: 5,
	}
}

// Knows reports whether the player has already learned a technique.
func (p *Player) Knows(technique string) bool {
	for _, t := range p.Techniques {
		if t == technique {
			return true
		}
	}
	return false
}

// Learn records a new technique. Duplicates are ignored.
func (p *Player) Learn(technique string) {
	if p.Knows(technique) {
		return
	}
	p.Techniques = append(p.Techniques, technique)
}

// Unknown returns techniques from pool the player has not learned yet.
func (p *Player) Unknown(pool []string) []string {
	var out []string
	for _, t := range pool {
		if !p.Knows(t) {
			out = append(out, t)
		}
	}
	return out
}
