package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/club"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rewards"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rules"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/events"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/logger"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/metrics"
)

// Turf-wars pacing and tuning.
const (
	TurfWarsSignupWindow = 30 * time.Minute
	TurfWarsBattlePause  = 2 * time.Second

	turfWinnerClubReputation = 50
	turfWinnerClubEXPBuffPct = 10
	democracyModeChance      = 0.30
	democracyEXPSwing        = 10
)

// validTurfRoles are the four self-assembled team roles.
var validTurfRoles = map[string]bool{"monarch": true, "queen": true, "jack": true, "healer": true}

// TurfWarsSystem runs the Sunday team competition: self-assembled four-role
// teams fight round-robin matchups of randomized 1v1 battles.
type TurfWarsSystem struct {
	registry *events.Registry
	applier  *rewardApplier
	clubs    *clubService
	rand     *Rand
	logger   *logger.Logger
	announce Announcer

	SignupWindow time.Duration
	BattlePause  time.Duration
}

// NewTurfWarsSystem wires the turf-wars lifecycle.
func NewTurfWarsSystem(registry *events.Registry, applier *rewardApplier, clubs *clubService, rnd *Rand, log *logger.Logger, announce Announcer) *TurfWarsSystem {
	return &TurfWarsSystem{
		registry:     registry,
		applier:      applier,
		clubs:        clubs,
		rand:         rnd,
		logger:       log,
		announce:     announce,
		SignupWindow: TurfWarsSignupWindow,
		BattlePause:  TurfWarsBattlePause,
	}
}

// Start opens team signups and schedules resolution in the background.
func (tw *TurfWarsSystem) Start(ctx context.Context, channelRef string, now time.Time) *events.WorldEvent {
	e := &events.WorldEvent{
		ID:         events.NewEventID(events.EventTypeTurfWars, now),
		Type:       events.EventTypeTurfWars,
		ChannelRef: channelRef,
		StartTime:  now,
		EndTime:    now.Add(tw.SignupWindow + 3*time.Hour),
		Payload:    &events.TurfWarsPayload{Phase: "signup", Teams: make(map[string]*events.TurfTeam)},
	}
	tw.registry.Insert(e)

	tw.logger.Event("TURF_WARS_SIGNUP", "SYSTEM", "Team assembly open in "+channelRef)
	tw.announce.Announce("turf_wars_signup", channelRef, map[string]any{"event_id": e.ID})

	go tw.run(ctx, e.ID, channelRef)
	return e
}

// JoinTeam places a player on a named team in a role. Teams are created on
// first join; each team has at most one monarch.
func (tw *TurfWarsSystem) JoinTeam(ctx context.Context, eventID, teamName, role, playerID string) JoinResult {
	if !validTurfRoles[role] {
		return JoinResult{Reason: "unknown role"}
	}
	p, err := tw.applier.players.GetPlayer(ctx, playerID)
	if err != nil || p == nil {
		return JoinResult{NotFound: true}
	}

	var res JoinResult
	found := tw.registry.WithEvent(eventID, func(e *events.WorldEvent) {
		wp, ok := e.Payload.(*events.TurfWarsPayload)
		if !ok || wp.Phase != "signup" {
			res.Reason = "signups closed"
			return
		}
		if e.HasParticipant(playerID) {
			res.Reason = "already on a team"
			return
		}
		team, ok := wp.Teams[teamName]
		if !ok {
			team = &events.TurfTeam{Name: teamName, Members: make(map[string]string)}
			wp.Teams[teamName] = team
		}
		if role == "monarch" {
			for _, r := range team.Members {
				if r == "monarch" {
					res.Reason = "team already has a monarch"
					return
				}
			}
		}
		e.AddParticipant(playerID)
		team.Members[playerID] = role
		res.OK = true
	})
	if !found {
		res.NotFound = true
	}
	return res
}

// run waits out signups, then plays all team pairs round-robin.
func (tw *TurfWarsSystem) run(ctx context.Context, eventID, channelRef string) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(tw.SignupWindow):
	}

	var teams []*events.TurfTeam
	tw.registry.WithEvent(eventID, func(e *events.WorldEvent) {
		wp, ok := e.Payload.(*events.TurfWarsPayload)
		if !ok {
			return
		}
		wp.Phase = "running"
		for _, t := range wp.Teams {
			if len(t.Members) > 0 {
				teams = append(teams, t)
			}
		}
	})
	sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })

	if len(teams) < 2 {
		tw.logger.Warn("Turf wars cancelled: not enough teams")
		tw.announce.Announce("turf_wars_cancelled", channelRef, map[string]any{"event_id": eventID})
		tw.registry.Remove(eventID)
		return
	}

	wins := make(map[string]int)
	for i := 0; i < len(teams); i++ {
		for j := i + 1; j < len(teams); j++ {
			if ctx.Err() != nil {
				tw.registry.Remove(eventID)
				return
			}
			winner := tw.playMatchup(ctx, teams[i], teams[j], channelRef)
			if winner != "" {
				wins[winner]++
			}
		}
	}

	overall := ""
	for _, t := range teams {
		if overall == "" || wins[t.Name] > wins[overall] {
			overall = t.Name
		}
	}

	tw.registry.WithEvent(eventID, func(e *events.WorldEvent) {
		if wp, ok := e.Payload.(*events.TurfWarsPayload); ok {
			wp.Phase = "done"
		}
		e.Resolved = true
	})

	var winnerTeam *events.TurfTeam
	for _, t := range teams {
		if t.Name == overall {
			winnerTeam = t
		}
	}
	if winnerTeam != nil {
		tw.rewardWinningClub(ctx, winnerTeam)
	}

	tw.registry.Remove(eventID)
	metrics.Get().RecordResolution()

	tw.logger.Event("TURF_WARS_WINNER", "SYSTEM", overall)
	tw.announce.Announce("turf_wars_winner", channelRef, map[string]any{
		"event_id": eventID,
		"team":     overall,
		"wins":     wins,
	})
}

// playMatchup runs min(team sizes) 1v1 battles with random fighter
// selection and returns the matchup winner's team name ("" on a tie or
// cancellation).
func (tw *TurfWarsSystem) playMatchup(ctx context.Context, a, b *events.TurfTeam, channelRef string) string {
	matchID := uuid.NewString()
	battles := len(a.Members)
	if len(b.Members) < battles {
		battles = len(b.Members)
	}

	scoreA, scoreB := 0, 0
	for n := 0; n < battles; n++ {
		select {
		case <-ctx.Done():
			return ""
		case <-time.After(tw.BattlePause):
		}

		tw.maybeDemocracyMode(ctx, a)
		tw.maybeDemocracyMode(ctx, b)

		fighterA, roleA := tw.pickFighter(a)
		fighterB, roleB := tw.pickFighter(b)

		var sA, sB float64
		levelA, levelB := tw.levelOf(ctx, fighterA), tw.levelOf(ctx, fighterB)
		tw.rand.Do(func(r *rand.Rand) {
			sA = rules.DuelScore(levelA, r) * rules.RoleMultiplier(roleA)
			sB = rules.DuelScore(levelB, r) * rules.RoleMultiplier(roleB)
		})

		winner := fighterA
		if sB > sA {
			winner = fighterB
			scoreB++
		} else {
			scoreA++
		}
		tw.applier.prog.RecordDuelWin(winner)
	}

	result := ""
	switch {
	case scoreA > scoreB:
		result = a.Name
		a.Wins++
	case scoreB > scoreA:
		result = b.Name
		b.Wins++
	}

	tw.announce.Announce("turf_wars_matchup", channelRef, map[string]any{
		"match_id": matchID,
		"team_a":   a.Name,
		"team_b":   b.Name,
		"score_a":  scoreA,
		"score_b":  scoreB,
	})
	return result
}

// maybeDemocracyMode rolls the monarch's 30% gamble: every non-monarch
// member gets +10 exp at a cost of -10 exp to the monarch.
func (tw *TurfWarsSystem) maybeDemocracyMode(ctx context.Context, team *events.TurfTeam) {
	monarch := ""
	for id, role := range team.Members {
		if role == "monarch" {
			monarch = id
		}
	}
	if monarch == "" || tw.rand.Float64() >= democracyModeChance {
		return
	}

	for id, role := range team.Members {
		if role == "monarch" {
			continue
		}
		if _, err := tw.applier.grant(ctx, id, rewards.Delta{EXP: democracyEXPSwing}); err != nil {
			tw.logger.Error("Democracy mode grant failed: " + err.Error())
		}
	}
	if _, err := tw.applier.grant(ctx, monarch, rewards.Delta{EXP: -democracyEXPSwing}); err != nil {
		tw.logger.Error("Democracy mode monarch debit failed: " + err.Error())
	}
	tw.logger.Event("DEMOCRACY_MODE", monarch, "team "+team.Name)
}

func (tw *TurfWarsSystem) pickFighter(team *events.TurfTeam) (string, string) {
	ids := make([]string, 0, len(team.Members))
	for id := range team.Members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	id := ids[tw.rand.Intn(len(ids))]
	return id, team.Members[id]
}

func (tw *TurfWarsSystem) levelOf(ctx context.Context, playerID string) int {
	p, err := tw.applier.players.GetPlayer(ctx, playerID)
	if err != nil || p == nil {
		return 1
	}
	return p.Level
}

// rewardWinningClub finds the club with the most members on the winning
// team and grants it a reputation bonus plus a 24-hour exp buff.
func (tw *TurfWarsSystem) rewardWinningClub(ctx context.Context, team *events.TurfTeam) {
	counts := make(map[string]int)
	for id := range team.Members {
		p, err := tw.applier.players.GetPlayer(ctx, id)
		if err != nil || p == nil || p.ClubID == "" {
			continue
		}
		counts[p.ClubID]++
	}

	best := ""
	for clubID, n := range counts {
		if best == "" || n > counts[best] || (n == counts[best] && clubID < best) {
			best = clubID
		}
	}
	if best == "" {
		return
	}

	if err := tw.clubs.store.UpdateClubReputationWeekly(ctx, best, turfWinnerClubReputation); err != nil {
		tw.logger.Error("Turf wars club reputation grant failed: " + err.Error())
	}
	tw.applier.buffs.Set(best, club.Buff{
		Type:    club.BuffEXP,
		Value:   turfWinnerClubEXPBuffPct,
		Expires: time.Now().Add(24 * time.Hour),
	})
	tw.logger.Event("TURF_WARS_CLUB_BONUS", best, fmt.Sprintf("+%d reputation, +%d%% exp 24h", turfWinnerClubReputation, turfWinnerClubEXPBuffPct))
}
