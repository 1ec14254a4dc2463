package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rewards"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rules"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/events"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/logger"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/metrics"
)

// Tournament pacing. The signup window and match pause are fields so tests
// can compress them.
const (
	TournamentSignupWindow = 30 * time.Minute
	TournamentMatchPause   = 2 * time.Second

	tournamentMatchEXP = 30
)

// TournamentSystem runs the Wednesday single-elimination bracket as a
// cancellable deferred task: a signup phase, then rounds resolved with a
// short pause between announced matches.
type TournamentSystem struct {
	registry *events.Registry
	applier  *rewardApplier
	rand     *Rand
	logger   *logger.Logger
	announce Announcer

	SignupWindow time.Duration
	MatchPause   time.Duration
}

// NewTournamentSystem wires the tournament lifecycle.
func NewTournamentSystem(registry *events.Registry, applier *rewardApplier, rnd *Rand, log *logger.Logger, announce Announcer) *TournamentSystem {
	return &TournamentSystem{
		registry:     registry,
		applier:      applier,
		rand:         rnd,
		logger:       log,
		announce:     announce,
		SignupWindow: TournamentSignupWindow,
		MatchPause:   TournamentMatchPause,
	}
}

// Start opens signups and schedules bracket resolution in the background.
// The returned event is already in the registry.
func (ts *TournamentSystem) Start(ctx context.Context, channelRef string, now time.Time) *events.WorldEvent {
	e := &events.WorldEvent{
		ID:         events.NewEventID(events.EventTypeTournament, now),
		Type:       events.EventTypeTournament,
		ChannelRef: channelRef,
		StartTime:  now,
		EndTime:    now.Add(ts.SignupWindow + 4*time.Hour),
		Payload:    &events.TournamentPayload{Phase: "signup"},
	}
	ts.registry.Insert(e)

	ts.logger.Event("TOURNAMENT_SIGNUP", "SYSTEM", "Signups open in "+channelRef)
	ts.announce.Announce("tournament_signup", channelRef, map[string]any{"event_id": e.ID})

	go ts.run(ctx, e.ID, channelRef)
	return e
}

// Enter registers a player during the signup phase.
func (ts *TournamentSystem) Enter(ctx context.Context, eventID, playerID string) JoinResult {
	p, err := ts.applier.players.GetPlayer(ctx, playerID)
	if err != nil || p == nil {
		return JoinResult{NotFound: true}
	}

	var res JoinResult
	found := ts.registry.WithEvent(eventID, func(e *events.WorldEvent) {
		tp, ok := e.Payload.(*events.TournamentPayload)
		if !ok || tp.Phase != "signup" {
			res.Reason = "signups closed"
			return
		}
		if e.HasParticipant(playerID) {
			res.Reason = "already entered"
			return
		}
		e.AddParticipant(playerID)
		tp.Entrants = append(tp.Entrants, playerID)
		res.OK = true
	})
	if !found {
		res.NotFound = true
	}
	return res
}

// run waits out the signup window, then resolves the bracket. Cancellation
// is checked at every phase boundary so shutdown never leaks the task.
func (ts *TournamentSystem) run(ctx context.Context, eventID, channelRef string) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(ts.SignupWindow):
	}

	var entrants []string
	ts.registry.WithEvent(eventID, func(e *events.WorldEvent) {
		tp, ok := e.Payload.(*events.TournamentPayload)
		if !ok {
			return
		}
		tp.Phase = "running"
		entrants = append([]string(nil), tp.Entrants...)
	})

	if len(entrants) < 2 {
		ts.logger.Warn("Tournament cancelled: not enough entrants")
		ts.announce.Announce("tournament_cancelled", channelRef, map[string]any{"event_id": eventID})
		ts.registry.Remove(eventID)
		return
	}

	champion := ts.resolveBracket(ctx, entrants, channelRef)
	if champion == "" {
		// Cancelled mid-bracket.
		ts.registry.Remove(eventID)
		return
	}

	trophyID := fmt.Sprintf("trophy_%s_%s", time.Now().Format("20060102"), uuid.NewString()[:8])
	ts.registry.WithEvent(eventID, func(e *events.WorldEvent) {
		if tp, ok := e.Payload.(*events.TournamentPayload); ok {
			tp.Phase = "done"
			tp.Champion = champion
			tp.TrophyID = trophyID
		}
		e.Resolved = true
	})

	bonus := rewards.Delta{EXP: 100, TUSD: 50, Reputation: 20}
	if p, err := ts.applier.players.GetPlayer(ctx, champion); err == nil && p != nil {
		bonus = ts.applier.withClubBuffs(bonus, p.ClubID, time.Now())
	}
	if _, err := ts.applier.grant(ctx, champion, bonus); err != nil {
		ts.logger.Error("Tournament champion grant failed: " + err.Error())
	}

	ts.registry.Remove(eventID)
	metrics.Get().RecordResolution()

	ts.logger.Event("TOURNAMENT_CHAMPION", champion, "trophy "+trophyID)
	ts.announce.Announce("tournament_champion", channelRef, map[string]any{
		"event_id": eventID,
		"champion": champion,
		"trophy":   trophyID,
		"rewards":  bonus,
	})
}

// resolveBracket plays ceil(log2(n)) single-elimination rounds. Odd fields
// get one random bye per round. Returns "" if the context is cancelled.
func (ts *TournamentSystem) resolveBracket(ctx context.Context, entrants []string, channelRef string) string {
	remaining := append([]string(nil), entrants...)
	rounds := int(math.Ceil(math.Log2(float64(len(remaining)))))

	for round := 1; round <= rounds && len(remaining) > 1; round++ {
		ts.rand.Shuffle(len(remaining), func(i, j int) {
			remaining[i], remaining[j] = remaining[j], remaining[i]
		})

		var next []string
		if len(remaining)%2 == 1 {
			// Last slot after the shuffle is the random bye.
			next = append(next, remaining[len(remaining)-1])
			remaining = remaining[:len(remaining)-1]
		}

		for i := 0; i+1 < len(remaining); i += 2 {
			select {
			case <-ctx.Done():
				return ""
			case <-time.After(ts.MatchPause):
			}

			winner, loser := ts.playMatch(ctx, remaining[i], remaining[i+1])
			next = append(next, winner)

			ts.announce.Announce("tournament_match", channelRef, map[string]any{
				"round":  round,
				"winner": winner,
				"loser":  loser,
			})
		}
		remaining = next
	}

	if len(remaining) == 0 {
		return ""
	}
	return remaining[0]
}

// playMatch decides one duel and grants match rewards: the winner's exp,
// half of it to the loser as consolation.
func (ts *TournamentSystem) playMatch(ctx context.Context, a, b string) (winner, loser string) {
	levelA, levelB := 1, 1
	if p, err := ts.applier.players.GetPlayer(ctx, a); err == nil && p != nil {
		levelA = p.Level
	}
	if p, err := ts.applier.players.GetPlayer(ctx, b); err == nil && p != nil {
		levelB = p.Level
	}

	var scoreA, scoreB float64
	ts.rand.Do(func(r *rand.Rand) {
		scoreA = rules.DuelScore(levelA, r)
		scoreB = rules.DuelScore(levelB, r)
	})

	winner, loser = a, b
	if scoreB > scoreA {
		winner, loser = b, a
	}

	ts.applier.prog.RecordDuelWin(winner)
	if _, err := ts.applier.grant(ctx, winner, rewards.Delta{EXP: tournamentMatchEXP}); err != nil {
		ts.logger.Error("Tournament match grant failed: " + err.Error())
	}
	if _, err := ts.applier.grant(ctx, loser, rewards.Delta{EXP: tournamentMatchEXP / 2}); err != nil {
		ts.logger.Error("Tournament consolation grant failed: " + err.Error())
	}
	return winner, loser
}
