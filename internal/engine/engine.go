// Package engine contains the world-event core: the scheduler, the lifecycle
// systems for every event type, reward application, and startup recovery.
package engine

import (
	"context"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/events"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/infra/storage"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/config"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/logger"
)

// commandCooldowns throttles the player-facing actions that can be spammed.
var commandCooldowns = map[string]time.Duration{
	"attack":  30 * time.Second,
	"collect": 30 * time.Second,
}

// Engine is the top-level façade: it owns the registry, the lifecycle
// systems, the scheduler and the recovery routine, and exposes the player
// entry points the transport layer calls.
type Engine struct {
	Registry  *events.Registry
	Scheduler *Scheduler

	store     storage.Store
	activity  *ActivityTracker
	cooldowns *CooldownTracker
	recovery  *Recovery

	minions      *MinionSystem
	villains     *VillainSystem
	collectibles *CollectibleSystem
	tournaments  *TournamentSystem
	turfwars     *TurfWarsSystem
	quiz         *QuizSystem

	logger   *logger.Logger
	announce Announcer
}

// New assembles the full engine from configuration. announce may be nil
// (tests); a no-op sink is substituted.
func New(cfg *config.Config, store storage.Store, log *logger.Logger, announce Announcer, seed int64) *Engine {
	if announce == nil {
		announce = nopAnnouncer{}
	}

	rnd := NewRand(seed)
	registry := events.NewRegistry(store, log)
	registry.SetRandomCap(cfg.MaxConcurrentRandoms)

	activity := NewActivityTracker()
	prog := NewProgressTracker()
	buffs := NewClubBuffs()
	cooldowns := NewCooldownTracker(store, log)

	applier := &rewardApplier{
		players:               store,
		buffs:                 buffs,
		playerBuffs:           NewPlayerBuffs(),
		prog:                  prog,
		logger:                log,
		weeklyThemeEXPPercent: (cfg.WeeklyThemeMultiplier - 1.0) * 100,
	}

	clubs := newClubService(store, buffs, log, announce)
	minions := NewMinionSystem(registry, applier, rnd, log, announce)
	villains := NewVillainSystem(registry, applier, activity, rnd, log, announce)
	collectibles := NewCollectibleSystem(registry, applier, rnd, log, announce)
	tournaments := NewTournamentSystem(registry, applier, rnd, log, announce)
	turfwars := NewTurfWarsSystem(registry, applier, clubs, rnd, log, announce)
	quiz := NewQuizSystem(registry, applier, store, rnd, log, announce, cfg.WeeklyTheme)
	grading := NewGradingSystem(store, applier, log, announce)

	trigger := NewRandomTrigger(registry, minions, villains, collectibles, activity, rnd, log, announce, cfg.DefaultChannel, cfg.EligibleChannels)

	scheduler := NewScheduler(SchedulerDeps{
		Registry:    registry,
		Trigger:     trigger,
		Villains:    villains,
		Tournaments: tournaments,
		TurfWars:    turfwars,
		Quiz:        quiz,
		Grading:     grading,
		Clubs:       clubs,
		Progress:    prog,
		Rand:        rnd,
		Flags:       store,
		Cooldowns:   store,
		Logger:      log,
		Announce:    announce,
	}, time.Duration(cfg.TickIntervalSeconds)*time.Second, cfg.DefaultChannel, cfg.SnapshotPath, cfg.SnapshotEveryTicks)

	recovery := NewRecovery(registry, scheduler, quiz, store, cooldowns, log, cfg.SnapshotPath)

	return &Engine{
		Registry:     registry,
		Scheduler:    scheduler,
		store:        store,
		activity:     activity,
		cooldowns:    cooldowns,
		recovery:     recovery,
		minions:      minions,
		villains:     villains,
		collectibles: collectibles,
		tournaments:  tournaments,
		turfwars:     turfwars,
		quiz:         quiz,
		logger:       log,
		announce:     announce,
	}
}

// Start runs recovery and then blocks in the scheduler loop until ctx
// is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.recovery.Run(ctx, time.Now()); err != nil {
		return err
	}
	e.Scheduler.Run(ctx)
	return nil
}

// RecordInteraction feeds the activity tracker. The transport layer calls
// this for every inbound player action.
func (e *Engine) RecordInteraction(now time.Time) {
	e.activity.Record(now)
}

// onCooldown reports whether the per-command throttle is live. Arming
// happens separately, only after the action actually lands, so a miss on a
// stale event id does not burn the window.
func (e *Engine) onCooldown(playerID, command string) bool {
	if _, ok := commandCooldowns[command]; !ok {
		return false
	}
	return e.cooldowns.OnCooldown(playerID, command, time.Now())
}

// armCooldown starts the throttle window for a command that went through.
func (e *Engine) armCooldown(playerID, command string) {
	if d, ok := commandCooldowns[command]; ok {
		e.cooldowns.Set(playerID, command, time.Now().Add(d))
	}
}

// AttackMinion routes a player attack at a minion event.
func (e *Engine) AttackMinion(ctx context.Context, eventID, playerID string) AttackResult {
	if e.onCooldown(playerID, "attack") {
		return AttackResult{OnCooldown: true}
	}
	e.RecordInteraction(time.Now())
	res := e.minions.Attack(ctx, eventID, playerID)
	if res.OK {
		e.armCooldown(playerID, "attack")
	}
	return res
}

// AttackVillain routes a player attack at a villain event.
func (e *Engine) AttackVillain(ctx context.Context, eventID, playerID string) AttackResult {
	if e.onCooldown(playerID, "attack") {
		return AttackResult{OnCooldown: true}
	}
	e.RecordInteraction(time.Now())
	res := e.villains.Attack(ctx, eventID, playerID)
	if res.OK {
		e.armCooldown(playerID, "attack")
	}
	return res
}

// CollectItem routes a collectible claim.
func (e *Engine) CollectItem(ctx context.Context, eventID, playerID string) CollectResult {
	if e.onCooldown(playerID, "collect") {
		return CollectResult{OnCooldown: true}
	}
	e.RecordInteraction(time.Now())
	res := e.collectibles.Collect(ctx, eventID, playerID)
	if res.OK {
		e.armCooldown(playerID, "collect")
	}
	return res
}

// AnswerQuiz routes a daily-subject answer.
func (e *Engine) AnswerQuiz(ctx context.Context, eventID, playerID string, question, option int) QuizResult {
	e.RecordInteraction(time.Now())
	return e.quiz.Answer(ctx, eventID, playerID, question, option)
}

// EnterTournament routes a tournament signup.
func (e *Engine) EnterTournament(ctx context.Context, eventID, playerID string) JoinResult {
	e.RecordInteraction(time.Now())
	return e.tournaments.Enter(ctx, eventID, playerID)
}

// JoinTurfWarsTeam routes a turf-wars team signup.
func (e *Engine) JoinTurfWarsTeam(ctx context.Context, eventID, teamName, role, playerID string) JoinResult {
	e.RecordInteraction(time.Now())
	return e.turfwars.JoinTeam(ctx, eventID, teamName, role, playerID)
}
