package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/events"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/infra/snapshot"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/infra/storage"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/logger"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/metrics"
)

// GateToleranceMinutes widens each time gate so a slow or delayed tick still
// fires it. Flags keep the fire idempotent within the window.
const GateToleranceMinutes = 5

// Gate times, local clock.
const (
	morningAnnounceHour = 8
	dailySubjectHour    = 9
	monthlyGradesHour   = 10
	tournamentHour      = 18
	turfWarsHour        = 14
)

// Flag name builders shared with the recovery routine.
func dailyAnnounceFlag(t time.Time) string { return "daily_announcements_" + t.Format("20060102") }
func dailySubjectFlag(t time.Time) string  { return "daily_subject_" + t.Format("20060102") }
func tournamentFlag(t time.Time) string    { return "tournament_" + t.Format("20060102") }
func turfWarsFlag(t time.Time) string      { return "turf_wars_" + t.Format("20060102") }
func monthlyGradesFlag(t time.Time) string { return "monthly_grades_" + t.Format("200601") }

// Scheduler drives the world: a fixed-interval tick evaluates time gates,
// rolls for random events and sweeps expirations, while cron handles the
// midnight daily and Monday weekly resets.
type Scheduler struct {
	registry     *events.Registry
	trigger      *RandomTrigger
	villains     *VillainSystem
	tournaments  *TournamentSystem
	turfwars     *TurfWarsSystem
	quiz         *QuizSystem
	grading      *GradingSystem
	clubs        *clubService
	prog         *ProgressTracker
	rand         *Rand
	flags        storage.FlagStore
	cooldowns    storage.CooldownStore
	logger       *logger.Logger
	announce     Announcer

	tickInterval   time.Duration
	defaultChannel string
	snapshotPath   string
	snapshotEvery  int

	cron  *cron.Cron
	ticks int
}

// SchedulerDeps bundles the scheduler's collaborators.
type SchedulerDeps struct {
	Registry    *events.Registry
	Trigger     *RandomTrigger
	Villains    *VillainSystem
	Tournaments *TournamentSystem
	TurfWars    *TurfWarsSystem
	Quiz        *QuizSystem
	Grading     *GradingSystem
	Clubs       *clubService
	Progress    *ProgressTracker
	Rand        *Rand
	Flags       storage.FlagStore
	Cooldowns   storage.CooldownStore
	Logger      *logger.Logger
	Announce    Announcer
}

// NewScheduler builds the tick loop. snapshotEvery is in ticks; zero
// disables periodic snapshots.
func NewScheduler(deps SchedulerDeps, tickInterval time.Duration, defaultChannel, snapshotPath string, snapshotEvery int) *Scheduler {
	return &Scheduler{
		registry:       deps.Registry,
		trigger:        deps.Trigger,
		villains:       deps.Villains,
		tournaments:    deps.Tournaments,
		turfwars:       deps.TurfWars,
		quiz:           deps.Quiz,
		grading:        deps.Grading,
		clubs:          deps.Clubs,
		prog:           deps.Progress,
		rand:           deps.Rand,
		flags:          deps.Flags,
		cooldowns:      deps.Cooldowns,
		logger:         deps.Logger,
		announce:       deps.Announce,
		tickInterval:   tickInterval,
		defaultChannel: defaultChannel,
		snapshotPath:   snapshotPath,
		snapshotEvery:  snapshotEvery,
	}
}

// Run blocks until ctx is cancelled, ticking at the configured interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron = cron.New()
	s.cron.AddFunc("0 0 * * *", func() { s.dailyReset(ctx) })
	s.cron.AddFunc("0 0 * * 1", func() { s.weeklyReset(ctx) })
	s.cron.Start()
	defer s.cron.Stop()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	s.logger.Info(fmt.Sprintf("Scheduler running, tick every %s", s.tickInterval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

// Tick runs one scheduler pass. Exported so recovery and tests can drive the
// clock directly.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	started := time.Now()

	s.safeGate("morning_announcements", func() { s.gateMorningAnnouncements(ctx, now) })
	s.safeGate("daily_subject", func() { s.gateDailySubject(ctx, now) })
	s.safeGate("tournament", func() { s.gateTournament(ctx, now) })
	s.safeGate("turf_wars", func() { s.gateTurfWars(ctx, now) })
	s.safeGate("monthly_grades", func() { s.gateMonthlyGrades(ctx, now) })
	s.safeGate("random_roll", func() { s.trigger.Roll(now) })
	s.safeGate("expire_sweep", func() { s.sweep(now) })
	s.safeGate("snapshot", func() { s.maybeSnapshot() })

	metrics.Get().RecordTick(time.Since(started))
}

// safeGate isolates one gate: a panic is logged and counted but never takes
// down the loop or the other gates.
func (s *Scheduler) safeGate(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.Get().RecordGatePanic()
			s.logger.Error(fmt.Sprintf("Gate %s panicked: %v", name, r))
		}
	}()
	fn()
}

func gateDue(now time.Time, hour int) bool {
	return now.Hour() == hour && now.Minute() < GateToleranceMinutes
}

// claimFlag fires a gate at most once per flag value. Storage errors resolve
// to "not claimed" so a flaky read cannot permanently suppress a gate.
func (s *Scheduler) claimFlag(ctx context.Context, name string) bool {
	val, err := s.flags.GetSystemFlag(ctx, name)
	if err != nil {
		s.logger.Warn("Flag read failed for " + name + ": " + err.Error())
	}
	if val == "done" {
		return false
	}
	if err := s.flags.SetSystemFlag(ctx, name, "done"); err != nil {
		s.logger.Error("Flag write failed for " + name + ": " + err.Error())
	}
	return true
}

func (s *Scheduler) gateMorningAnnouncements(ctx context.Context, now time.Time) {
	if !gateDue(now, morningAnnounceHour) || !s.claimFlag(ctx, dailyAnnounceFlag(now)) {
		return
	}
	metrics.Get().RecordGateFired()
	s.fireMorningAnnouncements(now)
}

func (s *Scheduler) fireMorningAnnouncements(now time.Time) {
	active := s.registry.SnapshotRecords()
	s.announce.Announce("morning_digest", s.defaultChannel, map[string]any{
		"date":          now.Format("2006-01-02"),
		"active_events": len(active),
		"weekday":       now.Weekday().String(),
	})
	s.logger.Event("MORNING_ANNOUNCEMENTS", "SYSTEM", now.Format("2006-01-02"))
}

// gateDailySubject announces the subject picked at midnight; selection
// itself belongs to dailyReset.
func (s *Scheduler) gateDailySubject(ctx context.Context, now time.Time) {
	if !gateDue(now, dailySubjectHour) || !s.claimFlag(ctx, dailySubjectFlag(now)) {
		return
	}
	metrics.Get().RecordGateFired()
	s.quiz.AnnounceSubjectDay(s.defaultChannel, now)
}

func (s *Scheduler) gateTournament(ctx context.Context, now time.Time) {
	if now.Weekday() != time.Wednesday || !gateDue(now, tournamentHour) {
		return
	}
	if !s.claimFlag(ctx, tournamentFlag(now)) {
		return
	}
	metrics.Get().RecordGateFired()
	s.tournaments.Start(ctx, s.defaultChannel, now)
}

func (s *Scheduler) gateTurfWars(ctx context.Context, now time.Time) {
	if now.Weekday() != time.Sunday || !gateDue(now, turfWarsHour) {
		return
	}
	if !s.claimFlag(ctx, turfWarsFlag(now)) {
		return
	}
	metrics.Get().RecordGateFired()
	s.turfwars.Start(ctx, s.defaultChannel, now)
}

func (s *Scheduler) gateMonthlyGrades(ctx context.Context, now time.Time) {
	if now.Day() != 1 || !gateDue(now, monthlyGradesHour) {
		return
	}
	if !s.claimFlag(ctx, monthlyGradesFlag(now)) {
		return
	}
	metrics.Get().RecordGateFired()
	if err := s.grading.RunMonthly(ctx, s.defaultChannel, now); err != nil {
		s.logger.Error("Monthly grading failed: " + err.Error())
	}
}

// sweep drops expired events and hands escaped villains their exit.
func (s *Scheduler) sweep(now time.Time) {
	expired, evicted := s.registry.ExpireSweep(now)
	for _, e := range expired {
		if e.Type == events.EventTypeVillain {
			s.villains.OnExpired(e)
		}
	}
	for _, e := range evicted {
		s.logger.Warn("Evicted " + string(e.Type) + " event " + e.ID + " past concurrency cap")
	}
}

func (s *Scheduler) maybeSnapshot() {
	if s.snapshotEvery <= 0 || s.snapshotPath == "" {
		return
	}
	s.ticks++
	if s.ticks%s.snapshotEvery != 0 {
		return
	}
	if err := snapshot.Write(s.snapshotPath, s.registry.SnapshotRecords()); err != nil {
		s.logger.Error("Snapshot write failed: " + err.Error())
	}
}

// dailyReset runs at midnight: final daily standings, the day's subject
// selection, fresh club buffs, expired-cooldown and stale-flag purge.
func (s *Scheduler) dailyReset(ctx context.Context) {
	now := time.Now()

	standings := s.prog.ResetDaily()
	s.announce.Announce("daily_standings", s.defaultChannel, map[string]any{"standings": standings})

	s.quiz.SelectDailySubject(s.defaultChannel, now)

	if err := s.clubs.regenerateBuffs(ctx, now, s.rand); err != nil {
		s.logger.Error("Daily buff regeneration failed: " + err.Error())
	}

	if n, err := s.cooldowns.ClearExpiredCooldowns(ctx, now); err != nil {
		s.logger.Error("Cooldown purge failed: " + err.Error())
	} else if n > 0 {
		s.logger.Info(fmt.Sprintf("Purged %d expired cooldowns", n))
	}

	// Prior days' gate flags are spent; drop them.
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if n, err := s.flags.PruneSystemFlags(ctx, startOfDay); err != nil {
		s.logger.Error("Flag purge failed: " + err.Error())
	} else if n > 0 {
		s.logger.Info(fmt.Sprintf("Purged %d stale gate flags", n))
	}
	s.logger.Event("DAILY_RESET", "SYSTEM", "")
}

// weeklyReset runs Monday midnight: final weekly standings plus the club
// reputation settlement.
func (s *Scheduler) weeklyReset(ctx context.Context) {
	standings := s.prog.ResetWeekly()
	s.announce.Announce("weekly_standings", s.defaultChannel, map[string]any{"standings": standings})

	if err := s.clubs.settleWeekly(ctx); err != nil {
		s.logger.Error("Weekly club settlement failed: " + err.Error())
	}
	s.logger.Event("WEEKLY_RESET", "SYSTEM", "")
}
