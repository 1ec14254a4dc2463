package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/events"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/infra/snapshot"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/infra/storage"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/logger"
)

// Recovery rebuilds world state after a restart: missed daily gates are
// caught up, active events are reloaded from the mirror (snapshot fallback
// when the mirror looks wiped), and durable cooldowns are rehydrated.
// Each step is isolated so one failure does not abort the rest.
type Recovery struct {
	registry  *events.Registry
	scheduler *Scheduler
	quiz      *QuizSystem
	store     storage.Store
	cooldowns *CooldownTracker
	logger    *logger.Logger

	snapshotPath string
}

// NewRecovery wires the startup routine.
func NewRecovery(registry *events.Registry, scheduler *Scheduler, quiz *QuizSystem, store storage.Store, cooldowns *CooldownTracker, log *logger.Logger, snapshotPath string) *Recovery {
	return &Recovery{
		registry:     registry,
		scheduler:    scheduler,
		quiz:         quiz,
		store:        store,
		cooldowns:    cooldowns,
		logger:       log,
		snapshotPath: snapshotPath,
	}
}

// Run executes the full recovery sequence. Always returns nil today; the
// signature leaves room for a future fatal class of failure.
func (rc *Recovery) Run(ctx context.Context, now time.Time) error {
	rc.step("event reload", func() error { return rc.reloadEvents(ctx, now) })
	rc.step("daily catch-up", func() error { return rc.catchUpDailyGates(ctx, now) })
	rc.step("cooldown reload", func() error { return rc.reloadCooldowns(ctx, now) })
	rc.logger.Info("Recovery complete")
	return nil
}

func (rc *Recovery) step(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			rc.logger.Error(fmt.Sprintf("Recovery step %q panicked: %v", name, r))
		}
	}()
	if err := fn(); err != nil {
		rc.logger.Error(fmt.Sprintf("Recovery step %q failed: %s", name, err))
	}
}

// catchUpDailyGates repairs today's daily state after a restart. The morning
// announcement fires when its window passed and the flag shows it never ran.
// The subject belongs to the midnight reset, so here it is regenerated
// whenever none survived the reload; the 09:00 announcement stays flag-gated.
func (rc *Recovery) catchUpDailyGates(ctx context.Context, now time.Time) error {
	if now.Hour() >= morningAnnounceHour && rc.scheduler.claimFlag(ctx, dailyAnnounceFlag(now)) {
		rc.logger.Info("Catching up missed morning announcements")
		rc.scheduler.fireMorningAnnouncements(now)
	}
	if !rc.quiz.HasOpenSubject(now) {
		rc.logger.Info("No open daily subject after reload, selecting one")
		rc.quiz.SelectDailySubject(rc.scheduler.defaultChannel, now)
	}
	if now.Hour() >= dailySubjectHour && rc.scheduler.claimFlag(ctx, dailySubjectFlag(now)) {
		rc.logger.Info("Catching up missed subject announcement")
		rc.quiz.AnnounceSubjectDay(rc.scheduler.defaultChannel, now)
	}
	return nil
}

// reloadEvents restores the registry from the mirror. Rows failing schema
// validation or payload decoding are skipped, already-expired rows are
// marked complete rather than revived. Zero live rows when today's subject
// flag says a quiz ran is treated as a wiped mirror: the snapshot is tried,
// and the flag is reset so the gate can fire again.
func (rc *Recovery) reloadEvents(ctx context.Context, now time.Time) error {
	rows, err := rc.store.GetActiveEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active events: %w", err)
	}

	loaded := rc.loadRecords(ctx, rows, now)
	rc.logger.Info(fmt.Sprintf("Reloaded %d active events from mirror", loaded))
	if loaded > 0 {
		return nil
	}

	flag, _ := rc.store.GetSystemFlag(ctx, dailySubjectFlag(now))
	if flag != "done" {
		return nil
	}

	// Flags say the world had live events today but the mirror has none.
	rc.logger.Warn("Mirror returned no active events despite today's gates having fired, trying snapshot")
	snap, err := snapshot.Read(rc.snapshotPath)
	if err != nil {
		return fmt.Errorf("snapshot fallback failed: %w", err)
	}
	if snap != nil {
		byID := make(map[string]events.Record, len(snap.Events))
		for _, rec := range snap.Events {
			byID[rec.ID] = rec
		}
		restored := rc.loadRecords(ctx, byID, now)
		rc.logger.Info(fmt.Sprintf("Restored %d events from snapshot", restored))
		if restored > 0 {
			return nil
		}
	}

	// Nothing recoverable anywhere: clear the flag so the catch-up step can
	// regenerate and re-announce the subject.
	if err := rc.store.SetSystemFlag(ctx, dailySubjectFlag(now), ""); err != nil {
		return fmt.Errorf("failed to reset daily subject flag: %w", err)
	}
	rc.logger.Warn("No events recoverable, daily subject flag reset for regeneration")
	return nil
}

// loadRecords restores live rows into the registry. Rows that decoded fine
// but are resolved or past their end time are marked complete in the store
// so they stop showing up as active, with an escape dispatched for villains
// that were never defeated.
func (rc *Recovery) loadRecords(ctx context.Context, rows map[string]events.Record, now time.Time) int {
	loaded := 0
	for id, rec := range rows {
		if err := storage.ValidateEventRecord(rec); err != nil {
			rc.logger.Warn("Skipping invalid event row " + id + ": " + err.Error())
			continue
		}
		e, err := events.FromRecord(rec)
		if err != nil {
			rc.logger.Warn("Skipping undecodable event row " + id + ": " + err.Error())
			continue
		}
		if e.Resolved || e.Expired(now) {
			rc.retireRecord(ctx, rec, e)
			continue
		}
		rc.registry.Load(e)
		loaded++
	}
	return loaded
}

// retireRecord closes out a dead row found during reload. Villains that
// neither won nor lost still get their escape announced.
func (rc *Recovery) retireRecord(ctx context.Context, rec events.Record, e *events.WorldEvent) {
	if !e.Resolved && e.Type == events.EventTypeVillain {
		rc.scheduler.villains.OnExpired(e)
	}
	if err := rc.store.UpdateEventStatus(ctx, rec.ID, true, rec.Participants, rec.Data); err != nil {
		rc.logger.Warn("Failed to retire dead event row " + rec.ID + ": " + err.Error())
	}
}

// reloadCooldowns purges expired rows then loads the rest into memory.
func (rc *Recovery) reloadCooldowns(ctx context.Context, now time.Time) error {
	if n, err := rc.store.ClearExpiredCooldowns(ctx, now); err != nil {
		rc.logger.Warn("Cooldown purge failed: " + err.Error())
	} else if n > 0 {
		rc.logger.Info(fmt.Sprintf("Purged %d expired cooldowns", n))
	}

	recs, err := rc.store.GetCooldowns(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cooldowns: %w", err)
	}
	rc.cooldowns.LoadRecords(recs)
	rc.logger.Info(fmt.Sprintf("Reloaded %d cooldowns", len(recs)))
	return nil
}
