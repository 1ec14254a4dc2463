package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/club"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/events"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/metrics"
)

func clubWith(id, name string) *club.Club {
	return &club.Club{ID: id, Name: name, ActivityScore: 10}
}

func newSchedulerFixture(seed int64) (*fixture, *Scheduler) {
	f := newFixture(seed)
	announce := nopAnnouncer{}
	clubs := newClubService(f.store, f.buffs, f.logger, announce)
	minions := NewMinionSystem(f.registry, f.applier, f.rand, f.logger, announce)
	villains := NewVillainSystem(f.registry, f.applier, f.activity, f.rand, f.logger, announce)
	collectibles := NewCollectibleSystem(f.registry, f.applier, f.rand, f.logger, announce)
	tournaments := NewTournamentSystem(f.registry, f.applier, f.rand, f.logger, announce)
	turfwars := NewTurfWarsSystem(f.registry, f.applier, clubs, f.rand, f.logger, announce)
	quiz := NewQuizSystem(f.registry, f.applier, f.store, f.rand, f.logger, announce, "")
	grading := NewGradingSystem(f.store, f.applier, f.logger, announce)
	trigger := NewRandomTrigger(f.registry, minions, villains, collectibles, f.activity, f.rand, f.logger, announce, "", []string{"patio"})

	s := NewScheduler(SchedulerDeps{
		Registry:    f.registry,
		Trigger:     trigger,
		Villains:    villains,
		Tournaments: tournaments,
		TurfWars:    turfwars,
		Quiz:        quiz,
		Grading:     grading,
		Clubs:       clubs,
		Progress:    f.prog,
		Rand:        f.rand,
		Flags:       f.store,
		Cooldowns:   f.store,
		Logger:      f.logger,
		Announce:    announce,
	}, time.Minute, "sala", "", 0)
	return f, s
}

func countByType(reg *events.Registry, t events.EventType) int {
	n := 0
	for _, rec := range reg.SnapshotRecords() {
		if rec.Type == string(t) {
			n++
		}
	}
	return n
}

func TestDailyResetSelectsSubject(t *testing.T) {
	f, s := newSchedulerFixture(1)
	s.dailyReset(context.Background())
	if n := countByType(f.registry, events.EventTypeDailySubject); n != 1 {
		t.Errorf("Expected the midnight reset to open the day's subject, got %d", n)
	}
}

func TestDailySubjectGateAnnouncesOnceWithinTolerance(t *testing.T) {
	f, s := newSchedulerFixture(1)
	ctx := context.Background()
	s.dailyReset(ctx)
	at := time.Date(2026, 8, 27, 9, 3, 0, 0, time.UTC) // Thursday 09:03

	s.gateDailySubject(ctx, at)
	if n := countByType(f.registry, events.EventTypeDiaDeMateria); n != 1 {
		t.Fatalf("Expected 1 subject-day announcement after gate, got %d", n)
	}
	if n := countByType(f.registry, events.EventTypeDailySubject); n != 1 {
		t.Errorf("Expected the gate to reuse the reset's subject, got %d subjects", n)
	}

	// Same window again: the flag suppresses a second fire.
	s.gateDailySubject(ctx, at.Add(time.Minute))
	if n := countByType(f.registry, events.EventTypeDiaDeMateria); n != 1 {
		t.Errorf("Expected flag to keep the gate idempotent, got %d announcements", n)
	}
}

func TestDailySubjectGateOutsideWindow(t *testing.T) {
	f, s := newSchedulerFixture(2)
	ctx := context.Background()
	s.dailyReset(ctx)

	s.gateDailySubject(ctx, time.Date(2026, 8, 27, 9, 30, 0, 0, time.UTC))
	s.gateDailySubject(ctx, time.Date(2026, 8, 27, 10, 2, 0, 0, time.UTC))
	if n := countByType(f.registry, events.EventTypeDiaDeMateria); n != 0 {
		t.Errorf("Expected no fire outside the tolerance window, got %d", n)
	}
}

func TestTournamentGateOnlyWednesday(t *testing.T) {
	f, s := newSchedulerFixture(3)
	ctx := context.Background()

	s.gateTournament(ctx, time.Date(2026, 8, 27, 18, 0, 0, 0, time.UTC)) // Thursday
	if n := countByType(f.registry, events.EventTypeTournament); n != 0 {
		t.Fatalf("Expected no tournament on Thursday, got %d", n)
	}

	s.gateTournament(ctx, time.Date(2026, 8, 26, 18, 2, 0, 0, time.UTC)) // Wednesday
	if n := countByType(f.registry, events.EventTypeTournament); n != 1 {
		t.Errorf("Expected tournament started Wednesday 18:02, got %d", n)
	}
}

func TestTurfWarsGateOnlySunday(t *testing.T) {
	f, s := newSchedulerFixture(4)
	ctx := context.Background()

	s.gateTurfWars(ctx, time.Date(2026, 8, 30, 14, 1, 0, 0, time.UTC)) // Sunday
	if n := countByType(f.registry, events.EventTypeTurfWars); n != 1 {
		t.Errorf("Expected turf wars on Sunday 14:01, got %d", n)
	}
}

func TestGatePanicIsolated(t *testing.T) {
	_, s := newSchedulerFixture(5)
	fired := false
	s.safeGate("boom", func() { panic("kaboom") })
	s.safeGate("next", func() { fired = true })
	if !fired {
		t.Errorf("Expected gate after a panic to still run")
	}
}

func TestSweepDispatchesVillainEscape(t *testing.T) {
	f, s := newSchedulerFixture(6)
	vs := s.villains
	e := vs.Spawn("arena", time.Now().Add(-10*time.Hour))

	s.sweep(time.Now())
	vp := e.Payload.(*events.VillainPayload)
	if !vp.Escaped {
		t.Errorf("Expected sweep to mark the expired villain escaped")
	}
	if f.registry.Count() != 0 {
		t.Errorf("Expected expired villain removed, %d still active", f.registry.Count())
	}
}

func TestRandomTriggerRespectsCap(t *testing.T) {
	f, s := newSchedulerFixture(7)
	f.registry.SetRandomCap(1)
	// Fill the single slot.
	ms := NewMinionSystem(f.registry, f.applier, f.rand, f.logger, nopAnnouncer{})
	ms.Spawn("patio", time.Now())

	for i := 0; i < 50; i++ {
		if e := s.trigger.Roll(time.Now()); e != nil {
			t.Fatalf("Expected no spawn with the cap full, got %s", e.ID)
		}
	}
}

func TestRandomTriggerFiltersChannels(t *testing.T) {
	f := newFixture(8)
	trigger := NewRandomTrigger(f.registry, nil, nil, nil, f.activity, f.rand, f.logger, nopAnnouncer{},
		"", []string{"anuncios-gerais", "regras", "welcome-hall"})
	if len(trigger.channels) != 0 {
		t.Errorf("Expected all moderation channels filtered out, kept %v", trigger.channels)
	}
	if e := trigger.Roll(time.Now()); e != nil {
		t.Errorf("Expected no spawn with no eligible channels")
	}
}

func TestRandomTriggerPrefersDefaultChannel(t *testing.T) {
	f := newFixture(12)
	announce := nopAnnouncer{}
	minions := NewMinionSystem(f.registry, f.applier, f.rand, f.logger, announce)
	villains := NewVillainSystem(f.registry, f.applier, f.activity, f.rand, f.logger, announce)
	collectibles := NewCollectibleSystem(f.registry, f.applier, f.rand, f.logger, announce)
	trigger := NewRandomTrigger(f.registry, minions, villains, collectibles, f.activity, f.rand, f.logger, announce,
		"sala-central", []string{"patio", "jardim"})

	now := time.Now()
	for i := 0; i < 100; i++ {
		f.activity.Record(now)
	}

	spawned := 0
	for i := 0; i < 2000 && spawned < 5; i++ {
		if e := trigger.Roll(now); e != nil {
			spawned++
			if e.ChannelRef != "sala-central" {
				t.Fatalf("Expected spawn in the configured default channel, got %s", e.ChannelRef)
			}
			f.registry.Remove(e.ID)
		}
	}
	if spawned == 0 {
		t.Errorf("Expected at least one random spawn in 2000 rolls")
	}
}

func TestRandomTriggerEventuallySpawns(t *testing.T) {
	f, s := newSchedulerFixture(9)
	// Drive activity up so the roll probability is meaningful.
	now := time.Now()
	for i := 0; i < 100; i++ {
		f.activity.Record(now)
	}

	spawned := false
	for i := 0; i < 2000 && !spawned; i++ {
		if e := s.trigger.Roll(now); e != nil {
			spawned = true
			if e.Type.Special() {
				t.Errorf("Random trigger spawned a special event %s", e.Type)
			}
			f.registry.Remove(e.ID)
		}
	}
	if !spawned {
		t.Errorf("Expected at least one random spawn in 2000 rolls")
	}
}

func TestGateMetricCountsOnlyRealFires(t *testing.T) {
	_, s := newSchedulerFixture(13)
	ctx := context.Background()
	metrics.Reset()

	// Out-of-window passes record nothing.
	s.gateTournament(ctx, time.Date(2026, 8, 27, 18, 0, 0, 0, time.UTC)) // Thursday
	s.gateTurfWars(ctx, time.Date(2026, 8, 27, 14, 1, 0, 0, time.UTC))   // Thursday
	if n := atomic.LoadInt64(&metrics.Get().GatesFired); n != 0 {
		t.Fatalf("Expected no gate fires outside their windows, got %d", n)
	}

	s.gateMorningAnnouncements(ctx, time.Date(2026, 8, 27, 8, 1, 0, 0, time.UTC))
	if n := atomic.LoadInt64(&metrics.Get().GatesFired); n != 1 {
		t.Errorf("Expected exactly 1 gate fire, got %d", n)
	}
}

func TestDailyResetPurgesStaleFlags(t *testing.T) {
	f, s := newSchedulerFixture(14)
	ctx := context.Background()
	yesterday := time.Now().AddDate(0, 0, -1)
	f.store.SetSystemFlag(ctx, dailySubjectFlag(yesterday), "done")
	f.store.backdateFlag(dailySubjectFlag(yesterday), yesterday)
	f.store.SetSystemFlag(ctx, dailyAnnounceFlag(time.Now()), "done")

	s.dailyReset(ctx)

	if v, _ := f.store.GetSystemFlag(ctx, dailySubjectFlag(yesterday)); v != "" {
		t.Errorf("Expected yesterday's gate flag purged, got %q", v)
	}
	if v, _ := f.store.GetSystemFlag(ctx, dailyAnnounceFlag(time.Now())); v != "done" {
		t.Errorf("Expected today's gate flag to survive the purge, got %q", v)
	}
}

func TestDailyResetPurgesCooldowns(t *testing.T) {
	f, s := newSchedulerFixture(10)
	ctx := context.Background()
	f.store.StoreCooldown(ctx, "p1", "attack", time.Now().Add(-time.Hour))
	f.store.StoreCooldown(ctx, "p2", "attack", time.Now().Add(time.Hour))

	s.dailyReset(ctx)

	recs, _ := f.store.GetCooldowns(ctx)
	if len(recs) != 1 || recs[0].UserID != "p2" {
		t.Errorf("Expected only the live cooldown to survive, got %v", recs)
	}
}

func TestWeeklyResetSettlesClubReputation(t *testing.T) {
	f, s := newSchedulerFixture(11)
	ctx := context.Background()
	f.store.UpsertClub(ctx, clubWith("c1", "Chamas"))

	s.weeklyReset(ctx)

	c, _ := f.store.GetClub(ctx, "c1")
	if c.Reputation != 30 {
		t.Errorf("Expected top club to gain 30 reputation, got %d", c.Reputation)
	}
}
