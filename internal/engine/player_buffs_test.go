package engine

import (
	"context"
	"testing"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rewards"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/events"
)

func TestPlayerBuffExpires(t *testing.T) {
	pb := NewPlayerBuffs()
	now := time.Now()
	pb.Grant("p1", rewards.AttributeBuff{Attribute: "power", Percent: 10, DurationHours: 2}, now)

	if pct := pb.CombatPercent("p1", now.Add(time.Hour)); pct != 10 {
		t.Errorf("Expected 10%% combat buff while live, got %.1f", pct)
	}
	if pct := pb.CombatPercent("p1", now.Add(3*time.Hour)); pct != 0 {
		t.Errorf("Expected expired buff purged, got %.1f", pct)
	}
}

func TestPlayerBuffsStackPerAttribute(t *testing.T) {
	pb := NewPlayerBuffs()
	now := time.Now()
	pb.Grant("p1", rewards.AttributeBuff{Attribute: "power", Percent: 10, DurationHours: 4}, now)
	pb.Grant("p1", rewards.AttributeBuff{Attribute: "dexterity", Percent: 5, DurationHours: 4}, now)
	pb.Grant("p1", rewards.AttributeBuff{Attribute: "intellect", Percent: 20, DurationHours: 4}, now)

	if pct := pb.CombatPercent("p1", now); pct != 15 {
		t.Errorf("Expected power and dexterity buffs to sum to 15%%, got %.1f", pct)
	}
	if pct := pb.AttributePercent("p1", "intellect", now); pct != 20 {
		t.Errorf("Expected 20%% intellect buff, got %.1f", pct)
	}
	if pct := pb.AttributePercent("p2", "power", now); pct != 0 {
		t.Errorf("Expected no buff for another player, got %.1f", pct)
	}
}

func TestCollectGrantsTimedBuff(t *testing.T) {
	f := newFixture(21)
	f.addPlayer("p1", 3)
	cs := NewCollectibleSystem(f.registry, f.applier, f.rand, f.logger, nopAnnouncer{})

	e := cs.Spawn("biblioteca", time.Now())
	buff := e.Payload.(*events.CollectiblePayload).Buff

	res := cs.Collect(context.Background(), e.ID, "p1")
	if !res.OK {
		t.Fatalf("Expected collect to succeed, got %+v", res)
	}

	got := f.playerBuffs.AttributePercent("p1", buff.Attribute, time.Now())
	if got != buff.Percent {
		t.Errorf("Expected %.1f%% %s buff installed after claim, got %.1f", buff.Percent, buff.Attribute, got)
	}
}

func TestVillainDamageUsesPlayerBuffs(t *testing.T) {
	f := newFixture(22)
	f.addPlayer("p1", 3)
	f.playerBuffs.Grant("p1", rewards.AttributeBuff{Attribute: "power", Percent: 1000, DurationHours: 4}, time.Now())
	vs := NewVillainSystem(f.registry, f.applier, f.activity, f.rand, f.logger, nopAnnouncer{})

	e := vs.Spawn("arena", time.Now())
	res := vs.Attack(context.Background(), e.ID, "p1")
	if !res.OK {
		t.Fatalf("Expected attack to land, got %+v", res)
	}
	// A level-3 player caps out around 24 damage unbuffed; an 11x attribute
	// multiplier has to blow far past that.
	if res.Damage < 100 {
		t.Errorf("Expected buffed damage above 100, got %.1f", res.Damage)
	}
}
