package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rewards"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rules"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/events"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/logger"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/metrics"
)

// MinionDuration is how long a spawned minion stays attackable.
const MinionDuration = 5 * time.Minute

// minionNames are the spawn pools per rarity.
var minionNames = map[rules.Rarity][]string{
	rules.RarityCommon:    {"Capanga de Rua", "Estudante Rebelde", "Cão de Guarda", "Valentão do Pátio"},
	rules.RarityUncommon:  {"Lutador Mascarado", "Espião do Conselho", "Duelista Errante"},
	rules.RarityRare:      {"Guarda-Costas de Elite", "Caçador de Recompensas"},
	rules.RarityEpic:      {"General Renegado", "Campeão Caído"},
	rules.RarityLegendary: {"Sombra do Fundador"},
}

// MinionSystem spawns short-lived minions resolved by the first attacker.
type MinionSystem struct {
	registry *events.Registry
	applier  *rewardApplier
	rand     *Rand
	logger   *logger.Logger
	announce Announcer
}

// NewMinionSystem wires the minion lifecycle.
func NewMinionSystem(registry *events.Registry, applier *rewardApplier, rnd *Rand, log *logger.Logger, announce Announcer) *MinionSystem {
	return &MinionSystem{registry: registry, applier: applier, rand: rnd, logger: log, announce: announce}
}

// Spawn creates a minion in the given channel and registers it.
func (ms *MinionSystem) Spawn(channelRef string, now time.Time) *events.WorldEvent {
	var payload *events.MinionPayload
	ms.rand.Do(func(r *rand.Rand) {
		rarity := rules.PickRarity(r)
		mult := rules.RarityMultiplier(rarity)
		names := minionNames[rarity]
		payload = &events.MinionPayload{
			Name:             names[r.Intn(len(names))],
			Rarity:           string(rarity),
			EXPReward:        int(float64(10+r.Intn(11)) * mult),
			TUSDReward:       int(float64(5+r.Intn(6)) * mult),
			ReputationReward: int(float64(1+r.Intn(3)) * mult),
		}
	})

	e := &events.WorldEvent{
		ID:         events.NewEventID(events.EventTypeMinion, now),
		Type:       events.EventTypeMinion,
		ChannelRef: channelRef,
		StartTime:  now,
		EndTime:    now.Add(MinionDuration),
		Payload:    payload,
	}
	ms.registry.Insert(e)

	ms.logger.Event("MINION_SPAWN", "SYSTEM", payload.Name+" ("+payload.Rarity+") in "+channelRef)
	ms.announce.Announce("minion_spawn", channelRef, map[string]any{
		"event_id": e.ID,
		"name":     payload.Name,
		"rarity":   payload.Rarity,
	})
	return e
}

// Attack resolves a minion for the first successful attacker: the event is
// marked defeated, the one player gets the full reward (adjusted by club
// buffs), and the registry entry is removed.
func (ms *MinionSystem) Attack(ctx context.Context, eventID, playerID string) AttackResult {
	p, err := ms.applier.players.GetPlayer(ctx, playerID)
	if err != nil {
		ms.logger.Error("Minion attack: player load failed: " + err.Error())
		return AttackResult{NotFound: true}
	}
	if p == nil {
		return AttackResult{NotFound: true}
	}

	now := time.Now()
	var res AttackResult
	claimed := false
	var base rewards.Delta

	found := ms.registry.WithEvent(eventID, func(e *events.WorldEvent) {
		mp, ok := e.Payload.(*events.MinionPayload)
		if !ok || mp.Defeated || e.Expired(now) {
			return
		}
		if e.HasParticipant(playerID) {
			res.AlreadyParticipated = true
			return
		}
		e.AddParticipant(playerID)
		mp.Defeated = true
		e.Resolved = true
		claimed = true
		res.Name = mp.Name
		base = rewards.Delta{EXP: mp.EXPReward, TUSD: mp.TUSDReward, Reputation: mp.ReputationReward}
	})

	if !found {
		res.NotFound = true
		return res
	}
	if res.AlreadyParticipated {
		return res
	}
	if !claimed {
		// Someone else already defeated it, or it expired unresolved.
		res.NotFound = true
		return res
	}

	res.Rewards = ms.applier.withClubBuffs(base, p.ClubID, now)
	if _, err := ms.applier.grant(ctx, playerID, res.Rewards); err != nil {
		ms.logger.Error("Minion reward grant failed for " + playerID + ": " + err.Error())
	}
	ms.applier.prog.RecordEventCompleted(playerID)

	ms.registry.Remove(eventID)
	metrics.Get().RecordResolution()

	res.OK = true
	res.Defeated = true
	ms.logger.Event("MINION_DEFEATED", playerID, res.Name)
	ms.announce.Announce("minion_defeated", "", map[string]any{
		"event_id": eventID,
		"name":     res.Name,
		"player":   playerID,
		"rewards":  res.Rewards,
	})
	return res
}
