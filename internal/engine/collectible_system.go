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

// CollectibleDuration is how long a collectible stays claimable.
const CollectibleDuration = 10 * time.Minute

var collectibleNames = map[rules.Rarity][]string{
	rules.RarityCommon:    {"Moeda Antiga", "Distintivo Perdido", "Mapa Rasgado"},
	rules.RarityUncommon:  {"Amuleto de Jade", "Pergaminho Selado"},
	rules.RarityRare:      {"Anel do Conselho", "Relíquia do Torneio"},
	rules.RarityEpic:      {"Lâmina Cerimonial"},
	rules.RarityLegendary: {"Fragmento do Fundador"},
}

// CollectibleSystem spawns one-claim items whose prize includes a timed
// attribute buff on top of the usual rewards.
type CollectibleSystem struct {
	registry *events.Registry
	applier  *rewardApplier
	rand     *Rand
	logger   *logger.Logger
	announce Announcer
}

// NewCollectibleSystem wires the collectible lifecycle.
func NewCollectibleSystem(registry *events.Registry, applier *rewardApplier, rnd *Rand, log *logger.Logger, announce Announcer) *CollectibleSystem {
	return &CollectibleSystem{registry: registry, applier: applier, rand: rnd, logger: log, announce: announce}
}

// Spawn creates a collectible in the given channel.
func (cs *CollectibleSystem) Spawn(channelRef string, now time.Time) *events.WorldEvent {
	var payload *events.CollectiblePayload
	cs.rand.Do(func(r *rand.Rand) {
		rarity := rules.PickRarity(r)
		mult := rules.RarityMultiplier(rarity)
		names := collectibleNames[rarity]
		name := names[r.Intn(len(names))]
		payload = &events.CollectiblePayload{
			Name:   name,
			Rarity: string(rarity),
			Item:   name,
			Buff: rewards.AttributeBuff{
				Attribute:     buffableAttributes[r.Intn(len(buffableAttributes))],
				Percent:       float64(5+r.Intn(6)) * mult,
				DurationHours: 2 + r.Intn(5),
			},
			EXPReward:        int(float64(8+r.Intn(8)) * mult),
			TUSDReward:       int(float64(4+r.Intn(5)) * mult),
			ReputationReward: int(float64(1+r.Intn(2)) * mult),
		}
	})

	e := &events.WorldEvent{
		ID:         events.NewEventID(events.EventTypeCollectible, now),
		Type:       events.EventTypeCollectible,
		ChannelRef: channelRef,
		StartTime:  now,
		EndTime:    now.Add(CollectibleDuration),
		Payload:    payload,
	}
	cs.registry.Insert(e)

	cs.logger.Event("COLLECTIBLE_SPAWN", "SYSTEM", payload.Name+" ("+payload.Rarity+") in "+channelRef)
	cs.announce.Announce("collectible_spawn", channelRef, map[string]any{
		"event_id": e.ID,
		"name":     payload.Name,
		"rarity":   payload.Rarity,
	})
	return e
}

// Collect claims the item for the first successful caller.
func (cs *CollectibleSystem) Collect(ctx context.Context, eventID, playerID string) CollectResult {
	p, err := cs.applier.players.GetPlayer(ctx, playerID)
	if err != nil {
		cs.logger.Error("Collect: player load failed: " + err.Error())
		return CollectResult{NotFound: true}
	}
	if p == nil {
		return CollectResult{NotFound: true}
	}

	now := time.Now()
	var res CollectResult
	claimed := false
	var base rewards.Delta

	found := cs.registry.WithEvent(eventID, func(e *events.WorldEvent) {
		cp, ok := e.Payload.(*events.CollectiblePayload)
		if !ok || cp.Collected || e.Expired(now) {
			return
		}
		if e.HasParticipant(playerID) {
			res.AlreadyClaimed = true
			return
		}
		e.AddParticipant(playerID)
		cp.Collected = true
		e.Resolved = true
		claimed = true
		res.Name = cp.Name
		res.Item = cp.Item
		base = rewards.Delta{
			EXP:        cp.EXPReward,
			TUSD:       cp.TUSDReward,
			Reputation: cp.ReputationReward,
			Buffs:      []rewards.AttributeBuff{cp.Buff},
		}
	})

	if !found {
		res.NotFound = true
		return res
	}
	if res.AlreadyClaimed {
		return res
	}
	if !claimed {
		res.NotFound = true
		return res
	}

	res.Rewards = cs.applier.withClubBuffs(base, p.ClubID, now)
	if _, err := cs.applier.grant(ctx, playerID, res.Rewards); err != nil {
		cs.logger.Error("Collectible reward grant failed for " + playerID + ": " + err.Error())
	}
	cs.applier.prog.RecordEventCompleted(playerID)

	cs.registry.Remove(eventID)
	metrics.Get().RecordResolution()

	res.OK = true
	cs.logger.Event("COLLECTIBLE_CLAIMED", playerID, res.Name)
	cs.announce.Announce("collectible_claimed", "", map[string]any{
		"event_id": eventID,
		"name":     res.Name,
		"player":   playerID,
	})
	return res
}
