package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rewards"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rules"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/events"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/logger"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/metrics"
)

// villainNames are the spawn pools per tier.
var villainNames = map[rules.Tier][]string{
	rules.Tier1: {"Mestre das Sombras", "Bruxa do Pântano", "Capitão Ferro"},
	rules.Tier2: {"General Abissal", "Rainha Espectral"},
	rules.Tier3: {"Imperador do Caos", "Devorador de Almas"},
}

// VillainSystem runs cooperative boss fights: each player attacks at most
// once, damage accumulates against the villain's strength, and on defeat
// every attacker shares the reward pool.
type VillainSystem struct {
	registry *events.Registry
	applier  *rewardApplier
	activity *ActivityTracker
	rand     *Rand
	logger   *logger.Logger
	announce Announcer
}

// NewVillainSystem wires the villain lifecycle.
func NewVillainSystem(registry *events.Registry, applier *rewardApplier, activity *ActivityTracker, rnd *Rand, log *logger.Logger, announce Announcer) *VillainSystem {
	return &VillainSystem{registry: registry, applier: applier, activity: activity, rand: rnd, logger: log, announce: announce}
}

// Spawn creates a villain scaled by time of day and server activity.
func (vs *VillainSystem) Spawn(channelRef string, now time.Time) *events.WorldEvent {
	activityFactor := vs.activity.Factor(now)
	strengthMult := vs.activity.StrengthMultiplier(now)

	var payload *events.VillainPayload
	var tier rules.Tier
	vs.rand.Do(func(r *rand.Rand) {
		tier = rules.PickTier(now.Hour(), activityFactor, r)
		strength := rules.VillainStrength(tier, strengthMult)
		names := villainNames[tier]
		mult := rules.TierMultiplier(tier)
		payload = &events.VillainPayload{
			Name:                 names[r.Intn(len(names))],
			Tier:                 string(tier),
			Strength:             strength,
			CurrentHP:            strength,
			BaseEXPReward:        int(50 * mult),
			BaseTUSDReward:       int(25 * mult),
			BaseReputationReward: int(10 * mult),
		}
	})

	e := &events.WorldEvent{
		ID:         events.NewEventID(events.EventTypeVillain, now),
		Type:       events.EventTypeVillain,
		ChannelRef: channelRef,
		StartTime:  now,
		EndTime:    now.Add(rules.TierDuration(tier)),
		Payload:    payload,
	}
	vs.registry.Insert(e)

	vs.logger.Event("VILLAIN_SPAWN", "SYSTEM",
		fmt.Sprintf("%s (%s) strength %.0f in %s", payload.Name, payload.Tier, payload.Strength, channelRef))
	vs.announce.Announce("villain_spawn", channelRef, map[string]any{
		"event_id": e.ID,
		"name":     payload.Name,
		"tier":     payload.Tier,
		"strength": payload.Strength,
	})
	return e
}

// Attack applies one player's damage. Each distinct player attacks at most
// once; the membership check and HP mutation share one critical section so
// interleaved attackers cannot double-hit or race the defeat transition.
func (vs *VillainSystem) Attack(ctx context.Context, eventID, playerID string) AttackResult {
	p, err := vs.applier.players.GetPlayer(ctx, playerID)
	if err != nil {
		vs.logger.Error("Villain attack: player load failed: " + err.Error())
		return AttackResult{NotFound: true}
	}
	if p == nil {
		return AttackResult{NotFound: true}
	}

	now := time.Now()
	attrBuff := vs.applier.buffs.AttributePercent(p.ClubID, now) +
		vs.applier.playerBuffs.CombatPercent(playerID, now)

	var res AttackResult
	var defeated bool
	var participants []string
	var base rewards.Delta
	struck := false

	found := vs.registry.WithEvent(eventID, func(e *events.WorldEvent) {
		vp, ok := e.Payload.(*events.VillainPayload)
		if !ok || vp.Defeated || e.Expired(now) {
			return
		}
		if e.HasParticipant(playerID) {
			res.AlreadyParticipated = true
			return
		}
		e.AddParticipant(playerID)
		struck = true
		res.Name = vp.Name

		vs.rand.Do(func(r *rand.Rand) {
			res.Damage = rules.Damage(p.Level, p.Power, p.Dexterity, attrBuff, r)
		})
		vp.CurrentHP -= res.Damage
		res.RemainingHP = vp.CurrentHP

		if vp.CurrentHP <= 0 {
			vp.CurrentHP = 0
			vp.Defeated = true
			e.Resolved = true
			defeated = true
			participants = append([]string(nil), e.Participants...)
			base = rewards.Delta{
				EXP:        vp.BaseEXPReward,
				TUSD:       vp.BaseTUSDReward,
				Reputation: vp.BaseReputationReward,
			}
		}
	})

	if !found {
		res.NotFound = true
		return res
	}
	if res.AlreadyParticipated {
		return res
	}
	if !struck {
		res.NotFound = true
		return res
	}

	res.OK = true
	if !defeated {
		vs.registry.Sync(eventID)
		vs.logger.Event("VILLAIN_HIT", playerID, fmt.Sprintf("%s for %.1f (hp %.1f)", res.Name, res.Damage, res.RemainingHP))
		return res
	}

	// Victory: every attacker shares the pot, scaled by how many showed up.
	res.Defeated = true
	bonus := rules.ParticipationBonus(len(participants))
	pool := base.Scale(bonus)

	for _, id := range participants {
		member, err := vs.applier.players.GetPlayer(ctx, id)
		if err != nil || member == nil {
			continue
		}
		share := vs.applier.withClubBuffs(pool, member.ClubID, now)
		if id == playerID {
			res.Rewards = share
		}
		if _, err := vs.applier.grant(ctx, id, share); err != nil {
			vs.logger.Error("Villain reward grant failed for " + id + ": " + err.Error())
		}
		vs.applier.prog.RecordEventCompleted(id)
	}

	vs.registry.Remove(eventID)
	metrics.Get().RecordResolution()

	vs.logger.Event("VILLAIN_DEFEATED", playerID,
		fmt.Sprintf("%s by %d attackers (bonus %.1fx)", res.Name, len(participants), bonus))
	vs.announce.Announce("villain_defeated", "", map[string]any{
		"event_id":     eventID,
		"name":         res.Name,
		"participants": participants,
		"bonus":        bonus,
	})
	return res
}

// OnExpired handles a villain that outlived its window: it escapes, nobody
// is rewarded, and a flavor announcement fires.
func (vs *VillainSystem) OnExpired(e *events.WorldEvent) {
	vp, ok := e.Payload.(*events.VillainPayload)
	if !ok || vp.Defeated {
		return
	}
	vp.Escaped = true
	vs.logger.Event("VILLAIN_ESCAPED", "SYSTEM", vp.Name)
	vs.announce.Announce("villain_escaped", e.ChannelRef, map[string]any{
		"event_id": e.ID,
		"name":     vp.Name,
		"tier":     vp.Tier,
	})
}
