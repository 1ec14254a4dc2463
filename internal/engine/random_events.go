package engine

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rules"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/events"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/logger"
)

// BaseRandomChance is the per-tick probability before hour and activity
// multipliers.
const BaseRandomChance = 0.05

// baseEventWeights is the starting distribution over spawnable random
// event types, rebalanced against recent history each roll.
var baseEventWeights = map[string]float64{
	string(events.EventTypeMinion):      0.4,
	string(events.EventTypeVillain):     0.2,
	string(events.EventTypeCollectible): 0.1,
	string(events.EventTypeNarrative):   0.3,
}

// excludedChannelWords filters moderation and announcement channels out of
// the random spawn pool.
var excludedChannelWords = []string{"anúncio", "anuncio", "announcement", "regras", "rules", "boas-vindas", "welcome"}

// narrativeBeats is the pool of story moments a narrative event can surface.
var narrativeBeats = []struct {
	Chapter string
	Beat    string
}{
	{"fundacao", "o_portao_rangente"},
	{"fundacao", "cartas_sem_remetente"},
	{"conselho", "reuniao_interrompida"},
	{"conselho", "o_voto_perdido"},
	{"sombras", "passos_no_telhado"},
}

// RandomTrigger rolls each tick for a spontaneous world event: minion,
// villain, collectible or narrative beat. A history window keeps the type
// distribution close to the base weights over time.
type RandomTrigger struct {
	registry     *events.Registry
	minions      *MinionSystem
	villains     *VillainSystem
	collectibles *CollectibleSystem
	activity     *ActivityTracker
	rand         *Rand
	logger       *logger.Logger
	announce     Announcer

	defaultChannel string
	channels       []string

	histMu  sync.Mutex
	history []string
}

// NewRandomTrigger wires the per-tick spawn roll. Spawns land in the
// configured default channel when one is set; eligibleChannels is the
// fallback pool, with moderation channels filtered out by name.
func NewRandomTrigger(registry *events.Registry, minions *MinionSystem, villains *VillainSystem, collectibles *CollectibleSystem, activity *ActivityTracker, rnd *Rand, log *logger.Logger, announce Announcer, defaultChannel string, eligibleChannels []string) *RandomTrigger {
	rt := &RandomTrigger{
		registry:       registry,
		minions:        minions,
		villains:       villains,
		collectibles:   collectibles,
		activity:       activity,
		rand:           rnd,
		logger:         log,
		announce:       announce,
		defaultChannel: defaultChannel,
	}
	for _, ch := range eligibleChannels {
		if channelEligible(ch) {
			rt.channels = append(rt.channels, ch)
		}
	}
	return rt
}

func channelEligible(name string) bool {
	lower := strings.ToLower(name)
	for _, w := range excludedChannelWords {
		if strings.Contains(lower, w) {
			return false
		}
	}
	return true
}

// Roll runs one spawn attempt. Returns the spawned event, or nil when the
// roll fails, no slot is free, or no channel is eligible.
func (rt *RandomTrigger) Roll(now time.Time) *events.WorldEvent {
	if rt.defaultChannel == "" && len(rt.channels) == 0 {
		return nil
	}
	if !rt.registry.RandomSlotFree() {
		return nil
	}

	chance := BaseRandomChance * rules.HourFactor(now.Hour()) * rt.activity.Factor(now)
	if chance > 1 {
		chance = 1
	}

	fired := false
	picked := ""
	channel := rt.defaultChannel
	rt.rand.Do(func(r *rand.Rand) {
		if r.Float64() >= chance {
			return
		}
		fired = true
		picked = rules.WeightedChoice(rt.rebalanced(), r)
		if channel == "" {
			channel = rt.channels[r.Intn(len(rt.channels))]
		}
	})
	if !fired || picked == "" {
		return nil
	}

	rt.recordHistory(picked)

	var e *events.WorldEvent
	switch events.EventType(picked) {
	case events.EventTypeMinion:
		e = rt.minions.Spawn(channel, now)
	case events.EventTypeVillain:
		e = rt.villains.Spawn(channel, now)
	case events.EventTypeCollectible:
		e = rt.collectibles.Spawn(channel, now)
	case events.EventTypeNarrative:
		e = rt.spawnNarrative(channel, now)
	}
	if e != nil {
		rt.logger.Event("RANDOM_SPAWN", "SYSTEM", picked+" in "+channel)
	}
	return e
}

func (rt *RandomTrigger) rebalanced() map[string]float64 {
	rt.histMu.Lock()
	hist := append([]string(nil), rt.history...)
	rt.histMu.Unlock()
	return rules.RebalanceWeights(baseEventWeights, hist)
}

func (rt *RandomTrigger) recordHistory(eventType string) {
	rt.histMu.Lock()
	defer rt.histMu.Unlock()
	rt.history = append(rt.history, eventType)
	if len(rt.history) > rules.HistoryWindow {
		rt.history = rt.history[len(rt.history)-rules.HistoryWindow:]
	}
}

// NarrativeDuration bounds how long an untriggered story beat lingers.
const NarrativeDuration = 30 * time.Minute

func (rt *RandomTrigger) spawnNarrative(channelRef string, now time.Time) *events.WorldEvent {
	var beat struct {
		Chapter string
		Beat    string
	}
	rt.rand.Do(func(r *rand.Rand) {
		beat = narrativeBeats[r.Intn(len(narrativeBeats))]
	})

	e := &events.WorldEvent{
		ID:         events.NewEventID(events.EventTypeNarrative, now),
		Type:       events.EventTypeNarrative,
		ChannelRef: channelRef,
		StartTime:  now,
		EndTime:    now.Add(NarrativeDuration),
		Payload:    &events.NarrativePayload{Chapter: beat.Chapter, Beat: beat.Beat},
	}
	rt.registry.Insert(e)

	rt.announce.Announce("narrative_beat", channelRef, map[string]any{
		"event_id": e.ID,
		"chapter":  beat.Chapter,
		"beat":     beat.Beat,
	})
	return e
}
