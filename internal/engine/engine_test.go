package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/club"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/player"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rewards"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/events"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/infra/storage"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/config"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/logger"
)

// fakeStore is an in-memory storage.Store for engine tests. All methods are
// mutex-guarded because the registry mirrors asynchronously.
type fakeStore struct {
	mu        sync.Mutex
	players   map[string]*player.Player
	clubs     map[string]*club.Club
	events    map[string]events.Record
	flags     map[string]string
	flagsAt   map[string]time.Time
	cooldowns map[string]storage.CooldownRecord
	grades    map[string]map[string][]float64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		players:   make(map[string]*player.Player),
		clubs:     make(map[string]*club.Club),
		events:    make(map[string]events.Record),
		flags:     make(map[string]string),
		flagsAt:   make(map[string]time.Time),
		cooldowns: make(map[string]storage.CooldownRecord),
		grades:    make(map[string]map[string][]float64),
	}
}

func (s *fakeStore) GetPlayer(ctx context.Context, id string) (*player.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	cp.Techniques = append([]string(nil), p.Techniques...)
	return &cp, nil
}

func (s *fakeStore) CreatePlayer(ctx context.Context, p *player.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.players[p.ID] = &cp
	return nil
}

func (s *fakeStore) UpdatePlayer(ctx context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return nil
	}
	for k, v := range fields {
		switch k {
		case "exp":
			p.EXP = v.(int)
		case "tusd":
			p.TUSD = v.(int)
		case "reputation":
			p.Reputation = v.(int)
		case "hp":
			p.HP = v.(int)
		case "level":
			p.Level = v.(int)
		case "techniques":
			p.Techniques = append([]string(nil), v.([]string)...)
		case "club_id":
			p.ClubID = v.(string)
		}
	}
	return nil
}

func (s *fakeStore) GetClub(ctx context.Context, id string) (*club.Club, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clubs[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) GetAllClubs(ctx context.Context) ([]club.Club, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []club.Club
	for _, c := range s.clubs {
		out = append(out, *c)
	}
	return out, nil
}

func (s *fakeStore) UpsertClub(ctx context.Context, c *club.Club) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.clubs[c.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateClubReputationWeekly(ctx context.Context, id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clubs[id]; ok {
		c.Reputation += delta
	}
	return nil
}

func (s *fakeStore) GetTopClubsByActivity(ctx context.Context, limit int) ([]club.Club, error) {
	all, _ := s.GetAllClubs(ctx)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *fakeStore) StoreEvent(ctx context.Context, rec events.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[rec.ID] = rec
	return nil
}

func (s *fakeStore) GetEvent(ctx context.Context, id string) (*events.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *fakeStore) UpdateEventStatus(ctx context.Context, id string, completed bool, participants []string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.events[id]
	if !ok {
		return nil
	}
	rec.Completed = completed
	rec.Participants = participants
	rec.Data = data
	s.events[id] = rec
	return nil
}

func (s *fakeStore) GetActiveEvents(ctx context.Context) (map[string]events.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]events.Record)
	for id, rec := range s.events {
		if !rec.Completed {
			out[id] = rec
		}
	}
	return out, nil
}

func (s *fakeStore) GetSystemFlag(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[name], nil
}

func (s *fakeStore) SetSystemFlag(ctx context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[name] = value
	s.flagsAt[name] = time.Now()
	return nil
}

func (s *fakeStore) PruneSystemFlags(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for name, at := range s.flagsAt {
		if at.Before(before) {
			delete(s.flags, name)
			delete(s.flagsAt, name)
			n++
		}
	}
	return n, nil
}

// backdateFlag rewrites a flag's write time so prune cutoffs can be tested.
func (s *fakeStore) backdateFlag(name string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flagsAt[name] = at
}

func (s *fakeStore) StoreCooldown(ctx context.Context, userID, command string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cooldowns[userID+"|"+command] = storage.CooldownRecord{UserID: userID, Command: command, Expiry: expiry}
	return nil
}

func (s *fakeStore) GetCooldowns(ctx context.Context) ([]storage.CooldownRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.CooldownRecord
	for _, rec := range s.cooldowns {
		out = append(out, rec)
	}
	return out, nil
}

func (s *fakeStore) ClearExpiredCooldowns(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, rec := range s.cooldowns {
		if rec.Expiry.Before(now) {
			delete(s.cooldowns, k)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) UpdatePlayerGrade(ctx context.Context, playerID, subject string, grade float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grades[playerID] == nil {
		s.grades[playerID] = make(map[string][]float64)
	}
	s.grades[playerID][subject] = append(s.grades[playerID][subject], grade)
	return nil
}

func (s *fakeStore) GetGradeAverages(ctx context.Context, from, to time.Time) (map[string]map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[string]float64)
	for pid, subjects := range s.grades {
		out[pid] = make(map[string]float64)
		for subject, gs := range subjects {
			sum := 0.0
			for _, g := range gs {
				sum += g
			}
			out[pid][subject] = sum / float64(len(gs))
		}
	}
	return out, nil
}

func rewardsDelta(exp, tusd int) rewards.Delta {
	return rewards.Delta{EXP: exp, TUSD: tusd}
}

// fixture bundles the collaborators shared by the lifecycle system tests.
type fixture struct {
	store       *fakeStore
	registry    *events.Registry
	applier     *rewardApplier
	buffs       *ClubBuffs
	playerBuffs *PlayerBuffs
	prog        *ProgressTracker
	activity    *ActivityTracker
	rand        *Rand
	logger      *logger.Logger
}

func newFixture(seed int64) *fixture {
	store := newFakeStore()
	log := logger.NewLogger()
	buffs := NewClubBuffs()
	playerBuffs := NewPlayerBuffs()
	prog := NewProgressTracker()
	return &fixture{
		store:       store,
		registry:    events.NewRegistry(store, log),
		applier:     &rewardApplier{players: store, buffs: buffs, playerBuffs: playerBuffs, prog: prog, logger: log},
		buffs:       buffs,
		playerBuffs: playerBuffs,
		prog:        prog,
		activity:    NewActivityTracker(),
		rand:        NewRand(seed),
		logger:      log,
	}
}

func (f *fixture) addPlayer(id string, level int) *player.Player {
	p := player.NewPlayer(id, "Aluno "+id)
	p.Level = level
	p.TUSD = 100
	f.store.CreatePlayer(context.Background(), p)
	return p
}

func TestMinionFirstAttackerWins(t *testing.T) {
	f := newFixture(1)
	f.addPlayer("p1", 3)
	f.addPlayer("p2", 3)
	ms := NewMinionSystem(f.registry, f.applier, f.rand, f.logger, nopAnnouncer{})

	e := ms.Spawn("patio", time.Now())
	mp := e.Payload.(*events.MinionPayload)
	if mp.Name == "" || mp.EXPReward <= 0 {
		t.Fatalf("Spawned minion missing payload: %+v", mp)
	}

	ctx := context.Background()
	first := ms.Attack(ctx, e.ID, "p1")
	if !first.OK || !first.Defeated {
		t.Fatalf("Expected first attacker to defeat the minion, got %+v", first)
	}
	if first.Rewards.EXP <= 0 {
		t.Errorf("Expected a positive exp reward, got %d", first.Rewards.EXP)
	}

	second := ms.Attack(ctx, e.ID, "p2")
	if second.OK || !second.NotFound {
		t.Errorf("Expected second attacker to find nothing, got %+v", second)
	}

	p1, _ := f.store.GetPlayer(ctx, "p1")
	if p1.EXP != first.Rewards.EXP {
		t.Errorf("Expected p1 exp %d persisted, got %d", first.Rewards.EXP, p1.EXP)
	}
}

func TestMinionAttackUnknownPlayer(t *testing.T) {
	f := newFixture(1)
	ms := NewMinionSystem(f.registry, f.applier, f.rand, f.logger, nopAnnouncer{})
	e := ms.Spawn("patio", time.Now())
	res := ms.Attack(context.Background(), e.ID, "ghost")
	if !res.NotFound {
		t.Errorf("Expected unknown player rejected, got %+v", res)
	}
}

func TestVillainCooperativeTakedown(t *testing.T) {
	f := newFixture(2)
	for _, id := range []string{"p1", "p2", "p3"} {
		f.addPlayer(id, 50)
	}
	vs := NewVillainSystem(f.registry, f.applier, f.activity, f.rand, f.logger, nopAnnouncer{})

	e := vs.Spawn("arena", time.Now())
	vp := e.Payload.(*events.VillainPayload)
	startHP := vp.CurrentHP
	if startHP < 100 {
		t.Fatalf("Expected villain strength of at least 100, got %.1f", startHP)
	}

	ctx := context.Background()
	hp := startHP
	attackers := []string{"p1", "p2", "p3"}
	var last AttackResult
	for i := 0; !last.Defeated; i++ {
		id := attackers[i%len(attackers)]
		last = vs.Attack(ctx, e.ID, id)
		if last.AlreadyParticipated {
			// Everyone has struck once and the villain still stands.
			break
		}
		if !last.OK {
			t.Fatalf("Attack by %s failed: %+v", id, last)
		}
		if !last.Defeated && last.RemainingHP >= hp {
			t.Fatalf("Expected damage to accumulate, hp went %.1f -> %.1f", hp, last.RemainingHP)
		}
		hp = last.RemainingHP
	}

	if last.Defeated {
		for _, id := range attackers[:len(e.Participants)] {
			p, _ := f.store.GetPlayer(ctx, id)
			if p.EXP <= 0 {
				t.Errorf("Expected attacker %s to share the reward pool, exp=%d", id, p.EXP)
			}
		}
		if f.registry.Count() != 0 {
			t.Errorf("Expected defeated villain removed from registry")
		}
	}
}

func TestVillainSecondAttackRejected(t *testing.T) {
	f := newFixture(3)
	f.addPlayer("p1", 1)
	vs := NewVillainSystem(f.registry, f.applier, f.activity, f.rand, f.logger, nopAnnouncer{})
	e := vs.Spawn("arena", time.Now())

	ctx := context.Background()
	first := vs.Attack(ctx, e.ID, "p1")
	if !first.OK {
		t.Fatalf("First attack failed: %+v", first)
	}
	second := vs.Attack(ctx, e.ID, "p1")
	if !second.AlreadyParticipated {
		t.Errorf("Expected repeat attack rejected, got %+v", second)
	}
}

func TestVillainEscapeOnExpiry(t *testing.T) {
	f := newFixture(4)
	f.addPlayer("p1", 1)
	vs := NewVillainSystem(f.registry, f.applier, f.activity, f.rand, f.logger, nopAnnouncer{})
	_ = vs.Spawn("arena", time.Now().Add(-10*time.Hour))

	expired, _ := f.registry.ExpireSweep(time.Now())
	if len(expired) != 1 {
		t.Fatalf("Expected villain to expire, got %d", len(expired))
	}
	vs.OnExpired(expired[0])

	vp := expired[0].Payload.(*events.VillainPayload)
	if !vp.Escaped {
		t.Errorf("Expected expired villain marked escaped")
	}
	ctx := context.Background()
	p, _ := f.store.GetPlayer(ctx, "p1")
	if p.EXP != 0 {
		t.Errorf("Expected no rewards from an escaped villain, p1 exp=%d", p.EXP)
	}
}

func TestCollectibleSingleClaim(t *testing.T) {
	f := newFixture(5)
	f.addPlayer("p1", 2)
	f.addPlayer("p2", 2)
	cs := NewCollectibleSystem(f.registry, f.applier, f.rand, f.logger, nopAnnouncer{})

	e := cs.Spawn("biblioteca", time.Now())
	ctx := context.Background()

	first := cs.Collect(ctx, e.ID, "p1")
	if !first.OK || first.Item == "" {
		t.Fatalf("Expected first claim to succeed with an item, got %+v", first)
	}
	if len(first.Rewards.Buffs) != 1 {
		t.Errorf("Expected an attribute buff in the prize, got %d buffs", len(first.Rewards.Buffs))
	}

	second := cs.Collect(ctx, e.ID, "p2")
	if second.OK || !second.NotFound {
		t.Errorf("Expected second claim rejected, got %+v", second)
	}
}

func TestClubBuffsStackOnceOnGrant(t *testing.T) {
	f := newFixture(6)
	p := f.addPlayer("p1", 1)
	p.ClubID = "clube_das_chamas"
	f.store.CreatePlayer(context.Background(), p)
	f.buffs.Set("clube_das_chamas", club.Buff{
		Type:    club.BuffEXP,
		Value:   20,
		Expires: time.Now().Add(time.Hour),
	})

	d := f.applier.withClubBuffs(rewardsDelta(100, 50), "clube_das_chamas", time.Now())
	if d.EXP != 120 {
		t.Errorf("Expected 20%% exp buff applied once (120), got %d", d.EXP)
	}
	if d.TUSD != 50 {
		t.Errorf("Expected tusd untouched by exp buff, got %d", d.TUSD)
	}
}

func TestGrantFloorsCurrencyAtZero(t *testing.T) {
	f := newFixture(7)
	f.addPlayer("p1", 1) // starts with 100 TUSD
	ctx := context.Background()

	if _, err := f.applier.grant(ctx, "p1", rewardsDelta(0, -500)); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	p, _ := f.store.GetPlayer(ctx, "p1")
	if p.TUSD != 0 {
		t.Errorf("Expected currency floored at 0, got %d", p.TUSD)
	}
}

func TestFailedActionDoesNotArmCooldown(t *testing.T) {
	store := newFakeStore()
	eng := New(config.Default(), store, logger.NewLogger(), nil, 31)
	ctx := context.Background()

	p := player.NewPlayer("p1", "Aluno p1")
	store.CreatePlayer(ctx, p)

	// A miss on a stale event id must not burn the throttle window.
	if res := eng.AttackMinion(ctx, "minion_gone", "p1"); !res.NotFound {
		t.Fatalf("Expected NotFound for a stale event, got %+v", res)
	}

	e := eng.minions.Spawn("patio", time.Now())
	first := eng.AttackMinion(ctx, e.ID, "p1")
	if !first.OK {
		t.Fatalf("Expected attack right after a miss to land, got %+v", first)
	}

	e2 := eng.minions.Spawn("patio", time.Now())
	second := eng.AttackMinion(ctx, e2.ID, "p1")
	if !second.OnCooldown {
		t.Errorf("Expected the throttle armed after a landed attack, got %+v", second)
	}
}
