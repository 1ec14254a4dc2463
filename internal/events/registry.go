package events

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/logger"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/metrics"
)

// Mirror is the durable side of the registry. Mirroring is best-effort:
// a failed write is logged and the in-memory state stays authoritative.
type Mirror interface {
	StoreEvent(ctx context.Context, rec Record) error
	UpdateEventStatus(ctx context.Context, id string, completed bool, participants []string, data []byte) error
}

// DefaultRandomCap bounds how many non-special events may be active at once.
const DefaultRandomCap = 3

// Registry is the single source of truth for active world events.
// All check-then-mutate sequences on an event run under one lock so
// "first attacker wins" holds even with true parallelism.
type Registry struct {
	mu     sync.Mutex
	active map[string]*WorldEvent

	mirror Mirror
	logger *logger.Logger

	randomCap int
}

// NewRegistry creates an empty registry mirroring to the given store.
// A nil mirror disables persistence (used by tests).
func NewRegistry(mirror Mirror, log *logger.Logger) *Registry {
	return &Registry{
		active:    make(map[string]*WorldEvent),
		mirror:    mirror,
		logger:    log,
		randomCap: DefaultRandomCap,
	}
}

// SetRandomCap overrides the non-special concurrency cap.
func (r *Registry) SetRandomCap(n int) {
	if n > 0 {
		r.randomCap = n
	}
}

// Insert adds an event to the registry and mirrors it asynchronously.
func (r *Registry) Insert(e *WorldEvent) {
	r.mu.Lock()
	r.active[e.ID] = e
	r.mu.Unlock()

	metrics.Get().RecordSpawn()
	r.mirrorStore(e)
}

// Load places a reconstructed event into the registry without re-mirroring.
// Used by the recovery routine.
func (r *Registry) Load(e *WorldEvent) {
	r.mu.Lock()
	r.active[e.ID] = e
	r.mu.Unlock()
}

// WithEvent runs fn on the named event under the registry lock.
// This is the resolve-once critical section: membership checks and payload
// mutation inside fn are atomic with respect to every other participant.
// Returns false when the event is not active.
func (r *Registry) WithEvent(id string, fn func(e *WorldEvent)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.active[id]
	if !ok {
		return false
	}
	fn(e)
	return true
}

// Find returns the first active event matching pred, or nil. Linear scan is
// fine: active-event counts are bounded by the concurrency cap.
func (r *Registry) Find(pred func(e *WorldEvent) bool) *WorldEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.active {
		if pred(e) {
			return e
		}
	}
	return nil
}

// Remove deletes an event from memory and marks the durable row completed.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.active[id]
	if ok {
		delete(r.active, id)
	}
	r.mu.Unlock()

	if ok {
		r.mirrorComplete(e)
	}
}

// Sync re-mirrors an event's current participants and payload without
// removing it. Villain attacks call this after each hit.
func (r *Registry) Sync(id string) {
	r.mu.Lock()
	e, ok := r.active[id]
	var rec Record
	var err error
	if ok {
		rec, err = e.ToRecord()
	}
	r.mu.Unlock()

	if !ok || r.mirror == nil {
		return
	}
	if err != nil {
		r.logger.Error("Registry sync: " + err.Error())
		return
	}
	go func() {
		err := r.mirror.UpdateEventStatus(context.Background(), rec.ID, rec.Completed, rec.Participants, rec.Data)
		metrics.Get().RecordStoreWrite(err)
		if err != nil {
			r.logger.Warn("Failed to mirror event update " + rec.ID + ": " + err.Error())
		}
	}()
}

// Count returns the number of active events.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// RandomSlotFree reports whether a new non-special event may spawn under
// the concurrency cap.
func (r *Registry) RandomSlotFree() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countNonSpecialLocked() < r.randomCap
}

func (r *Registry) countNonSpecialLocked() int {
	n := 0
	for _, e := range r.active {
		if !e.Type.Special() {
			n++
		}
	}
	return n
}

// ExpireSweep removes every event whose EndTime has passed and returns them
// so the caller can emit type-specific expiry effects (villain escape, etc.).
// If cleanup still leaves more than the cap of non-special events, the
// oldest excess events are forcibly evicted.
func (r *Registry) ExpireSweep(now time.Time) (expired []*WorldEvent, evicted []*WorldEvent) {
	r.mu.Lock()
	for id, e := range r.active {
		if e.Expired(now) {
			expired = append(expired, e)
			delete(r.active, id)
		}
	}

	if over := r.countNonSpecialLocked() - r.randomCap; over > 0 {
		var randoms []*WorldEvent
		for _, e := range r.active {
			if !e.Type.Special() {
				randoms = append(randoms, e)
			}
		}
		sort.Slice(randoms, func(i, j int) bool {
			return randoms[i].StartTime.Before(randoms[j].StartTime)
		})
		for i := 0; i < over; i++ {
			evicted = append(evicted, randoms[i])
			delete(r.active, randoms[i].ID)
		}
	}
	r.mu.Unlock()

	for _, e := range expired {
		metrics.Get().RecordExpiry()
		r.mirrorComplete(e)
	}
	for _, e := range evicted {
		metrics.Get().RecordEviction()
		r.mirrorComplete(e)
	}
	return expired, evicted
}

// SnapshotRecords serializes all active events, oldest first, for the
// periodic registry snapshot.
func (r *Registry) SnapshotRecords() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs := make([]Record, 0, len(r.active))
	for _, e := range r.active {
		rec, err := e.ToRecord()
		if err != nil {
			r.logger.Error("Registry snapshot skipped " + e.ID + ": " + err.Error())
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].StartTime.Before(recs[j].StartTime) })
	return recs
}

func (r *Registry) mirrorStore(e *WorldEvent) {
	if r.mirror == nil {
		return
	}
	rec, err := e.ToRecord()
	if err != nil {
		r.logger.Error("Registry mirror: " + err.Error())
		return
	}
	// Write through to persistent storage without blocking gameplay.
	go func() {
		err := r.mirror.StoreEvent(context.Background(), rec)
		metrics.Get().RecordStoreWrite(err)
		if err != nil {
			r.logger.Warn("Failed to mirror event " + rec.ID + ": " + err.Error())
		}
	}()
}

func (r *Registry) mirrorComplete(e *WorldEvent) {
	if r.mirror == nil {
		return
	}
	rec, err := e.ToRecord()
	if err != nil {
		r.logger.Error("Registry mirror: " + err.Error())
		return
	}
	go func() {
		err := r.mirror.UpdateEventStatus(context.Background(), rec.ID, true, rec.Participants, rec.Data)
		metrics.Get().RecordStoreWrite(err)
		if err != nil {
			r.logger.Warn("Failed to mark event completed " + rec.ID + ": " + err.Error())
		}
	}()
}
