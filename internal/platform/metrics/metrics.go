// Package metrics provides observability for the world-event engine.
// Counters are cheap atomics so systems can record from hot paths.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance metrics.
type Collector struct {
	// Scheduler metrics
	TickCount      int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	GatesFired     int64
	GatePanics     int64
	LastTickTime   time.Time

	// Event lifecycle metrics
	EventsSpawned  int64
	EventsResolved int64
	EventsExpired  int64
	EventsEvicted  int64

	// Store metrics
	StoreWrites      int64
	StoreWriteErrors int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = &Collector{
	StartTime: time.Now(),
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordTick records a tick cycle completion.
func (c *Collector) RecordTick(latency time.Duration) {
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.TickLatencyMax) {
		atomic.StoreInt64(&c.TickLatencyMax, int64(latency))
	}

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordGateFired records a scheduler gate handler firing.
func (c *Collector) RecordGateFired() {
	atomic.AddInt64(&c.GatesFired, 1)
}

// RecordGatePanic records a recovered panic inside a gate handler.
func (c *Collector) RecordGatePanic() {
	atomic.AddInt64(&c.GatePanics, 1)
}

// RecordSpawn records a world event entering the registry.
func (c *Collector) RecordSpawn() {
	atomic.AddInt64(&c.EventsSpawned, 1)
}

// RecordResolution records a world event resolved by a participant.
func (c *Collector) RecordResolution() {
	atomic.AddInt64(&c.EventsResolved, 1)
}

// RecordExpiry records a world event removed by the expiry sweep.
func (c *Collector) RecordExpiry() {
	atomic.AddInt64(&c.EventsExpired, 1)
}

// RecordEviction records a forced over-cap eviction.
func (c *Collector) RecordEviction() {
	atomic.AddInt64(&c.EventsEvicted, 1)
}

// RecordStoreWrite records a durable store write attempt.
func (c *Collector) RecordStoreWrite(err error) {
	atomic.AddInt64(&c.StoreWrites, 1)
	if err != nil {
		atomic.AddInt64(&c.StoreWriteErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)

	var tickAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"scheduler": map[string]interface{}{
			"tick_count":     tickCount,
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"gates_fired":    atomic.LoadInt64(&c.GatesFired),
			"gate_panics":    atomic.LoadInt64(&c.GatePanics),
			"last_tick":      c.LastTickTime.Format(time.RFC3339),
		},

		"events": map[string]interface{}{
			"spawned":  atomic.LoadInt64(&c.EventsSpawned),
			"resolved": atomic.LoadInt64(&c.EventsResolved),
			"expired":  atomic.LoadInt64(&c.EventsExpired),
			"evicted":  atomic.LoadInt64(&c.EventsEvicted),
		},

		"store": map[string]interface{}{
			"writes": atomic.LoadInt64(&c.StoreWrites),
			"errors": atomic.LoadInt64(&c.StoreWriteErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler that serves metrics as JSON.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(collector.Snapshot())
	}
}

// Reset zeroes the collector. Only for tests.
func Reset() {
	collector = &Collector{StartTime: time.Now()}
}
