package engine

import (
	"context"
	"sync"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/infra/storage"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/logger"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/metrics"
)

// CooldownTracker is the in-memory cooldown map, mirrored durably so that a
// restart does not reset player cooldowns.
type CooldownTracker struct {
	mu      sync.Mutex
	expires map[string]time.Time // "user|command" -> expiry

	store  storage.CooldownStore
	logger *logger.Logger
}

// NewCooldownTracker creates an empty tracker mirroring to store.
// A nil store disables the durable mirror (tests).
func NewCooldownTracker(store storage.CooldownStore, log *logger.Logger) *CooldownTracker {
	return &CooldownTracker{
		expires: make(map[string]time.Time),
		store:   store,
		logger:  log,
	}
}

func cooldownKey(userID, command string) string {
	return userID + "|" + command
}

// OnCooldown reports whether the command is still cooling down for the user.
func (c *CooldownTracker) OnCooldown(userID, command string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	expiry, ok := c.expires[cooldownKey(userID, command)]
	if !ok {
		return false
	}
	if !expiry.After(now) {
		delete(c.expires, cooldownKey(userID, command))
		return false
	}
	return true
}

// Set starts a cooldown and mirrors it best-effort.
func (c *CooldownTracker) Set(userID, command string, expiry time.Time) {
	c.mu.Lock()
	c.expires[cooldownKey(userID, command)] = expiry
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	go func() {
		err := c.store.StoreCooldown(context.Background(), userID, command, expiry)
		metrics.Get().RecordStoreWrite(err)
		if err != nil {
			c.logger.Warn("Failed to mirror cooldown for " + userID + "/" + command + ": " + err.Error())
		}
	}()
}

// LoadRecords installs cooldowns reloaded from durable storage.
func (c *CooldownTracker) LoadRecords(recs []storage.CooldownRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range recs {
		c.expires[cooldownKey(rec.UserID, rec.Command)] = rec.Expiry
	}
}

// Len returns how many cooldowns are tracked.
func (c *CooldownTracker) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.expires)
}
