package engine

import (
	"context"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/player"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rewards"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/infra/storage"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/logger"
)

// rewardApplier funnels every reward grant through one path: club buffs are
// applied exactly once per source, timed attribute buffs are installed, the
// currency floor is enforced, and the progress tracker is updated.
type rewardApplier struct {
	players     storage.PlayerStore
	buffs       *ClubBuffs
	playerBuffs *PlayerBuffs
	prog        *ProgressTracker
	logger      *logger.Logger

	// weeklyThemeEXPPercent is an additional exp multiplier source active
	// while a weekly theme runs. Zero means no theme bonus.
	weeklyThemeEXPPercent float64
}

// withClubBuffs scales a delta by the player's active club buffs and the
// weekly theme, each applied once. Order does not matter: the factors are
// plain percentage multipliers.
func (ra *rewardApplier) withClubBuffs(d rewards.Delta, clubID string, now time.Time) rewards.Delta {
	if pct := ra.buffs.EXPPercent(clubID, now); pct != 0 {
		d = d.WithEXPBuff(pct)
	}
	if pct := ra.buffs.TUSDPercent(clubID, now); pct != 0 {
		d = d.WithTUSDBuff(pct)
	}
	if ra.weeklyThemeEXPPercent != 0 {
		d = d.WithEXPBuff(ra.weeklyThemeEXPPercent)
	}
	return d
}

// grant applies a delta to the durable player record. Returns the player for
// callers that need post-grant state; a missing player is a nil result.
func (ra *rewardApplier) grant(ctx context.Context, playerID string, d rewards.Delta) (*player.Player, error) {
	p, err := ra.players.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}

	fields := map[string]any{
		"exp":        p.EXP + d.EXP,
		"tusd":       rewards.ApplyTUSD(p.TUSD, d.TUSD),
		"reputation": p.Reputation + d.Reputation,
	}
	if d.HPLoss != 0 {
		hp := p.HP - d.HPLoss
		if hp < 0 {
			hp = 0
		}
		fields["hp"] = hp
	}

	if err := ra.players.UpdatePlayer(ctx, playerID, fields); err != nil {
		return nil, err
	}

	now := time.Now()
	for _, b := range d.Buffs {
		ra.playerBuffs.Grant(playerID, b, now)
	}

	if d.EXP != 0 {
		ra.prog.RecordEXP(playerID, d.EXP)
	}
	return p, nil
}
