package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/infra/storage"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/logger"
)

// weeklyReputationDeltas by activity rank. Clubs below the table get nothing.
var weeklyReputationDeltas = []int{30, 20, 10}

// clubService owns club-facing world logic: daily buff regeneration and the
// weekly reputation settlement from the ranked activity table.
type clubService struct {
	store    storage.ClubStore
	buffs    *ClubBuffs
	logger   *logger.Logger
	announce Announcer
}

func newClubService(store storage.ClubStore, buffs *ClubBuffs, log *logger.Logger, announce Announcer) *clubService {
	return &clubService{store: store, buffs: buffs, logger: log, announce: announce}
}

// regenerateBuffs rolls fresh 24-hour buffs for every known club.
func (cs *clubService) regenerateBuffs(ctx context.Context, now time.Time, rnd *Rand) error {
	clubs, err := cs.store.GetAllClubs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list clubs: %w", err)
	}
	ids := make([]string, 0, len(clubs))
	for _, c := range clubs {
		ids = append(ids, c.ID)
	}
	rnd.Do(func(r *rand.Rand) {
		cs.buffs.Regenerate(ids, now, r)
	})
	cs.logger.Info(fmt.Sprintf("Regenerated daily buffs for %d clubs", len(ids)))
	return nil
}

// settleWeekly applies ranked reputation deltas from the activity table and
// announces the top clubs.
func (cs *clubService) settleWeekly(ctx context.Context) error {
	top, err := cs.store.GetTopClubsByActivity(ctx, len(weeklyReputationDeltas))
	if err != nil {
		return fmt.Errorf("failed to rank clubs: %w", err)
	}

	var standings []map[string]any
	for i, c := range top {
		delta := weeklyReputationDeltas[i]
		if err := cs.store.UpdateClubReputationWeekly(ctx, c.ID, delta); err != nil {
			cs.logger.Error("Weekly reputation grant failed for " + c.ID + ": " + err.Error())
			continue
		}
		standings = append(standings, map[string]any{
			"club_id": c.ID,
			"name":    c.Name,
			"rank":    i + 1,
			"delta":   delta,
		})
		cs.logger.Event("CLUB_WEEKLY_REPUTATION", c.ID, fmt.Sprintf("rank %d, +%d", i+1, delta))
	}

	cs.announce.Announce("weekly_top_clubs", "", map[string]any{"standings": standings})
	return nil
}
