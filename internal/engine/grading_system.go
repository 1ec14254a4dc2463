package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rewards"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rules"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/infra/storage"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/logger"
)

// GradingSystem closes out the academic month: averages every player's
// quiz grades per subject and pays out for each passed subject.
type GradingSystem struct {
	grades   storage.GradeStore
	applier  *rewardApplier
	logger   *logger.Logger
	announce Announcer
}

// NewGradingSystem wires the month-end settlement.
func NewGradingSystem(grades storage.GradeStore, applier *rewardApplier, log *logger.Logger, announce Announcer) *GradingSystem {
	return &GradingSystem{grades: grades, applier: applier, logger: log, announce: announce}
}

// RunMonthly grades the month containing `now` minus one: it covers the full
// previous calendar month, so it is meant to fire on day 1.
func (gs *GradingSystem) RunMonthly(ctx context.Context, channelRef string, now time.Time) error {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0)
	monthEnd := monthStart.AddDate(0, 1, 0)
	return gs.runPeriod(ctx, channelRef, monthStart, monthEnd)
}

func (gs *GradingSystem) runPeriod(ctx context.Context, channelRef string, from, to time.Time) error {
	averages, err := gs.grades.GetGradeAverages(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to load grade averages: %w", err)
	}
	if len(averages) == 0 {
		gs.logger.Info("Monthly grading: no grades recorded for " + from.Format("2006-01"))
		return nil
	}

	// Deterministic order so grants and announcements are reproducible.
	playerIDs := make([]string, 0, len(averages))
	for id := range averages {
		playerIDs = append(playerIDs, id)
	}
	sort.Strings(playerIDs)

	var report []map[string]any
	for _, playerID := range playerIDs {
		passed := 0
		for _, avg := range averages[playerID] {
			if avg >= rules.GradePassing {
				passed++
			}
		}
		if passed == 0 {
			continue
		}

		exp, rep := rules.MonthlyGradeRewards(passed)
		p, err := gs.applier.players.GetPlayer(ctx, playerID)
		if err != nil || p == nil {
			gs.logger.Warn("Monthly grading: skipping unknown player " + playerID)
			continue
		}

		delta := gs.applier.withClubBuffs(rewards.Delta{EXP: exp, Reputation: rep}, p.ClubID, to)
		if _, err := gs.applier.grant(ctx, playerID, delta); err != nil {
			gs.logger.Error("Monthly grading grant failed for " + playerID + ": " + err.Error())
			continue
		}

		report = append(report, map[string]any{
			"player":     playerID,
			"passed":     passed,
			"exp":        delta.EXP,
			"reputation": delta.Reputation,
		})
		gs.logger.Event("MONTHLY_GRADES", playerID, fmt.Sprintf("%d subjects passed", passed))
	}

	gs.announce.Announce("monthly_grades", channelRef, map[string]any{
		"month":   from.Format("2006-01"),
		"results": report,
	})
	return nil
}
