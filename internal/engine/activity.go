package engine

import (
	"sync"
	"time"
)

// ActivityTracker keeps a rolling per-hour interaction counter. It feeds the
// random-event probability multiplier and villain strength scaling.
// Process-lifetime only: counters reset on restart, which only dampens event
// frequency for a while after a crash. (Accepted loss, see DESIGN.md.)
type ActivityTracker struct {
	mu      sync.Mutex
	perHour [24]int
	tracked [24]bool // hours that have seen at least one sample today
	total   int
	day     int // yearday of the counters, for daily rollover
}

// NewActivityTracker starts with empty counters.
func NewActivityTracker() *ActivityTracker {
	return &ActivityTracker{day: -1}
}

// Record counts one player interaction at the given time.
func (a *ActivityTracker) Record(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rolloverLocked(now)
	h := now.Hour()
	a.perHour[h]++
	a.tracked[h] = true
	a.total++
}

func (a *ActivityTracker) rolloverLocked(now time.Time) {
	if a.day == now.YearDay() {
		return
	}
	a.day = now.YearDay()
	a.perHour = [24]int{}
	a.tracked = [24]bool{}
	a.total = 0
}

// Factor returns the random-event activity multiplier for the current hour:
// scales with the hour's interaction count, capped at 4x, with an extra 1.5x
// spike bonus when the hour runs at more than twice the mean of the other
// tracked hours.
func (a *ActivityTracker) Factor(now time.Time) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rolloverLocked(now)

	h := now.Hour()
	count := a.perHour[h]

	factor := 1.0 + float64(count)/25.0
	if factor > 4.0 {
		factor = 4.0
	}

	otherSum, otherN := 0, 0
	for i := 0; i < 24; i++ {
		if i == h || !a.tracked[i] {
			continue
		}
		otherSum += a.perHour[i]
		otherN++
	}
	if otherN > 0 {
		mean := float64(otherSum) / float64(otherN)
		if mean > 0 && float64(count) > 2*mean {
			factor *= 1.5
		}
	}
	return factor
}

// StrengthMultiplier maps total daily activity to the villain strength
// multiplier in [1,3].
func (a *ActivityTracker) StrengthMultiplier(now time.Time) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rolloverLocked(now)

	m := 1.0 + float64(a.total)/200.0
	if m > 3.0 {
		return 3.0
	}
	return m
}
