// Package rules contains the pure game math of the world-event engine:
// weighted selection, rarity and tier tables, combat damage, and quiz grades.
// Everything here is deterministic given an injected random source, so it can
// be unit-tested without the scheduler.
package rules

import (
	"math/rand"
	"sort"
)

// HistoryWindow is how many recent event types feed weight rebalancing.
const HistoryWindow = 10

// WeightedChoice samples one key from weights proportionally to its value.
// Keys are iterated in sorted order so the outcome is deterministic for a
// fixed random source. Returns "" when all weights are zero.
func WeightedChoice(weights map[string]float64, r *rand.Rand) string {
	keys := make([]string, 0, len(weights))
	total := 0.0
	for k, w := range weights {
		if w <= 0 {
			continue
		}
		keys = append(keys, k)
		total += w
	}
	if total <= 0 {
		return ""
	}
	sort.Strings(keys)

	roll := r.Float64() * total
	acc := 0.0
	for _, k := range keys {
		acc += weights[k]
		if roll < acc {
			return k
		}
	}
	return keys[len(keys)-1]
}

// RebalanceWeights adjusts base weights by recent-history frequency:
// types under-represented in the window get 1.5x weight, over-represented
// ones get 0.7x, then the result is renormalized to sum to 1.
func RebalanceWeights(base map[string]float64, history []string) map[string]float64 {
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}

	counts := make(map[string]int, len(base))
	for _, h := range history {
		counts[h]++
	}

	out := make(map[string]float64, len(base))
	sum := 0.0
	for k, w := range base {
		adjusted := w
		if len(history) > 0 {
			observed := float64(counts[k]) / float64(len(history))
			switch {
			case observed < w*0.5:
				adjusted = w * 1.5
			case observed > w*1.5:
				adjusted = w * 0.7
			}
		}
		out[k] = adjusted
		sum += adjusted
	}

	if sum > 0 {
		for k := range out {
			out[k] /= sum
		}
	}
	return out
}
