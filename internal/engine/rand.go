package engine

import (
	"math/rand"
	"sync"
)

// Rand wraps a math/rand source behind a mutex so lifecycle systems can
// share one deterministic stream across goroutines. Tests seed it to pin
// outcomes.
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand creates a locked random source from a seed.
func NewRand(seed int64) *Rand {
	return &Rand{r: rand.New(rand.NewSource(seed))}
}

// Do runs fn with exclusive access to the underlying source.
func (x *Rand) Do(fn func(r *rand.Rand)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	fn(x.r)
}

// Float64 returns a uniform value in [0,1).
func (x *Rand) Float64() float64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.r.Float64()
}

// Intn returns a uniform value in [0,n).
func (x *Rand) Intn(n int) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.r.Intn(n)
}

// Range returns a uniform int in [lo, hi].
func (x *Rand) Range(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + x.Intn(hi-lo+1)
}

// Shuffle permutes n elements using swap.
func (x *Rand) Shuffle(n int, swap func(i, j int)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.r.Shuffle(n, swap)
}
