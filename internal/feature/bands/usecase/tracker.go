package usecase

import (
	"sync"

	"bandtrader/internal/feature/bands/domain/entity"
)

// Tracker keeps the trailing price window and current band of every symbol.
// Writes come from a single simulation loop; reads may come from API handlers
// concurrently.
type Tracker struct {
	mu        sync.RWMutex
	window    int
	numStdDev float64
	prices    map[string][]float64
	bands     map[string]entity.Band
}

// NewTracker creates a Tracker. Non-positive arguments fall back to the defaults.
func NewTracker(window int, numStdDev float64) *Tracker {
	if window < 1 {
		window = DefaultWindow
	}
	if numStdDev <= 0 {
		numStdDev = DefaultNumStdDev
	}
	return &Tracker{
		window:    window,
		numStdDev: numStdDev,
		prices:    make(map[string][]float64),
		bands:     make(map[string]entity.Band),
	}
}

// Window returns the number of prices a band needs.
func (t *Tracker) Window() int {
	return t.window
}

// Seed replaces symbol's history with the tail of prices and computes its band.
func (t *Tracker) Seed(symbol string, prices []float64) entity.Band {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(prices) > t.window {
		prices = prices[len(prices)-t.window:]
	}
	hist := make([]float64, len(prices), t.window+1)
	copy(hist, prices)
	t.prices[symbol] = hist
	b := CalculateBands(hist, t.window, t.numStdDev)
	t.bands[symbol] = b
	return b
}

// Observe appends price to symbol's history and recomputes its band.
func (t *Tracker) Observe(symbol string, price float64) entity.Band {
	t.mu.Lock()
	defer t.mu.Unlock()
	hist := append(t.prices[symbol], price)
	if len(hist) > t.window {
		hist = append(hist[:0], hist[len(hist)-t.window:]...)
	}
	t.prices[symbol] = hist
	b := CalculateBands(hist, t.window, t.numStdDev)
	t.bands[symbol] = b
	return b
}

// Current returns symbol's latest band.
func (t *Tracker) Current(symbol string) entity.Band {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bands[symbol]
}

// Snapshot copies every symbol's latest band.
func (t *Tracker) Snapshot() map[string]entity.Band {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]entity.Band, len(t.bands))
	for s, b := range t.bands {
		out[s] = b
	}
	return out
}
