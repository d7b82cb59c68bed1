// Package usecase implements the indicator engine: weighted Bollinger bands,
// the per-symbol band tracker and volatility metrics.
package usecase

import (
	"math"

	"bandtrader/internal/feature/bands/domain/entity"
)

const (
	// DefaultWindow is the number of trailing prices a band is computed over.
	DefaultWindow = 14
	// DefaultNumStdDev is the band half-width in standard deviations.
	DefaultNumStdDev = 2.0
)

// CalculateBands computes the band over the last window prices. Weights grow
// linearly from 1 for the oldest price to window for the newest; the same
// weights are used for the mean and the standard deviation. Fewer than window
// prices yields a Band with Ready=false.
func CalculateBands(prices []float64, window int, numStdDev float64) entity.Band {
	if window < 1 || len(prices) < window {
		return entity.Band{}
	}
	tail := prices[len(prices)-window:]

	var sumW, sumWP float64
	for i, p := range tail {
		w := float64(i + 1)
		sumW += w
		sumWP += w * p
	}
	mean := sumWP / sumW

	var sumWD float64
	for i, p := range tail {
		d := p - mean
		sumWD += float64(i+1) * d * d
	}
	variance := sumWD / sumW
	if variance < 0 {
		variance = 0
	}
	sd := math.Sqrt(variance)

	return entity.Band{
		Lower: mean - numStdDev*sd,
		Mean:  mean,
		Upper: mean + numStdDev*sd,
		Ready: true,
	}
}
