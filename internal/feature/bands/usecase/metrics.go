package usecase

import (
	"math"
	"sort"
)

// volatilityWindow is the band window used by VolatilityIndex.
const volatilityWindow = 20

// ATR returns the mean absolute close-to-close move over the last window moves.
// Only closes are stored, so the true range reduces to |p[i]-p[i-1]|.
func ATR(prices []float64, window int) (float64, bool) {
	if len(prices) < 2 || window < 1 {
		return 0, false
	}
	moves := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		moves = append(moves, math.Abs(prices[i]-prices[i-1]))
	}
	if len(moves) > window {
		moves = moves[len(moves)-window:]
	}
	return mean(moves), true
}

// CV returns the coefficient of variation in percent, using the population
// standard deviation.
func CV(prices []float64) (float64, bool) {
	if len(prices) == 0 {
		return 0, false
	}
	m := mean(prices)
	if m == 0 {
		return 0, false
	}
	return populationStdDev(prices, m) / m * 100, true
}

// RSI returns Wilder's relative strength index of the last price. The first
// average covers the first window moves; later moves are smoothed in.
func RSI(prices []float64, window int) (float64, bool) {
	if window < 1 || len(prices) < window+1 {
		return 0, false
	}
	var up, down float64
	for i := 1; i <= window; i++ {
		d := prices[i] - prices[i-1]
		if d >= 0 {
			up += d
		} else {
			down -= d
		}
	}
	up /= float64(window)
	down /= float64(window)

	n := float64(window)
	for i := window + 1; i < len(prices); i++ {
		d := prices[i] - prices[i-1]
		var u, dn float64
		if d > 0 {
			u = d
		} else {
			dn = -d
		}
		up = (up*(n-1) + u) / n
		down = (down*(n-1) + dn) / n
	}
	if down == 0 {
		if up == 0 {
			return 50, true
		}
		return 100, true
	}
	return 100 - 100/(1+up/down), true
}

// SMA returns the plain mean of the last window prices.
func SMA(prices []float64, window int) (float64, bool) {
	if window < 1 || len(prices) < window {
		return 0, false
	}
	return mean(prices[len(prices)-window:]), true
}

// VolatilityIndex blends standard deviation, ATR, band width and traded volume,
// each normalized by the median price (volume by one million), into one score.
func VolatilityIndex(prices []float64, volumes []int64) (float64, bool) {
	if len(prices) < 2 || len(volumes) == 0 {
		return 0, false
	}
	band := CalculateBands(prices, volatilityWindow, DefaultNumStdDev)
	if !band.Ready {
		return 0, false
	}
	atr, _ := ATR(prices, DefaultWindow)
	median := medianOf(prices)
	if median == 0 {
		return 0, false
	}

	var volSum float64
	for _, v := range volumes {
		volSum += float64(v)
	}
	avgVolume := volSum / float64(len(volumes))

	const (
		stdDevWeight    = 0.3
		atrWeight       = 0.2
		bandWidthWeight = 0.2
		volumeWeight    = 0.3
	)
	score := stdDevWeight*sampleStdDev(prices)/median +
		atrWeight*atr/median +
		bandWidthWeight*band.Width()/median +
		volumeWeight*avgVolume/1_000_000
	return score * 100, true
}

func mean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func populationStdDev(xs []float64, m float64) float64 {
	var s float64
	for _, x := range xs {
		s += (x - m) * (x - m)
	}
	return math.Sqrt(s / float64(len(xs)))
}

func sampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var s float64
	for _, x := range xs {
		s += (x - m) * (x - m)
	}
	return math.Sqrt(s / float64(len(xs)-1))
}

func medianOf(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
