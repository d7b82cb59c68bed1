package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestATR(t *testing.T) {
	t.Parallel()

	v, ok := ATR([]float64{1, 2, 4, 7}, 2)
	assert.True(t, ok)
	assert.InDelta(t, 2.5, v, 1e-12)

	_, ok = ATR([]float64{1}, 2)
	assert.False(t, ok)
}

func TestCV(t *testing.T) {
	t.Parallel()

	v, ok := CV([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.True(t, ok)
	assert.InDelta(t, 40.0, v, 1e-12)

	_, ok = CV(nil)
	assert.False(t, ok)
}

func TestRSI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prices []float64
		window int
		want   float64
		ok     bool
	}{
		{name: "only gains", prices: []float64{1, 2, 3, 4, 5}, window: 2, want: 100, ok: true},
		{name: "flat", prices: []float64{5, 5, 5, 5}, window: 2, want: 50, ok: true},
		{name: "wilder smoothing", prices: []float64{1, 2, 1, 2, 1}, window: 2, want: 37.5, ok: true},
		{name: "too short", prices: []float64{1, 2}, window: 2, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v, ok := RSI(tt.prices, tt.window)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, v, 1e-9)
			}
		})
	}
}

func TestSMA(t *testing.T) {
	t.Parallel()

	v, ok := SMA([]float64{1, 2, 3, 4}, 2)
	assert.True(t, ok)
	assert.Equal(t, 3.5, v)

	_, ok = SMA([]float64{1}, 2)
	assert.False(t, ok)
}

func TestVolatilityIndex(t *testing.T) {
	t.Parallel()

	prices := repeat(100, 20)
	volumes := make([]int64, 20)
	for i := range volumes {
		volumes[i] = 1_000_000
	}

	v, ok := VolatilityIndex(prices, volumes)
	assert.True(t, ok)
	// Only the volume term contributes on a flat series.
	assert.InDelta(t, 30.0, v, 1e-9)

	_, ok = VolatilityIndex(repeat(100, 19), volumes)
	assert.False(t, ok, "needs a full band window")
}

func TestMedianOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2.0, medianOf([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, medianOf([]float64{4, 1, 3, 2}))
}
