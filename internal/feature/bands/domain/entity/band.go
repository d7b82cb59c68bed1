// Package entity defines the domain models for the bands feature.
package entity

// Band is a weighted Bollinger envelope for one symbol.
// Ready is false until the trailing window is full; the other fields are
// meaningless while it is false.
type Band struct {
	Lower float64 `json:"lower"`
	Mean  float64 `json:"mean"`
	Upper float64 `json:"upper"`
	Ready bool    `json:"ready"`
}

// Width returns Upper-Lower, or 0 for a band that is not ready.
func (b Band) Width() float64 {
	if !b.Ready {
		return 0
	}
	return b.Upper - b.Lower
}

// Metrics summarizes the volatility of a price series.
type Metrics struct {
	Symbol          string
	Observations    int
	Band            Band
	ATR             float64
	CV              float64
	RSI             float64
	RSIReady        bool
	SMA             float64
	SMAReady        bool
	VolatilityIndex float64
	VolatilityReady bool
}
