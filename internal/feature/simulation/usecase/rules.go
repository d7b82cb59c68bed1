package usecase

import (
	"math"

	bandentity "bandtrader/internal/feature/bands/domain/entity"
)

// Config holds the strategy parameters of a run.
type Config struct {
	Window          int
	NumStdDev       float64
	ThresholdPct    float64 // widens both triggers toward the mean, in percent of the band
	InitialCash     float64
	MinProfitMargin float64 // minimum profit/cost ratio for a sell
	LossTolerance   float64 // largest loss/cost ratio accepted for a sell; 0 never sells at a loss
}

// buyLevel is the highest price that triggers a buy.
func (c Config) buyLevel(b bandentity.Band) float64 {
	return b.Lower * (1 + c.ThresholdPct/100)
}

// sellLevel is the lowest price that triggers a sell.
func (c Config) sellLevel(b bandentity.Band) float64 {
	return b.Upper * (1 - c.ThresholdPct/100)
}

// tradable reports whether b can drive a decision. A band of zero width comes
// from a flat window and carries no signal.
func tradable(b bandentity.Band) bool {
	return b.Ready && b.Width() > 0
}

// BuyTriggered reports whether price is at or below the buy level of b.
func (c Config) BuyTriggered(price float64, b bandentity.Band) bool {
	return tradable(b) && price <= c.buyLevel(b)
}

// SellTriggered reports whether price is at or above the sell level of b.
func (c Config) SellTriggered(price float64, b bandentity.Band) bool {
	return tradable(b) && price >= c.sellLevel(b)
}

// SharesToBuy sizes a buy against budget. At or below the lower band the whole
// budget is used; inside the threshold zone the allocation shrinks linearly with
// the distance above the band, with a floor of one share. Zero means no buy.
func (c Config) SharesToBuy(price float64, b bandentity.Band, budget float64) int64 {
	if price <= 0 || budget < price {
		return 0
	}
	frac := 1.0
	if price > b.Lower {
		zone := b.Lower * c.ThresholdPct / 100
		if zone <= 0 {
			return 0
		}
		frac = 1 - (price-b.Lower)/zone
		if frac < 0 {
			return 0
		}
	}
	n := int64(math.Floor(budget * frac / price))
	if n < 1 {
		n = 1
	}
	return n
}

// SellAccepted reports whether a sale with the given proceeds and cost basis
// clears the profit margin or stays inside the loss tolerance.
func (c Config) SellAccepted(proceeds, cost float64) bool {
	if cost <= 0 {
		return proceeds > 0
	}
	ratio := (proceeds - cost) / cost
	if ratio >= 0 {
		return ratio >= c.MinProfitMargin
	}
	return c.LossTolerance > 0 && -ratio <= c.LossTolerance
}
