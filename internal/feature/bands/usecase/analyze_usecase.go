package usecase

import (
	"context"
	"fmt"
	"time"

	"bandtrader/internal/feature/bands/domain/entity"
	priceentity "bandtrader/internal/feature/prices/domain/entity"
)

// SeriesReader is the part of the Series Store the analysis needs.
type SeriesReader interface {
	QueryRange(ctx context.Context, symbol string, from, to time.Time) ([]priceentity.Observation, error)
	MinMaxDays(ctx context.Context, symbol string) (first, last time.Time, ok bool, err error)
}

// AnalyzeUsecase computes volatility metrics for a stored series.
type AnalyzeUsecase struct {
	window    int
	numStdDev float64
}

// NewAnalyzeUsecase creates an AnalyzeUsecase using the given band settings.
func NewAnalyzeUsecase(window int, numStdDev float64) *AnalyzeUsecase {
	if window < 1 {
		window = DefaultWindow
	}
	if numStdDev <= 0 {
		numStdDev = DefaultNumStdDev
	}
	return &AnalyzeUsecase{window: window, numStdDev: numStdDev}
}

// Analyze clamps [from, to] to the stored days and computes metrics over the
// rows in between. The returned range is the clamped one.
func (au *AnalyzeUsecase) Analyze(ctx context.Context, reader SeriesReader, symbol string, from, to time.Time) (entity.Metrics, priceentity.DayRange, error) {
	m := entity.Metrics{Symbol: symbol}
	if to.Before(from) {
		return m, priceentity.DayRange{}, fmt.Errorf("%w: %s is before %s", ErrInvalidRange,
			to.Format(priceentity.DayLayout), from.Format(priceentity.DayLayout))
	}

	first, last, ok, err := reader.MinMaxDays(ctx, symbol)
	if err != nil {
		return m, priceentity.DayRange{}, fmt.Errorf("read stored range for %s: %w", symbol, err)
	}
	if !ok {
		return m, priceentity.DayRange{}, fmt.Errorf("%w: %s has no rows", ErrNoDataInRange, symbol)
	}
	if from.Before(first) {
		from = first
	}
	if to.After(last) {
		to = last
	}
	span := priceentity.DayRange{From: from, To: to}
	if to.Before(from) {
		return m, span, fmt.Errorf("%w: %s", ErrNoDataInRange, symbol)
	}

	rows, err := reader.QueryRange(ctx, symbol, from, to)
	if err != nil {
		return m, span, fmt.Errorf("query %s: %w", symbol, err)
	}
	if len(rows) == 0 {
		return m, span, fmt.Errorf("%w: %s %s", ErrNoDataInRange, symbol, span)
	}

	prices := make([]float64, len(rows))
	volumes := make([]int64, len(rows))
	for i, r := range rows {
		prices[i] = r.Price
		volumes[i] = r.Volume
	}

	m.Observations = len(rows)
	m.Band = CalculateBands(prices, au.window, au.numStdDev)
	m.ATR, _ = ATR(prices, au.window)
	m.CV, _ = CV(prices)
	m.RSI, m.RSIReady = RSI(prices, au.window)
	m.SMA, m.SMAReady = SMA(prices, au.window)
	m.VolatilityIndex, m.VolatilityReady = VolatilityIndex(prices, volumes)
	return m, span, nil
}
