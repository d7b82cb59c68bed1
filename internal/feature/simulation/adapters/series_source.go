// Package adapters implements the simulation's storage ports.
package adapters

import (
	"context"

	priceusecase "bandtrader/internal/feature/prices/usecase"
	"bandtrader/internal/feature/simulation/usecase"
)

// SeriesFinder locates the stored series of a symbol.
type SeriesFinder interface {
	Reader(ctx context.Context, symbol string) (priceusecase.SeriesReader, error)
}

// seriesSource hands the engine one reader per symbol, optionally decorated
// (for example with a read-through cache).
type seriesSource struct {
	finder   SeriesFinder
	decorate func(priceusecase.SeriesReader) priceusecase.SeriesReader
}

var _ usecase.SeriesSource = (*seriesSource)(nil)

// NewSeriesSource creates a SeriesSource over finder. decorate may be nil.
func NewSeriesSource(finder SeriesFinder, decorate func(priceusecase.SeriesReader) priceusecase.SeriesReader) *seriesSource {
	return &seriesSource{finder: finder, decorate: decorate}
}

func (s *seriesSource) Reader(ctx context.Context, symbol string) (usecase.SeriesReader, error) {
	r, err := s.finder.Reader(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if s.decorate != nil {
		r = s.decorate(r)
	}
	return r, nil
}
