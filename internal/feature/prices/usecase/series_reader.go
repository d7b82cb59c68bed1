package usecase

import (
	"context"
	"time"

	"bandtrader/internal/feature/prices/domain/entity"
)

// SeriesReader is the query side of the Series Store. Rows come back in
// exchange time, ordered by day and then time of day.
type SeriesReader interface {
	Query(ctx context.Context, symbol string, day time.Time) ([]entity.Observation, error)
	QueryRange(ctx context.Context, symbol string, from, to time.Time) ([]entity.Observation, error)
	MinMaxDays(ctx context.Context, symbol string) (first, last time.Time, ok bool, err error)
}
