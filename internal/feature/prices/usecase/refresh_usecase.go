package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SpanFinder reports the range already held for a symbol.
type SpanFinder interface {
	Span(ctx context.Context, symbol string) (start, end time.Time, ok bool, err error)
}

// Refresh brings every symbol up to today. A symbol with a stored series is
// extended from its original start; a new symbol starts lookbackDays back.
// Symbols are processed one after another so a scheduled refresh never
// competes with itself for the key pool.
func (bu *BackfillUsecase) Refresh(ctx context.Context, stores SeriesProvider, spans SpanFinder, symbols []string, today time.Time, lookbackDays int) ([]BackfillResult, error) {
	end := bu.calendar.Day(today)
	results := make([]BackfillResult, 0, len(symbols))
	var errs []error
	for _, s := range symbols {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		start, _, ok, err := spans.Span(ctx, s)
		if err != nil {
			errs = append(errs, fmt.Errorf("span for %s: %w", s, err))
			continue
		}
		if !ok {
			start = end.AddDate(0, 0, -lookbackDays)
		}
		store, err := stores.ForSymbol(ctx, s, start, end)
		if err != nil {
			errs = append(errs, fmt.Errorf("open store for %s: %w", s, err))
			continue
		}
		res, err := bu.Backfill(ctx, store, BackfillRequest{Symbol: s, Start: start, End: end})
		results = append(results, res)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		slog.Info("symbol refreshed", "symbol", s, "rows", res.Rows, "days", res.DaysWritten)
	}
	return results, errors.Join(errs...)
}
