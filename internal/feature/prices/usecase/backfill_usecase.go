package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bandtrader/internal/feature/prices/domain/entity"
	"bandtrader/internal/shared/ratelimiter"
)

// MarketRepository fetches raw observations from the remote price API.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type MarketRepository interface {
	// FetchPrices returns the observations in [start, end] (calendar days, inclusive)
	// with UTC timestamps. An empty slice with a nil error means the provider has no data.
	FetchPrices(ctx context.Context, symbol string, start, end time.Time) ([]entity.Observation, error)
}

// SeriesRepository is the write side of the Series Store used by backfill.
type SeriesRepository interface {
	// AppendDay stores one calendar day atomically and returns the number of new rows.
	AppendDay(ctx context.Context, symbol string, day time.Time, obs []entity.Observation) (int64, error)
	// MinMaxDays returns the earliest and latest stored day; ok is false for an empty series.
	MinMaxDays(ctx context.Context, symbol string) (first, last time.Time, ok bool, err error)
}

// SeriesProvider resolves the store that holds a symbol's series.
type SeriesProvider interface {
	ForSymbol(ctx context.Context, symbol string, start, end time.Time) (SeriesRepository, error)
}

// Calendar answers which days the exchange is open.
type Calendar interface {
	Location() *time.Location
	Day(t time.Time) time.Time
	IsTradingDay(t time.Time) bool
	HasTradingDay(from, to time.Time) bool
}

// BackfillRequest describes one symbol's range to ingest.
type BackfillRequest struct {
	Symbol string
	Start  time.Time
	End    time.Time
}

// BackfillResult summarizes a backfill run. It is returned together with any error,
// so a partial run still reports the last day that was fully written.
type BackfillResult struct {
	Symbol           string
	Requests         int
	Rows             int64
	DaysWritten      int
	LastCompletedDay time.Time
	Exhausted        bool
}

// BackfillUsecase drives the provider across arbitrarily long ranges and stores the rows day by day.
type BackfillUsecase struct {
	market      MarketRepository
	rateLimiter ratelimiter.RateLimiterInterface
	calendar    Calendar
}

// NewBackfillUsecase creates a new BackfillUsecase.
func NewBackfillUsecase(market MarketRepository, rateLimiter ratelimiter.RateLimiterInterface, calendar Calendar) *BackfillUsecase {
	return &BackfillUsecase{market: market, rateLimiter: rateLimiter, calendar: calendar}
}

// WindowDays picks the request window for the number of days left in the range.
// Wide windows keep the request count low; narrow ones keep each payload under the provider's cap.
func WindowDays(remaining int) int {
	switch {
	case remaining > 365:
		return 365
	case remaining > 182:
		return 182
	case remaining > 90:
		return 90
	case remaining > 30:
		return 30
	case remaining > 7:
		return 7
	default:
		return 1
	}
}

func daysBetween(from, to time.Time) int {
	y1, m1, d1 := from.Date()
	y2, m2, d2 := to.Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// Backfill ingests req into store. If the store already holds days inside the range,
// the run resumes from the latest stored day.
//
// Empty windows: a window with no trading day is skipped; a single trading day with
// no rows is skipped and logged; a multi-day window with trading days and no rows
// ends the run as exhausted once any history has been seen.
func (bu *BackfillUsecase) Backfill(ctx context.Context, store SeriesRepository, req BackfillRequest) (BackfillResult, error) {
	res := BackfillResult{Symbol: req.Symbol}

	current := bu.calendar.Day(req.Start)
	end := bu.calendar.Day(req.End)
	if end.Before(current) {
		return res, fmt.Errorf("%w: %s is before %s", ErrInvalidRange, end.Format(entity.DayLayout), current.Format(entity.DayLayout))
	}

	seenData := false
	_, last, ok, err := store.MinMaxDays(ctx, req.Symbol)
	if err != nil {
		return res, fmt.Errorf("read stored range for %s: %w", req.Symbol, err)
	}
	if ok {
		last = bu.calendar.Day(last)
		if !last.Before(current) && !last.After(end) {
			seenData = true
			slog.Info("resuming backfill from stored data", "symbol", req.Symbol, "from", last.Format(entity.DayLayout))
			current = last
			res.LastCompletedDay = last
		}
	}

	for !current.After(end) {
		window := WindowDays(daysBetween(current, end))
		windowEnd := current.AddDate(0, 0, window-1)
		if windowEnd.After(end) {
			windowEnd = end
		}

		if err := bu.rateLimiter.WaitIfNeeded(ctx); err != nil {
			return res, err
		}
		obs, err := bu.market.FetchPrices(ctx, req.Symbol, current, windowEnd)
		res.Requests++
		if err != nil {
			return res, fmt.Errorf("fetch %s %s..%s: %w", req.Symbol,
				current.Format(entity.DayLayout), windowEnd.Format(entity.DayLayout), err)
		}

		logArgs := []any{"symbol", req.Symbol, "from", current.Format(entity.DayLayout),
			"to", windowEnd.Format(entity.DayLayout), "window_days", window, "rows", len(obs)}

		if len(obs) == 0 {
			switch {
			case !bu.calendar.HasTradingDay(current, windowEnd):
				slog.Debug("window has no trading days", logArgs...)
			case current.Equal(windowEnd):
				slog.Info("no data for trading day", logArgs...)
			case !seenData:
				slog.Info("no history yet, continuing", logArgs...)
			default:
				slog.Warn("provider history exhausted", logArgs...)
				res.Exhausted = true
				return res, nil
			}
		} else {
			seenData = true
			if err := bu.flush(ctx, store, req.Symbol, obs, &res); err != nil {
				return res, err
			}
			slog.Info("window stored", logArgs...)
		}

		current = windowEnd.AddDate(0, 0, 1)
	}
	return res, nil
}

// flush converts rows to exchange time, groups them by day and stores each day
// in ascending order, so a failure leaves the store complete up to a day boundary.
func (bu *BackfillUsecase) flush(ctx context.Context, store SeriesRepository, symbol string, obs []entity.Observation, res *BackfillResult) error {
	loc := bu.calendar.Location()
	byDay := make(map[string][]entity.Observation)
	for _, o := range obs {
		o.Symbol = symbol
		o.Time = o.Time.In(loc)
		key := o.Day()
		byDay[key] = append(byDay[key], o)
	}

	keys := make([]string, 0, len(byDay))
	for k := range byDay {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		rows := byDay[k]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Time.Before(rows[j].Time) })
		day, err := time.ParseInLocation(entity.DayLayout, k, loc)
		if err != nil {
			return err
		}
		n, err := store.AppendDay(ctx, symbol, day, rows)
		if err != nil {
			return fmt.Errorf("store %s %s: %w", symbol, k, err)
		}
		res.Rows += n
		res.DaysWritten++
		res.LastCompletedDay = day
	}
	return nil
}

// DiscoverStart scans forward from floor one year at a time and returns the first
// day the provider has data for. ok is false when nothing exists up to until.
func (bu *BackfillUsecase) DiscoverStart(ctx context.Context, symbol string, floor, until time.Time) (first time.Time, ok bool, err error) {
	current := bu.calendar.Day(floor)
	end := bu.calendar.Day(until)
	for !current.After(end) {
		windowEnd := current.AddDate(0, 0, 364)
		if windowEnd.After(end) {
			windowEnd = end
		}
		if err := bu.rateLimiter.WaitIfNeeded(ctx); err != nil {
			return time.Time{}, false, err
		}
		obs, err := bu.market.FetchPrices(ctx, symbol, current, windowEnd)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("probe %s from %s: %w", symbol, current.Format(entity.DayLayout), err)
		}
		if len(obs) > 0 {
			earliest := obs[0].Time
			for _, o := range obs[1:] {
				if o.Time.Before(earliest) {
					earliest = o.Time
				}
			}
			day := bu.calendar.Day(earliest.In(bu.calendar.Location()))
			slog.Info("first available data found", "symbol", symbol, "day", day.Format(entity.DayLayout))
			return day, true, nil
		}
		slog.Debug("no data in probe year", "symbol", symbol, "from", current.Format(entity.DayLayout))
		current = windowEnd.AddDate(0, 0, 1)
	}
	return time.Time{}, false, nil
}

// IngestAll backfills every symbol concurrently. Symbols share the credential pool
// and rate limiter only; one symbol failing does not stop the others.
func (bu *BackfillUsecase) IngestAll(ctx context.Context, stores SeriesProvider, symbols []string, start, end time.Time) ([]BackfillResult, error) {
	results := make([]BackfillResult, len(symbols))
	var (
		mu   sync.Mutex
		errs []error
	)

	var g errgroup.Group
	for i, s := range symbols {
		g.Go(func() error {
			store, err := stores.ForSymbol(ctx, s, start, end)
			if err != nil {
				results[i] = BackfillResult{Symbol: s}
				mu.Lock()
				errs = append(errs, fmt.Errorf("open store for %s: %w", s, err))
				mu.Unlock()
				return nil
			}
			res, err := bu.Backfill(ctx, store, BackfillRequest{Symbol: s, Start: start, End: end})
			results[i] = res
			if err != nil {
				slog.Error("failed to ingest data", "symbol", s, "last_completed_day", formatDay(res.LastCompletedDay), "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(entity.DayLayout)
}
