package usecase

import (
	"context"
	"fmt"
	"time"

	"bandtrader/internal/feature/prices/domain/entity"
)

// SeriesAuditor is the read side of the Series Store needed for coverage checks.
type SeriesAuditor interface {
	Days(ctx context.Context, symbol string) ([]time.Time, error)
	Duplicates(ctx context.Context, symbol string) ([]entity.DuplicateGroup, error)
}

// CoverageReport describes how completely a stored series covers its own span.
type CoverageReport struct {
	Symbol       string
	FirstDay     time.Time
	LastDay      time.Time
	ExpectedDays int
	ActualDays   int
	Missing      []entity.DayRange
	Duplicates   []entity.DuplicateGroup
	CoveragePct  float64
}

// ValidateUsecase checks stored series for missing trading days and duplicate rows.
type ValidateUsecase struct {
	calendar Calendar
}

// NewValidateUsecase creates a new ValidateUsecase.
func NewValidateUsecase(calendar Calendar) *ValidateUsecase {
	return &ValidateUsecase{calendar: calendar}
}

// Validate builds a CoverageReport for symbol. Missing trading days separated only
// by closed days are reported as one range.
func (vu *ValidateUsecase) Validate(ctx context.Context, store SeriesAuditor, symbol string) (CoverageReport, error) {
	rep := CoverageReport{Symbol: symbol}

	days, err := store.Days(ctx, symbol)
	if err != nil {
		return rep, fmt.Errorf("list days for %s: %w", symbol, err)
	}
	if len(days) == 0 {
		return rep, ErrNoSeries
	}

	present := make(map[string]struct{}, len(days))
	for _, d := range days {
		present[d.Format(entity.DayLayout)] = struct{}{}
	}
	rep.FirstDay = vu.calendar.Day(days[0])
	rep.LastDay = vu.calendar.Day(days[len(days)-1])
	rep.ActualDays = len(days)

	var missing []time.Time
	for d := rep.FirstDay; !d.After(rep.LastDay); d = d.AddDate(0, 0, 1) {
		if !vu.calendar.IsTradingDay(d) {
			continue
		}
		rep.ExpectedDays++
		if _, ok := present[d.Format(entity.DayLayout)]; !ok {
			missing = append(missing, d)
		}
	}
	rep.Missing = entity.ConsolidateDays(missing, func(d time.Time) bool { return !vu.calendar.IsTradingDay(d) })

	if rep.ExpectedDays > 0 {
		rep.CoveragePct = float64(rep.ExpectedDays-len(missing)) / float64(rep.ExpectedDays) * 100
	}

	rep.Duplicates, err = store.Duplicates(ctx, symbol)
	if err != nil {
		return rep, fmt.Errorf("find duplicates for %s: %w", symbol, err)
	}
	return rep, nil
}
