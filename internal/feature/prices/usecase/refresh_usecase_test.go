package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bandtrader/internal/feature/prices/domain/entity"
	"bandtrader/internal/feature/prices/usecase"
)

type mockSpanFinder struct {
	SpanFunc func(ctx context.Context, symbol string) (time.Time, time.Time, bool, error)
}

func (m *mockSpanFinder) Span(ctx context.Context, symbol string) (time.Time, time.Time, bool, error) {
	return m.SpanFunc(ctx, symbol)
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	cal := newCalendar(t)
	market := &mockMarketRepository{FetchPricesFunc: oneRowPerTradingDay(cal, time.Time{})}
	provider := &mockSeriesProvider{loc: cal.Location()}
	spans := &mockSpanFinder{SpanFunc: func(ctx context.Context, symbol string) (time.Time, time.Time, bool, error) {
		switch symbol {
		case "AAPL":
			return day(t, cal, "2024-01-22"), day(t, cal, "2024-01-26"), true, nil
		case "BAD":
			return time.Time{}, time.Time{}, false, errors.New("unreadable")
		default:
			return time.Time{}, time.Time{}, false, nil
		}
	}}
	uc := usecase.NewBackfillUsecase(market, noopLimiter{}, cal)

	results, err := uc.Refresh(context.Background(), provider, spans, []string{"AAPL", "BAD", "NEW"},
		day(t, cal, "2024-01-31"), 3)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAD")
	require.Len(t, results, 2)
	// 22..26 and 29..31
	assert.Equal(t, 8, results[0].DaysWritten)
	// 28..31, of which 29, 30 and 31 are open
	assert.Equal(t, "NEW", results[1].Symbol)
	assert.Equal(t, 3, results[1].DaysWritten)
	assert.Equal(t, "2024-01-31", results[1].LastCompletedDay.Format(entity.DayLayout))
}

func TestRefresh_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()
	cal := newCalendar(t)
	uc := usecase.NewBackfillUsecase(&mockMarketRepository{}, noopLimiter{}, cal)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := uc.Refresh(ctx, &mockSeriesProvider{loc: cal.Location()}, &mockSpanFinder{}, []string{"AAPL"}, day(t, cal, "2024-01-31"), 3)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}
