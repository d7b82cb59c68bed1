package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	priceentity "bandtrader/internal/feature/prices/domain/entity"
	"bandtrader/internal/feature/simulation/domain/entity"
	"bandtrader/internal/feature/simulation/usecase"
)

var newYork = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}()

// setupTestDB prepares an in-memory SQLite ledger.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to initialize test database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(LedgerModels()...), "failed to migrate tables")
	return db
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation(priceentity.DayLayout, s, newYork)
	require.NoError(t, err)
	return d
}

func sampleRun(t *testing.T) entity.RunInfo {
	return entity.RunInfo{
		ID:           "run-1",
		Symbols:      []string{"AAPL", "MSFT"},
		SeedStart:    day(t, "2024-01-02"),
		SeedEnd:      day(t, "2024-01-02"),
		SimStart:     day(t, "2024-01-03"),
		SimEnd:       day(t, "2024-01-05"),
		Interval:     "1min",
		ThresholdPct: 1.5,
		InitialCash:  decimal.NewFromInt(1000),
		Status:       entity.RunRunning,
		StartedAt:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func sampleDay(t *testing.T, runID, d string) entity.DayLedger {
	date := day(t, d)
	return entity.DayLedger{
		Equity: entity.EquityEntry{RunID: runID, Date: date, Cash: decimal.NewFromInt(20), Equity: decimal.NewFromInt(1000), Buys: 1},
		Symbols: []entity.SymbolDay{
			{RunID: runID, Date: date, Symbol: "AAPL", Shares: 14, LastPrice: 70, DailyProfit: decimal.Zero, Buys: 1},
			{RunID: runID, Date: date, Symbol: "MSFT", LastPrice: 300, DailyProfit: decimal.Zero},
		},
		Trades: []entity.Trade{{
			RunID:     runID,
			Date:      date,
			Time:      date.Add(10*time.Hour + 31*time.Minute),
			Symbol:    "AAPL",
			Action:    entity.ActionBuy,
			Shares:    14,
			Price:     70,
			CashAfter: decimal.NewFromInt(20),
			Profit:    decimal.Zero,
		}},
	}
}

func TestLedgerGorm_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(setupTestDB(t), newYork)
	run := sampleRun(t)

	require.NoError(t, repo.BeginRun(ctx, run))

	got, err := repo.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RunRunning, got.Status)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got.Symbols)
	assert.Equal(t, "2024-01-05", got.SimEnd.Format(priceentity.DayLayout))
	assert.True(t, got.InitialCash.Equal(decimal.NewFromInt(1000)))
	assert.True(t, got.FinishedAt.IsZero())

	run.Status = entity.RunSucceeded
	run.FinalEquity = decimal.RequireFromString("1012.5")
	run.ReturnPct = 1.25
	run.FinishedAt = run.StartedAt.Add(time.Minute)
	require.NoError(t, repo.FinishRun(ctx, run))

	got, err = repo.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RunSucceeded, got.Status)
	assert.True(t, got.FinalEquity.Equal(decimal.RequireFromString("1012.5")), got.FinalEquity.String())
	assert.Equal(t, 1.25, got.ReturnPct)
	assert.False(t, got.FinishedAt.IsZero())
}

func TestLedgerGorm_RunNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(setupTestDB(t), newYork)

	_, err := repo.Run(ctx, "nope")
	assert.ErrorIs(t, err, usecase.ErrRunNotFound)

	err = repo.FinishRun(ctx, entity.RunInfo{ID: "nope", Status: entity.RunFailed})
	assert.ErrorIs(t, err, usecase.ErrRunNotFound)
}

func TestLedgerGorm_AppendDay(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewLedgerRepository(db, newYork)
	require.NoError(t, repo.BeginRun(ctx, sampleRun(t)))

	require.NoError(t, repo.AppendDay(ctx, sampleDay(t, "run-1", "2024-01-03")))
	require.NoError(t, repo.AppendDay(ctx, sampleDay(t, "run-1", "2024-01-04")))
	// A repeated day is ignored as a whole.
	require.NoError(t, repo.AppendDay(ctx, sampleDay(t, "run-1", "2024-01-04")))

	equity, err := repo.Equity(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, equity, 2)
	assert.Equal(t, "2024-01-03", equity[0].Date.Format(priceentity.DayLayout))
	assert.True(t, equity[0].Cash.Equal(decimal.NewFromInt(20)))
	assert.True(t, equity[0].Equity.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 1, equity[0].Buys)

	symbols, err := repo.SymbolDays(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, symbols, 4)
	assert.Equal(t, "AAPL", symbols[0].Symbol)
	assert.Equal(t, int64(14), symbols[0].Shares)
	assert.Equal(t, "MSFT", symbols[1].Symbol)

	trades, err := repo.Trades(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, entity.ActionBuy, trades[0].Action)
	assert.Equal(t, "10:31:00", trades[0].Time.Format(priceentity.TimeLayout))
	assert.Equal(t, "2024-01-03", trades[0].Time.Format(priceentity.DayLayout))
	assert.True(t, trades[0].CashAfter.Equal(decimal.NewFromInt(20)))

	var count int64
	require.NoError(t, db.Model(&TradeModel{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestLedgerGorm_RunsAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(setupTestDB(t), newYork)

	require.NoError(t, repo.AppendDay(ctx, sampleDay(t, "run-a", "2024-01-03")))
	require.NoError(t, repo.AppendDay(ctx, sampleDay(t, "run-b", "2024-01-03")))

	equity, err := repo.Equity(ctx, "run-a")
	require.NoError(t, err)
	assert.Len(t, equity, 1)

	trades, err := repo.Trades(ctx, "run-c")
	require.NoError(t, err)
	assert.Empty(t, trades)
}
