package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	priceentity "bandtrader/internal/feature/prices/domain/entity"
	"bandtrader/internal/feature/simulation/domain/entity"
	"bandtrader/internal/feature/simulation/usecase"
)

// ledgerGorm stores runs and their per-day ledger in SQL tables.
type ledgerGorm struct {
	db  *gorm.DB
	loc *time.Location
}

var _ usecase.Ledger = (*ledgerGorm)(nil)

// NewLedgerRepository creates a ledger over db. Dates are read back in loc.
func NewLedgerRepository(db *gorm.DB, loc *time.Location) *ledgerGorm {
	if loc == nil {
		loc = time.UTC
	}
	return &ledgerGorm{db: db, loc: loc}
}

// RunModel is one simulation run.
type RunModel struct {
	RunID        string `gorm:"column:run_id;primaryKey;size:36"`
	Symbols      string `gorm:"column:symbols;not null"`
	SeedStart    string `gorm:"column:seed_start;size:10"`
	SeedEnd      string `gorm:"column:seed_end;size:10"`
	SimStart     string `gorm:"column:sim_start;size:10"`
	SimEnd       string `gorm:"column:sim_end;size:10"`
	Interval     string `gorm:"column:interval;size:16"`
	ThresholdPct float64
	InitialCash  decimal.Decimal `gorm:"column:initial_cash;type:numeric(20,4)"`
	Status       string          `gorm:"column:status;size:16;index"`
	FinalEquity  decimal.Decimal `gorm:"column:final_equity;type:numeric(20,4)"`
	ReturnPct    float64
	Error        string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

func (RunModel) TableName() string { return "runs" }

// EquityModel is the end-of-day state of a run.
type EquityModel struct {
	ID     uint            `gorm:"primaryKey"`
	RunID  string          `gorm:"column:run_id;size:36;not null;uniqueIndex:idx_equity_run_date"`
	Date   string          `gorm:"column:date;size:10;not null;uniqueIndex:idx_equity_run_date"`
	Cash   decimal.Decimal `gorm:"column:cash;type:numeric(20,4)"`
	Equity decimal.Decimal `gorm:"column:equity;type:numeric(20,4)"`
	Buys   int
	Sells  int
}

func (EquityModel) TableName() string { return "equity" }

// SymbolDayModel is the end-of-day state of one symbol in a run.
type SymbolDayModel struct {
	ID           uint            `gorm:"primaryKey"`
	RunID        string          `gorm:"column:run_id;size:36;not null;uniqueIndex:idx_symbol_days_row"`
	Date         string          `gorm:"column:date;size:10;not null;uniqueIndex:idx_symbol_days_row"`
	Symbol       string          `gorm:"column:symbol;size:16;not null;uniqueIndex:idx_symbol_days_row"`
	Shares       int64           `gorm:"column:shares"`
	LastPrice    float64         `gorm:"column:last_price"`
	DailyProfit  decimal.Decimal `gorm:"column:daily_profit;type:numeric(20,4)"`
	WinningSells int
	LosingSells  int
	Buys         int
	Sells        int
}

func (SymbolDayModel) TableName() string { return "symbol_days" }

// TradeModel is one executed order.
type TradeModel struct {
	ID        uint            `gorm:"primaryKey"`
	RunID     string          `gorm:"column:run_id;size:36;not null;index:idx_trades_run_date"`
	Date      string          `gorm:"column:date;size:10;not null;index:idx_trades_run_date"`
	Time      string          `gorm:"column:time;size:8;not null"`
	Symbol    string          `gorm:"column:symbol;size:16;not null"`
	Action    string          `gorm:"column:action;size:4;not null"`
	Shares    int64           `gorm:"column:shares"`
	Price     float64         `gorm:"column:price"`
	CashAfter decimal.Decimal `gorm:"column:cash_after;type:numeric(20,4)"`
	Profit    decimal.Decimal `gorm:"column:profit;type:numeric(20,4)"`
}

func (TradeModel) TableName() string { return "trades" }

// LedgerModels lists the tables to migrate.
func LedgerModels() []any {
	return []any{&RunModel{}, &EquityModel{}, &SymbolDayModel{}, &TradeModel{}}
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(priceentity.DayLayout)
}

func (r *ledgerGorm) parseDay(s string) time.Time {
	t, err := time.ParseInLocation(priceentity.DayLayout, s, r.loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func toRunModel(run entity.RunInfo) RunModel {
	m := RunModel{
		RunID:        run.ID,
		Symbols:      strings.Join(run.Symbols, ","),
		SeedStart:    formatDay(run.SeedStart),
		SeedEnd:      formatDay(run.SeedEnd),
		SimStart:     formatDay(run.SimStart),
		SimEnd:       formatDay(run.SimEnd),
		Interval:     run.Interval,
		ThresholdPct: run.ThresholdPct,
		InitialCash:  run.InitialCash,
		Status:       string(run.Status),
		FinalEquity:  run.FinalEquity,
		ReturnPct:    run.ReturnPct,
		Error:        run.Error,
		StartedAt:    run.StartedAt,
	}
	if !run.FinishedAt.IsZero() {
		f := run.FinishedAt
		m.FinishedAt = &f
	}
	return m
}

func (r *ledgerGorm) toRunInfo(m RunModel) entity.RunInfo {
	info := entity.RunInfo{
		ID:           m.RunID,
		SeedStart:    r.parseDay(m.SeedStart),
		SeedEnd:      r.parseDay(m.SeedEnd),
		SimStart:     r.parseDay(m.SimStart),
		SimEnd:       r.parseDay(m.SimEnd),
		Interval:     m.Interval,
		ThresholdPct: m.ThresholdPct,
		InitialCash:  m.InitialCash,
		Status:       entity.RunStatus(m.Status),
		FinalEquity:  m.FinalEquity,
		ReturnPct:    m.ReturnPct,
		Error:        m.Error,
		StartedAt:    m.StartedAt,
	}
	if m.Symbols != "" {
		info.Symbols = strings.Split(m.Symbols, ",")
	}
	if m.FinishedAt != nil {
		info.FinishedAt = *m.FinishedAt
	}
	return info
}

// BeginRun records a new run.
func (r *ledgerGorm) BeginRun(ctx context.Context, run entity.RunInfo) error {
	m := toRunModel(run)
	return r.db.WithContext(ctx).Create(&m).Error
}

// FinishRun stores the final status of a run.
func (r *ledgerGorm) FinishRun(ctx context.Context, run entity.RunInfo) error {
	m := toRunModel(run)
	res := r.db.WithContext(ctx).Model(&RunModel{}).Where("run_id = ?", run.ID).Updates(map[string]any{
		"status":       m.Status,
		"final_equity": m.FinalEquity,
		"return_pct":   m.ReturnPct,
		"error":        m.Error,
		"finished_at":  m.FinishedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return usecase.ErrRunNotFound
	}
	return nil
}

// AppendDay writes the equity entry, symbol entries and trades of one day in
// one transaction. Re-appending a day keeps the first equity and symbol rows.
func (r *ledgerGorm) AppendDay(ctx context.Context, d entity.DayLedger) error {
	eq := EquityModel{
		RunID:  d.Equity.RunID,
		Date:   formatDay(d.Equity.Date),
		Cash:   d.Equity.Cash,
		Equity: d.Equity.Equity,
		Buys:   d.Equity.Buys,
		Sells:  d.Equity.Sells,
	}
	symbols := make([]SymbolDayModel, 0, len(d.Symbols))
	for _, s := range d.Symbols {
		symbols = append(symbols, SymbolDayModel{
			RunID:        s.RunID,
			Date:         formatDay(s.Date),
			Symbol:       s.Symbol,
			Shares:       s.Shares,
			LastPrice:    s.LastPrice,
			DailyProfit:  s.DailyProfit,
			WinningSells: s.WinningSells,
			LosingSells:  s.LosingSells,
			Buys:         s.Buys,
			Sells:        s.Sells,
		})
	}
	trades := make([]TradeModel, 0, len(d.Trades))
	for _, t := range d.Trades {
		trades = append(trades, TradeModel{
			RunID:     t.RunID,
			Date:      formatDay(t.Date),
			Time:      t.Time.In(r.loc).Format(priceentity.TimeLayout),
			Symbol:    t.Symbol,
			Action:    string(t.Action),
			Shares:    t.Shares,
			Price:     t.Price,
			CashAfter: t.CashAfter,
			Profit:    t.Profit,
		})
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&eq)
		if res.Error != nil {
			return fmt.Errorf("insert equity: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if len(symbols) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&symbols).Error; err != nil {
				return fmt.Errorf("insert symbol days: %w", err)
			}
		}
		if len(trades) > 0 {
			if err := tx.Create(&trades).Error; err != nil {
				return fmt.Errorf("insert trades: %w", err)
			}
		}
		return nil
	})
}

// Run returns a recorded run, or usecase.ErrRunNotFound.
func (r *ledgerGorm) Run(ctx context.Context, id string) (entity.RunInfo, error) {
	var m RunModel
	if err := r.db.WithContext(ctx).Where("run_id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entity.RunInfo{}, usecase.ErrRunNotFound
		}
		return entity.RunInfo{}, err
	}
	return r.toRunInfo(m), nil
}

// Equity returns a run's end-of-day entries in date order.
func (r *ledgerGorm) Equity(ctx context.Context, runID string) ([]entity.EquityEntry, error) {
	var rows []EquityModel
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("date").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.EquityEntry, len(rows))
	for i, m := range rows {
		out[i] = entity.EquityEntry{
			RunID:  m.RunID,
			Date:   r.parseDay(m.Date),
			Cash:   m.Cash,
			Equity: m.Equity,
			Buys:   m.Buys,
			Sells:  m.Sells,
		}
	}
	return out, nil
}

// SymbolDays returns a run's per-symbol entries ordered by date and symbol.
func (r *ledgerGorm) SymbolDays(ctx context.Context, runID string) ([]entity.SymbolDay, error) {
	var rows []SymbolDayModel
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("date, symbol").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.SymbolDay, len(rows))
	for i, m := range rows {
		out[i] = entity.SymbolDay{
			RunID:        m.RunID,
			Date:         r.parseDay(m.Date),
			Symbol:       m.Symbol,
			Shares:       m.Shares,
			LastPrice:    m.LastPrice,
			DailyProfit:  m.DailyProfit,
			WinningSells: m.WinningSells,
			LosingSells:  m.LosingSells,
			Buys:         m.Buys,
			Sells:        m.Sells,
		}
	}
	return out, nil
}

// Trades returns a run's trades in execution order.
func (r *ledgerGorm) Trades(ctx context.Context, runID string) ([]entity.Trade, error) {
	var rows []TradeModel
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.Trade, len(rows))
	for i, m := range rows {
		d := r.parseDay(m.Date)
		at := d
		if clock, err := time.ParseInLocation(priceentity.TimeLayout, m.Time, r.loc); err == nil {
			at = time.Date(d.Year(), d.Month(), d.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, r.loc)
		}
		out[i] = entity.Trade{
			RunID:     m.RunID,
			Date:      d,
			Time:      at,
			Symbol:    m.Symbol,
			Action:    entity.Action(m.Action),
			Shares:    m.Shares,
			Price:     m.Price,
			CashAfter: m.CashAfter,
			Profit:    m.Profit,
		}
	}
	return out, nil
}
