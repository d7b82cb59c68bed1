package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	bandentity "bandtrader/internal/feature/bands/domain/entity"
	bandusecase "bandtrader/internal/feature/bands/usecase"
	priceentity "bandtrader/internal/feature/prices/domain/entity"
	"bandtrader/internal/feature/simulation/domain/entity"
)

// SeriesReader is the query side of the Series Store the engine replays.
type SeriesReader interface {
	Query(ctx context.Context, symbol string, day time.Time) ([]priceentity.Observation, error)
	QueryRange(ctx context.Context, symbol string, from, to time.Time) ([]priceentity.Observation, error)
	MinMaxDays(ctx context.Context, symbol string) (first, last time.Time, ok bool, err error)
}

// SeriesSource resolves the stored series of a symbol.
type SeriesSource interface {
	Reader(ctx context.Context, symbol string) (SeriesReader, error)
}

// LedgerSink persists run metadata and per-day ledger entries.
type LedgerSink interface {
	BeginRun(ctx context.Context, run entity.RunInfo) error
	AppendDay(ctx context.Context, day entity.DayLedger) error
	FinishRun(ctx context.Context, run entity.RunInfo) error
}

// Calendar answers which days the exchange is open.
type Calendar interface {
	Day(t time.Time) time.Time
	IsTradingDay(t time.Time) bool
}

// RunRequest selects the symbols and periods of a simulation.
type RunRequest struct {
	ID        string
	Symbols   []string
	Interval  string
	SeedStart time.Time
	SeedEnd   time.Time
	SimStart  time.Time
	SimEnd    time.Time
}

// Report summarizes a finished run. It is filled even when some days were skipped.
type Report struct {
	RunID       string
	Symbols     []string
	InitialCash decimal.Decimal
	FinalCash   decimal.Decimal
	FinalEquity decimal.Decimal
	ReturnPct   float64
	TradedDays  int
	SkippedDays int
	Skipped     []priceentity.DayRange
	Buys        int
	Sells       int
	SeedBands   map[string]bandentity.Band
	Positions   []entity.PositionSnapshot
}

// Engine replays stored rows of several symbols against their bands and one
// shared cash pool. An Engine runs once; Bands and Portfolio may be read from
// other goroutines while it runs.
type Engine struct {
	cfg      Config
	calendar Calendar
	ledger   LedgerSink
	tracker  *bandusecase.Tracker
	now      func() time.Time

	mu         sync.RWMutex
	portfolio  *entity.Portfolio
	lastPrices map[string]float64
}

// NewEngine creates an Engine holding cfg.InitialCash and no positions.
func NewEngine(cfg Config, calendar Calendar, ledger LedgerSink) *Engine {
	tracker := bandusecase.NewTracker(cfg.Window, cfg.NumStdDev)
	cfg.Window = tracker.Window()
	return &Engine{
		cfg:        cfg,
		calendar:   calendar,
		ledger:     ledger,
		tracker:    tracker,
		now:        time.Now,
		portfolio:  entity.NewPortfolio(decimal.NewFromFloat(cfg.InitialCash)),
		lastPrices: make(map[string]float64),
	}
}

// Bands returns the current band of every tracked symbol.
func (e *Engine) Bands() map[string]bandentity.Band {
	return e.tracker.Snapshot()
}

// Portfolio returns a snapshot valued at the last seen prices.
func (e *Engine) Portfolio() entity.PortfolioSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.portfolio.Snapshot(e.lastPrices)
}

func normalizeSymbols(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Validate normalizes the symbols of req and checks its periods. The seed
// period must end before the simulation starts.
func (req *RunRequest) Validate(cal Calendar) error {
	req.Symbols = normalizeSymbols(req.Symbols)
	if len(req.Symbols) == 0 {
		return fmt.Errorf("%w: no symbols", ErrInvalidRun)
	}
	req.SeedStart, req.SeedEnd = cal.Day(req.SeedStart), cal.Day(req.SeedEnd)
	req.SimStart, req.SimEnd = cal.Day(req.SimStart), cal.Day(req.SimEnd)
	switch {
	case req.SeedEnd.Before(req.SeedStart):
		return fmt.Errorf("%w: seed period ends before it starts", ErrInvalidRun)
	case req.SimEnd.Before(req.SimStart):
		return fmt.Errorf("%w: simulation period ends before it starts", ErrInvalidRun)
	case !req.SeedEnd.Before(req.SimStart):
		return fmt.Errorf("%w: seed period must end before the simulation starts", ErrInvalidRun)
	}
	return nil
}

// Run seeds the bands, replays every trading day in [SimStart, SimEnd] and
// appends one ledger entry per simulated day. Missing seed history fails the
// run before anything is written; a day that cannot be loaded or has no rows
// is skipped.
func (e *Engine) Run(ctx context.Context, req RunRequest, source SeriesSource) (Report, error) {
	if err := req.Validate(e.calendar); err != nil {
		return Report{}, err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	readers := make(map[string]SeriesReader, len(req.Symbols))
	for _, s := range req.Symbols {
		r, err := source.Reader(ctx, s)
		if err != nil {
			return Report{}, fmt.Errorf("open series for %s: %w", s, err)
		}
		readers[s] = r
	}

	seedBands, err := e.seed(ctx, readers, req)
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		RunID:       req.ID,
		Symbols:     req.Symbols,
		InitialCash: e.portfolio.Cash(),
		SeedBands:   seedBands,
	}
	info := entity.RunInfo{
		ID:           req.ID,
		Symbols:      req.Symbols,
		SeedStart:    req.SeedStart,
		SeedEnd:      req.SeedEnd,
		SimStart:     req.SimStart,
		SimEnd:       req.SimEnd,
		Interval:     req.Interval,
		ThresholdPct: e.cfg.ThresholdPct,
		InitialCash:  rep.InitialCash,
		Status:       entity.RunRunning,
		StartedAt:    e.now(),
	}
	if err := e.ledger.BeginRun(ctx, info); err != nil {
		return rep, fmt.Errorf("begin run %s: %w", req.ID, err)
	}

	var skipped []time.Time
	for day := req.SimStart; !day.After(req.SimEnd); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return e.fail(ctx, info, rep, err)
		}
		if !e.calendar.IsTradingDay(day) {
			continue
		}
		rows, err := e.loadDay(ctx, readers, req.Symbols, day)
		if err != nil {
			if ctx.Err() != nil {
				return e.fail(ctx, info, rep, ctx.Err())
			}
			slog.Warn("skipping day: retrieval failed", "run_id", req.ID, "day", day.Format(priceentity.DayLayout), "error", err)
			skipped = append(skipped, day)
			continue
		}
		if len(rows) == 0 {
			slog.Info("skipping day: no rows", "run_id", req.ID, "day", day.Format(priceentity.DayLayout))
			skipped = append(skipped, day)
			continue
		}

		entry := e.simulateDay(req.ID, day, req.Symbols, rows)
		if err := e.ledger.AppendDay(ctx, entry); err != nil {
			return e.fail(ctx, info, rep, fmt.Errorf("append ledger for %s: %w", day.Format(priceentity.DayLayout), err))
		}
		rep.TradedDays++
		rep.Buys += entry.Equity.Buys
		rep.Sells += entry.Equity.Sells
	}

	rep.SkippedDays = len(skipped)
	rep.Skipped = priceentity.ConsolidateDays(skipped, func(d time.Time) bool { return !e.calendar.IsTradingDay(d) })
	e.finish(&rep)

	info.Status = entity.RunSucceeded
	info.FinalEquity = rep.FinalEquity
	info.ReturnPct = rep.ReturnPct
	info.FinishedAt = e.now()
	if err := e.ledger.FinishRun(ctx, info); err != nil {
		return rep, fmt.Errorf("finish run %s: %w", req.ID, err)
	}

	slog.Info("simulation finished",
		"run_id", rep.RunID,
		"traded_days", rep.TradedDays,
		"skipped_days", rep.SkippedDays,
		"buys", rep.Buys,
		"sells", rep.Sells,
		"final_equity", rep.FinalEquity.StringFixed(2),
		"return_pct", rep.ReturnPct,
	)
	return rep, nil
}

func (e *Engine) finish(rep *Report) {
	snap := e.Portfolio()
	rep.FinalCash = snap.Cash
	rep.FinalEquity = snap.Equity
	rep.Positions = snap.Positions
	if rep.InitialCash.IsPositive() {
		rep.ReturnPct = snap.Equity.Sub(rep.InitialCash).Div(rep.InitialCash).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
}

// fail records a failed run. The ledger write outlives a cancelled ctx.
func (e *Engine) fail(ctx context.Context, info entity.RunInfo, rep Report, cause error) (Report, error) {
	e.finish(&rep)
	info.Status = entity.RunFailed
	info.Error = cause.Error()
	info.FinalEquity = rep.FinalEquity
	info.ReturnPct = rep.ReturnPct
	info.FinishedAt = e.now()
	if err := e.ledger.FinishRun(context.WithoutCancel(ctx), info); err != nil {
		return rep, errors.Join(cause, fmt.Errorf("finish run %s: %w", info.ID, err))
	}
	return rep, cause
}

func (e *Engine) seed(ctx context.Context, readers map[string]SeriesReader, req RunRequest) (map[string]bandentity.Band, error) {
	bands := make(map[string]bandentity.Band, len(req.Symbols))
	var short []string
	for _, s := range req.Symbols {
		prices, err := e.seedPrices(ctx, readers[s], s, req.SeedStart, req.SeedEnd)
		if err != nil {
			return nil, fmt.Errorf("load seed history for %s: %w", s, err)
		}
		if len(prices) < e.cfg.Window {
			short = append(short, fmt.Sprintf("%s has %d of %d prices", s, len(prices), e.cfg.Window))
			continue
		}
		b := e.tracker.Seed(s, prices)
		bands[s] = b
		e.mu.Lock()
		e.lastPrices[s] = prices[len(prices)-1]
		e.mu.Unlock()
		slog.Info("seeded bands", "symbol", s, "prices", len(prices), "lower", b.Lower, "mean", b.Mean, "upper", b.Upper)
	}
	if len(short) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInsufficientSeedHistory, strings.Join(short, "; "))
	}
	return bands, nil
}

// seedPrices loads the prices of [from, to] clamped to the stored days.
func (e *Engine) seedPrices(ctx context.Context, r SeriesReader, symbol string, from, to time.Time) ([]float64, error) {
	first, last, ok, err := r.MinMaxDays(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if first = e.calendar.Day(first); first.After(from) {
		from = first
	}
	if last = e.calendar.Day(last); last.Before(to) {
		to = last
	}
	if to.Before(from) {
		return nil, nil
	}
	rows, err := r.QueryRange(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	prices := make([]float64, len(rows))
	for i, o := range rows {
		prices[i] = o.Price
	}
	return prices, nil
}

// loadDay fetches the rows of every symbol for day in parallel and merges them
// in time order, ties broken by symbol.
func (e *Engine) loadDay(ctx context.Context, readers map[string]SeriesReader, symbols []string, day time.Time) ([]priceentity.Observation, error) {
	per := make([][]priceentity.Observation, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range symbols {
		g.Go(func() error {
			rows, err := readers[s].Query(gctx, s, day)
			if err != nil {
				return fmt.Errorf("query %s: %w", s, err)
			}
			per[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows []priceentity.Observation
	for _, r := range per {
		rows = append(rows, r...)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Time.Equal(rows[j].Time) {
			return rows[i].Time.Before(rows[j].Time)
		}
		return rows[i].Symbol < rows[j].Symbol
	})
	return rows, nil
}

// groupTicks splits time-ordered rows into minute ticks. A second row for a
// symbol within the same minute opens a new tick.
func groupTicks(rows []priceentity.Observation) [][]priceentity.Observation {
	var (
		ticks  [][]priceentity.Observation
		cur    []priceentity.Observation
		minute time.Time
		seen   = make(map[string]struct{})
	)
	for _, r := range rows {
		m := r.Time.Truncate(time.Minute)
		_, dup := seen[r.Symbol]
		if len(cur) > 0 && (!m.Equal(minute) || dup) {
			ticks = append(ticks, cur)
			cur = nil
			clear(seen)
		}
		if len(cur) == 0 {
			minute = m
		}
		cur = append(cur, r)
		seen[r.Symbol] = struct{}{}
	}
	if len(cur) > 0 {
		ticks = append(ticks, cur)
	}
	return ticks
}

// dayState collects the ledger entries of the day being simulated.
type dayState struct {
	entry   entity.DayLedger
	symbols map[string]*entity.SymbolDay
}

func newDayState(runID string, day time.Time, symbols []string) *dayState {
	st := &dayState{
		entry:   entity.DayLedger{Equity: entity.EquityEntry{RunID: runID, Date: day}},
		symbols: make(map[string]*entity.SymbolDay, len(symbols)),
	}
	for _, s := range symbols {
		st.symbols[s] = &entity.SymbolDay{RunID: runID, Date: day, Symbol: s, DailyProfit: decimal.Zero}
	}
	return st
}

func (st *dayState) record(t entity.Trade) {
	sd := st.symbols[t.Symbol]
	switch t.Action {
	case entity.ActionBuy:
		st.entry.Equity.Buys++
		sd.Buys++
	case entity.ActionSell:
		st.entry.Equity.Sells++
		sd.Sells++
		sd.DailyProfit = sd.DailyProfit.Add(t.Profit)
		if t.Profit.IsNegative() {
			sd.LosingSells++
		} else {
			sd.WinningSells++
		}
	}
	st.entry.Trades = append(st.entry.Trades, t)
	slog.Debug("trade",
		"run_id", t.RunID,
		"symbol", t.Symbol,
		"action", string(t.Action),
		"shares", t.Shares,
		"price", t.Price,
		"time", t.Time.Format(priceentity.TimeLayout),
		"cash_after", t.CashAfter.StringFixed(2),
	)
}

func (e *Engine) simulateDay(runID string, day time.Time, symbols []string, rows []priceentity.Observation) entity.DayLedger {
	st := newDayState(runID, day, symbols)
	for _, tick := range groupTicks(rows) {
		e.processTick(st, tick)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, s := range symbols {
		sd := st.symbols[s]
		sd.Shares = e.portfolio.Position(s).Shares
		sd.LastPrice = e.lastPrices[s]
		st.entry.Symbols = append(st.entry.Symbols, *sd)
	}
	st.entry.Equity.Cash = e.portfolio.Cash()
	st.entry.Equity.Equity = e.portfolio.Equity(e.lastPrices)
	return st.entry
}

// processTick evaluates every sell of the tick, then at most one buy, and only
// then feeds the tick's prices into the bands. Buys are sized against the cash
// held before the sells.
func (e *Engine) processTick(st *dayState, tick []priceentity.Observation) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tick = append([]priceentity.Observation(nil), tick...)
	sort.SliceStable(tick, func(i, j int) bool { return tick[i].Symbol < tick[j].Symbol })
	budget := e.portfolio.Cash()
	runID := st.entry.Equity.RunID

	sold := make(map[string]struct{})
	for _, o := range tick {
		if !e.cfg.SellTriggered(o.Price, e.tracker.Current(o.Symbol)) {
			continue
		}
		px := decimal.NewFromFloat(o.Price)
		quote, err := e.portfolio.QuoteSale(o.Symbol, px)
		if err != nil {
			continue
		}
		if !e.cfg.SellAccepted(quote.Proceeds.InexactFloat64(), quote.Cost.InexactFloat64()) {
			slog.Debug("holding position", "symbol", o.Symbol, "price", o.Price, "profit", quote.Profit().StringFixed(2))
			continue
		}
		sale, err := e.portfolio.SellAll(o.Symbol, px)
		if err != nil {
			slog.Error("sell failed", "symbol", o.Symbol, "error", err)
			continue
		}
		sold[o.Symbol] = struct{}{}
		st.record(entity.Trade{
			RunID:     runID,
			Date:      st.entry.Equity.Date,
			Time:      o.Time,
			Symbol:    o.Symbol,
			Action:    entity.ActionSell,
			Shares:    sale.Shares,
			Price:     o.Price,
			CashAfter: e.portfolio.Cash(),
			Profit:    sale.Profit(),
		})
	}

	var (
		best   *priceentity.Observation
		shares int64
	)
	for i := range tick {
		o := &tick[i]
		if _, ok := sold[o.Symbol]; ok {
			continue
		}
		b := e.tracker.Current(o.Symbol)
		if !e.cfg.BuyTriggered(o.Price, b) {
			continue
		}
		n := e.cfg.SharesToBuy(o.Price, b, budget.InexactFloat64())
		if n == 0 {
			continue
		}
		if best == nil || o.Price < best.Price {
			best, shares = o, n
		}
	}
	if best != nil {
		px := decimal.NewFromFloat(best.Price)
		for shares > 0 && px.Mul(decimal.NewFromInt(shares)).GreaterThan(budget) {
			shares--
		}
		if shares > 0 {
			if err := e.portfolio.Buy(best.Symbol, shares, px); err != nil {
				slog.Error("buy failed", "symbol", best.Symbol, "error", err)
			} else {
				st.record(entity.Trade{
					RunID:     runID,
					Date:      st.entry.Equity.Date,
					Time:      best.Time,
					Symbol:    best.Symbol,
					Action:    entity.ActionBuy,
					Shares:    shares,
					Price:     best.Price,
					CashAfter: e.portfolio.Cash(),
					Profit:    decimal.Zero,
				})
			}
		}
	}

	for _, o := range tick {
		e.lastPrices[o.Symbol] = o.Price
		e.tracker.Observe(o.Symbol, o.Price)
	}
}
