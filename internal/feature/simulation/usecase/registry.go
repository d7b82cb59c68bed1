package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	bandentity "bandtrader/internal/feature/bands/domain/entity"
	"bandtrader/internal/feature/simulation/domain/entity"
)

// LedgerReader is the query side of the ledger.
// Implementations return ErrRunNotFound for unknown run ids.
type LedgerReader interface {
	Run(ctx context.Context, id string) (entity.RunInfo, error)
	Equity(ctx context.Context, runID string) ([]entity.EquityEntry, error)
	Trades(ctx context.Context, runID string) ([]entity.Trade, error)
	SymbolDays(ctx context.Context, runID string) ([]entity.SymbolDay, error)
}

// Ledger is a ledger that can be written and queried.
type Ledger interface {
	LedgerSink
	LedgerReader
}

// RunView is the state of a submitted run.
type RunView struct {
	Info   entity.RunInfo
	Report *Report
}

type runState struct {
	info   entity.RunInfo
	report *Report
	engine *Engine
}

// RunRegistry starts simulations in the background and keeps their engines
// reachable for the lifetime of the process. Runs from earlier processes are
// answered from the ledger.
type RunRegistry struct {
	ctx      context.Context
	defaults Config
	calendar Calendar
	ledger   Ledger
	source   SeriesSource
	now      func() time.Time

	mu   sync.RWMutex
	runs map[string]*runState
	wg   sync.WaitGroup
}

// NewRunRegistry creates a RunRegistry. Runs are cancelled when ctx ends.
func NewRunRegistry(ctx context.Context, defaults Config, calendar Calendar, ledger Ledger, source SeriesSource) *RunRegistry {
	return &RunRegistry{
		ctx:      ctx,
		defaults: defaults,
		calendar: calendar,
		ledger:   ledger,
		source:   source,
		now:      time.Now,
		runs:     make(map[string]*runState),
	}
}

// Defaults returns the strategy parameters runs start from.
func (r *RunRegistry) Defaults() Config {
	return r.defaults
}

// Submit validates req and starts it in the background with cfg.
func (r *RunRegistry) Submit(cfg Config, req RunRequest) (string, error) {
	if err := req.Validate(r.calendar); err != nil {
		return "", err
	}
	req.ID = uuid.NewString()

	eng := NewEngine(cfg, r.calendar, r.ledger)
	st := &runState{
		engine: eng,
		info: entity.RunInfo{
			ID:           req.ID,
			Symbols:      req.Symbols,
			SeedStart:    req.SeedStart,
			SeedEnd:      req.SeedEnd,
			SimStart:     req.SimStart,
			SimEnd:       req.SimEnd,
			Interval:     req.Interval,
			ThresholdPct: cfg.ThresholdPct,
			InitialCash:  eng.Portfolio().Cash,
			Status:       entity.RunPending,
			StartedAt:    r.now(),
		},
	}
	r.mu.Lock()
	r.runs[req.ID] = st
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.setStatus(req.ID, entity.RunRunning)
		rep, err := eng.Run(r.ctx, req, r.source)

		r.mu.Lock()
		defer r.mu.Unlock()
		st.info.FinishedAt = r.now()
		st.info.FinalEquity = rep.FinalEquity
		st.info.ReturnPct = rep.ReturnPct
		if err != nil {
			st.info.Status = entity.RunFailed
			st.info.Error = err.Error()
			slog.Error("simulation failed", "run_id", req.ID, "error", err)
			return
		}
		st.info.Status = entity.RunSucceeded
		st.report = &rep
	}()

	slog.Info("simulation submitted", "run_id", req.ID, "symbols", req.Symbols)
	return req.ID, nil
}

func (r *RunRegistry) setStatus(id string, status entity.RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.runs[id]; ok {
		st.info.Status = status
	}
}

// Wait blocks until every submitted run has returned.
func (r *RunRegistry) Wait() {
	r.wg.Wait()
}

func (r *RunRegistry) state(id string) (*runState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.runs[id]
	return st, ok
}

// Get returns the status of a run and, once it succeeded, its report.
func (r *RunRegistry) Get(ctx context.Context, id string) (RunView, error) {
	if st, ok := r.state(id); ok {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return RunView{Info: st.info, Report: st.report}, nil
	}
	info, err := r.ledger.Run(ctx, id)
	if err != nil {
		return RunView{}, err
	}
	return RunView{Info: info}, nil
}

// Bands returns the current bands of a run started by this process.
func (r *RunRegistry) Bands(id string) (map[string]bandentity.Band, error) {
	st, ok := r.state(id)
	if !ok {
		return nil, ErrRunNotFound
	}
	return st.engine.Bands(), nil
}

// Portfolio returns the portfolio of a run started by this process.
func (r *RunRegistry) Portfolio(id string) (entity.PortfolioSnapshot, error) {
	st, ok := r.state(id)
	if !ok {
		return entity.PortfolioSnapshot{}, ErrRunNotFound
	}
	return st.engine.Portfolio(), nil
}

// Equity returns the end-of-day entries written so far for a run.
func (r *RunRegistry) Equity(ctx context.Context, id string) ([]entity.EquityEntry, error) {
	if err := r.exists(ctx, id); err != nil {
		return nil, err
	}
	return r.ledger.Equity(ctx, id)
}

// Trades returns the trades written so far for a run.
func (r *RunRegistry) Trades(ctx context.Context, id string) ([]entity.Trade, error) {
	if err := r.exists(ctx, id); err != nil {
		return nil, err
	}
	return r.ledger.Trades(ctx, id)
}

// SymbolDays returns the per-symbol end-of-day entries written so far for a run.
func (r *RunRegistry) SymbolDays(ctx context.Context, id string) ([]entity.SymbolDay, error) {
	if err := r.exists(ctx, id); err != nil {
		return nil, err
	}
	return r.ledger.SymbolDays(ctx, id)
}

// exists accepts runs known to this process, even before their first ledger write.
func (r *RunRegistry) exists(ctx context.Context, id string) error {
	if _, ok := r.state(id); ok {
		return nil
	}
	if _, err := r.ledger.Run(ctx, id); err != nil {
		if errors.Is(err, ErrRunNotFound) {
			return ErrRunNotFound
		}
		return err
	}
	return nil
}
