// Package handler provides the HTTP handlers of the simulation feature.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	bandentity "bandtrader/internal/feature/bands/domain/entity"
	priceentity "bandtrader/internal/feature/prices/domain/entity"
	"bandtrader/internal/feature/simulation/domain/entity"
	"bandtrader/internal/feature/simulation/transport/http/dto"
	"bandtrader/internal/feature/simulation/usecase"
	jwtmw "bandtrader/internal/platform/jwt"
)

// SimulationUsecase is what the handlers need from the run registry.
// Following Go convention, the interface is defined by its consumer.
type SimulationUsecase interface {
	Defaults() usecase.Config
	Submit(cfg usecase.Config, req usecase.RunRequest) (string, error)
	Get(ctx context.Context, id string) (usecase.RunView, error)
	Bands(id string) (map[string]bandentity.Band, error)
	Portfolio(id string) (entity.PortfolioSnapshot, error)
	Equity(ctx context.Context, id string) ([]entity.EquityEntry, error)
	Trades(ctx context.Context, id string) ([]entity.Trade, error)
	SymbolDays(ctx context.Context, id string) ([]entity.SymbolDay, error)
}

// SimulationHandler serves the run endpoints.
type SimulationHandler struct {
	uc  SimulationUsecase
	loc *time.Location
}

// NewSimulationHandler creates a SimulationHandler. Request days are parsed in loc.
func NewSimulationHandler(uc SimulationUsecase, loc *time.Location) *SimulationHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &SimulationHandler{uc: uc, loc: loc}
}

// writeError maps usecase errors to status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidRun):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, usecase.ErrRunNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
	default:
		slog.Error("simulation request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}
}

func (h *SimulationHandler) parseDays(req dto.RunRequest) (usecase.RunRequest, error) {
	out := usecase.RunRequest{Symbols: req.Symbols, Interval: req.Interval}
	fields := []struct {
		name string
		in   string
		dst  *time.Time
	}{
		{"seed_start", req.SeedStart, &out.SeedStart},
		{"seed_end", req.SeedEnd, &out.SeedEnd},
		{"sim_start", req.SimStart, &out.SimStart},
		{"sim_end", req.SimEnd, &out.SimEnd},
	}
	for _, f := range fields {
		t, err := time.ParseInLocation(priceentity.DayLayout, f.in, h.loc)
		if err != nil {
			return out, fmt.Errorf("%w: %s must be YYYY-MM-DD", usecase.ErrInvalidRun, f.name)
		}
		*f.dst = t
	}
	return out, nil
}

// SubmitRun starts a simulation in the background.
//
// POST /runs
func (h *SimulationHandler) SubmitRun(c *gin.Context) {
	var req dto.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	run, err := h.parseDays(req)
	if err != nil {
		writeError(c, err)
		return
	}

	cfg := h.uc.Defaults()
	if req.ThresholdPct != nil {
		cfg.ThresholdPct = *req.ThresholdPct
	}
	if req.InitialCash != nil {
		cfg.InitialCash = *req.InitialCash
	}
	if req.MinProfitMargin != nil {
		cfg.MinProfitMargin = *req.MinProfitMargin
	}
	if req.LossTolerance != nil {
		cfg.LossTolerance = *req.LossTolerance
	}

	id, err := h.uc.Submit(cfg, run)
	if err != nil {
		writeError(c, err)
		return
	}
	slog.Info("run requested", "run_id", id, "client", c.GetString(jwtmw.ContextSubject))
	c.Header("Location", "/runs/"+id)
	c.JSON(http.StatusAccepted, dto.SubmitResponse{ID: id, Status: string(entity.RunPending)})
}

// GetRun returns a run's status and report.
//
// GET /runs/:id
func (h *SimulationHandler) GetRun(c *gin.Context) {
	view, err := h.uc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRunResponse(view))
}

// GetBands returns the current band of every symbol in a run.
//
// GET /runs/:id/bands
func (h *SimulationHandler) GetBands(c *gin.Context) {
	bands, err := h.uc.Bands(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bands)
}

// GetPortfolio returns the live portfolio of a run.
//
// GET /runs/:id/portfolio
func (h *SimulationHandler) GetPortfolio(c *gin.Context) {
	snap, err := h.uc.Portfolio(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PortfolioResponse{
		Cash:      snap.Cash.InexactFloat64(),
		Equity:    snap.Equity.InexactFloat64(),
		Positions: dto.NewPositions(snap.Positions),
	})
}

// GetEquity returns the end-of-day ledger of a run.
//
// GET /runs/:id/equity
func (h *SimulationHandler) GetEquity(c *gin.Context) {
	rows, err := h.uc.Equity(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]dto.EquityResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.EquityResponse{
			Date:   r.Date.Format(priceentity.DayLayout),
			Cash:   r.Cash.InexactFloat64(),
			Equity: r.Equity.InexactFloat64(),
			Buys:   r.Buys,
			Sells:  r.Sells,
		})
	}
	c.JSON(http.StatusOK, out)
}

// GetTrades returns the trades of a run.
//
// GET /runs/:id/trades
func (h *SimulationHandler) GetTrades(c *gin.Context) {
	rows, err := h.uc.Trades(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]dto.TradeResponse, 0, len(rows))
	for _, t := range rows {
		out = append(out, dto.TradeResponse{
			Date:      t.Date.Format(priceentity.DayLayout),
			Time:      t.Time.Format(priceentity.TimeLayout),
			Symbol:    t.Symbol,
			Action:    string(t.Action),
			Shares:    t.Shares,
			Price:     t.Price,
			CashAfter: t.CashAfter.InexactFloat64(),
			Profit:    t.Profit.InexactFloat64(),
		})
	}
	c.JSON(http.StatusOK, out)
}

// GetSymbolDays returns the per-symbol end-of-day ledger of a run.
//
// GET /runs/:id/symbols
func (h *SimulationHandler) GetSymbolDays(c *gin.Context) {
	rows, err := h.uc.SymbolDays(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]dto.SymbolDayResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.SymbolDayResponse{
			Date:         r.Date.Format(priceentity.DayLayout),
			Symbol:       r.Symbol,
			Shares:       r.Shares,
			LastPrice:    r.LastPrice,
			DailyProfit:  r.DailyProfit.InexactFloat64(),
			WinningSells: r.WinningSells,
			LosingSells:  r.LosingSells,
			Buys:         r.Buys,
			Sells:        r.Sells,
		})
	}
	c.JSON(http.StatusOK, out)
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(priceentity.DayLayout)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toRunResponse(v usecase.RunView) dto.RunResponse {
	out := dto.RunResponse{
		ID:           v.Info.ID,
		Status:       string(v.Info.Status),
		Symbols:      v.Info.Symbols,
		SeedStart:    formatDay(v.Info.SeedStart),
		SeedEnd:      formatDay(v.Info.SeedEnd),
		SimStart:     formatDay(v.Info.SimStart),
		SimEnd:       formatDay(v.Info.SimEnd),
		Interval:     v.Info.Interval,
		ThresholdPct: v.Info.ThresholdPct,
		InitialCash:  v.Info.InitialCash.InexactFloat64(),
		FinalEquity:  v.Info.FinalEquity.InexactFloat64(),
		ReturnPct:    v.Info.ReturnPct,
		Error:        v.Info.Error,
		StartedAt:    formatTime(v.Info.StartedAt),
		FinishedAt:   formatTime(v.Info.FinishedAt),
	}
	if v.Report != nil {
		out.Report = dto.NewReportResponse(*v.Report)
	}
	return out
}
