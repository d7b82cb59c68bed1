package handler_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bandentity "bandtrader/internal/feature/bands/domain/entity"
	priceentity "bandtrader/internal/feature/prices/domain/entity"
	"bandtrader/internal/feature/simulation/domain/entity"
	"bandtrader/internal/feature/simulation/transport/handler"
	"bandtrader/internal/feature/simulation/usecase"
)

// mockSimulationUsecase is a mock implementation of SimulationUsecase.
type mockSimulationUsecase struct {
	SubmitFunc    func(cfg usecase.Config, req usecase.RunRequest) (string, error)
	GetFunc       func(ctx context.Context, id string) (usecase.RunView, error)
	BandsFunc     func(id string) (map[string]bandentity.Band, error)
	PortfolioFunc func(id string) (entity.PortfolioSnapshot, error)
	EquityFunc    func(ctx context.Context, id string) ([]entity.EquityEntry, error)
	TradesFunc    func(ctx context.Context, id string) ([]entity.Trade, error)
	SymbolsFunc   func(ctx context.Context, id string) ([]entity.SymbolDay, error)
}

func (m *mockSimulationUsecase) Defaults() usecase.Config {
	return usecase.Config{Window: 14, NumStdDev: 2, InitialCash: 10000}
}

func (m *mockSimulationUsecase) Submit(cfg usecase.Config, req usecase.RunRequest) (string, error) {
	return m.SubmitFunc(cfg, req)
}

func (m *mockSimulationUsecase) Get(ctx context.Context, id string) (usecase.RunView, error) {
	return m.GetFunc(ctx, id)
}

func (m *mockSimulationUsecase) Bands(id string) (map[string]bandentity.Band, error) {
	return m.BandsFunc(id)
}

func (m *mockSimulationUsecase) Portfolio(id string) (entity.PortfolioSnapshot, error) {
	return m.PortfolioFunc(id)
}

func (m *mockSimulationUsecase) Equity(ctx context.Context, id string) ([]entity.EquityEntry, error) {
	return m.EquityFunc(ctx, id)
}

func (m *mockSimulationUsecase) Trades(ctx context.Context, id string) ([]entity.Trade, error) {
	return m.TradesFunc(ctx, id)
}

func (m *mockSimulationUsecase) SymbolDays(ctx context.Context, id string) ([]entity.SymbolDay, error) {
	return m.SymbolsFunc(ctx, id)
}

func newRouter(uc handler.SimulationUsecase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handler.NewSimulationHandler(uc, time.UTC)
	r := gin.New()
	r.POST("/runs", h.SubmitRun)
	r.GET("/runs/:id", h.GetRun)
	r.GET("/runs/:id/bands", h.GetBands)
	r.GET("/runs/:id/portfolio", h.GetPortfolio)
	r.GET("/runs/:id/equity", h.GetEquity)
	r.GET("/runs/:id/trades", h.GetTrades)
	r.GET("/runs/:id/symbols", h.GetSymbolDays)
	return r
}

func TestSimulationHandler_SubmitRun(t *testing.T) {
	validBody := `{"symbols":["AAPL","MSFT"],"seed_start":"2024-01-02","seed_end":"2024-01-31","sim_start":"2024-02-01","sim_end":"2024-02-29","threshold_pct":1.5}`

	tests := []struct {
		name           string
		body           string
		submit         func(cfg usecase.Config, req usecase.RunRequest) (string, error)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "success: accepted with overrides",
			body: validBody,
			submit: func(cfg usecase.Config, req usecase.RunRequest) (string, error) {
				assert.Equal(t, 1.5, cfg.ThresholdPct)
				assert.Equal(t, 10000.0, cfg.InitialCash)
				assert.Equal(t, []string{"AAPL", "MSFT"}, req.Symbols)
				assert.Equal(t, "2024-02-01", req.SimStart.Format(priceentity.DayLayout))
				return "run-1", nil
			},
			expectedStatus: http.StatusAccepted,
			expectedBody:   `{"id":"run-1","status":"pending"}`,
		},
		{
			name:           "error: missing fields",
			body:           `{"symbols":["AAPL"]}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "error: malformed day",
			body:           `{"symbols":["AAPL"],"seed_start":"2024/01/02","seed_end":"2024-01-31","sim_start":"2024-02-01","sim_end":"2024-02-29"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid run request: seed_start must be YYYY-MM-DD"}`,
		},
		{
			name:           "error: negative cash",
			body:           `{"symbols":["AAPL"],"seed_start":"2024-01-02","seed_end":"2024-01-31","sim_start":"2024-02-01","sim_end":"2024-02-29","initial_cash":-5}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "error: rejected by usecase",
			body: validBody,
			submit: func(cfg usecase.Config, req usecase.RunRequest) (string, error) {
				return "", usecase.ErrInvalidRun
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid run request"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &mockSimulationUsecase{SubmitFunc: tt.submit}
			if uc.SubmitFunc == nil {
				uc.SubmitFunc = func(cfg usecase.Config, req usecase.RunRequest) (string, error) {
					t.Fatal("Submit must not be called")
					return "", nil
				}
			}
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/runs", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			newRouter(uc).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
		})
	}
}

func TestSimulationHandler_GetRun(t *testing.T) {
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	uc := &mockSimulationUsecase{
		GetFunc: func(ctx context.Context, id string) (usecase.RunView, error) {
			if id != "run-1" {
				return usecase.RunView{}, usecase.ErrRunNotFound
			}
			return usecase.RunView{
				Info: entity.RunInfo{
					ID:          "run-1",
					Symbols:     []string{"AAPL"},
					SimStart:    day,
					SimEnd:      day.AddDate(0, 0, 7),
					InitialCash: decimal.NewFromInt(1000),
					FinalEquity: decimal.NewFromInt(1100),
					ReturnPct:   10,
					Status:      entity.RunSucceeded,
				},
				Report: &usecase.Report{
					FinalCash:   decimal.NewFromInt(1100),
					FinalEquity: decimal.NewFromInt(1100),
					ReturnPct:   10,
					TradedDays:  5,
					SkippedDays: 1,
					Skipped:     []priceentity.DayRange{{From: day.AddDate(0, 0, 1), To: day.AddDate(0, 0, 1)}},
				},
			}, nil
		},
	}
	router := newRouter(uc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/run-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"status":"succeeded"`)
	assert.Contains(t, body, `"sim_end":"2024-02-08"`)
	assert.Contains(t, body, `"skipped":["2024-02-02"]`)
	assert.Contains(t, body, `"final_equity":1100`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/other", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"run not found"}`, w.Body.String())
}

func TestSimulationHandler_LiveHooks(t *testing.T) {
	uc := &mockSimulationUsecase{
		BandsFunc: func(id string) (map[string]bandentity.Band, error) {
			return map[string]bandentity.Band{"AAPL": {Lower: 90, Mean: 100, Upper: 110, Ready: true}}, nil
		},
		PortfolioFunc: func(id string) (entity.PortfolioSnapshot, error) {
			return entity.PortfolioSnapshot{
				Cash:   decimal.NewFromInt(20),
				Equity: decimal.NewFromInt(1000),
				Positions: []entity.PositionSnapshot{
					{Symbol: "AAPL", Shares: 14, CostBasis: decimal.NewFromInt(980), LastPrice: 70, MarketValue: decimal.NewFromInt(980)},
				},
			}, nil
		},
	}
	router := newRouter(uc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/run-1/bands", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"AAPL":{"lower":90,"mean":100,"upper":110,"ready":true}}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/run-1/portfolio", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"cash":20,"equity":1000,"positions":[{"symbol":"AAPL","shares":14,"cost_basis":980,"last_price":70,"market_value":980}]}`, w.Body.String())
}

func TestSimulationHandler_Ledger(t *testing.T) {
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	uc := &mockSimulationUsecase{
		EquityFunc: func(ctx context.Context, id string) ([]entity.EquityEntry, error) {
			return []entity.EquityEntry{{Date: day, Cash: decimal.NewFromInt(20), Equity: decimal.NewFromInt(1000), Buys: 1}}, nil
		},
		TradesFunc: func(ctx context.Context, id string) ([]entity.Trade, error) {
			if id == "broken" {
				return nil, errors.New("database is locked")
			}
			return []entity.Trade{{
				Date: day, Time: day.Add(10 * time.Hour), Symbol: "AAPL", Action: entity.ActionBuy,
				Shares: 14, Price: 70, CashAfter: decimal.NewFromInt(20), Profit: decimal.Zero,
			}}, nil
		},
	}
	router := newRouter(uc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/run-1/equity", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"date":"2024-02-01","cash":20,"equity":1000,"buys":1,"sells":0}]`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/run-1/trades", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"date":"2024-02-01","time":"10:00:00","symbol":"AAPL","action":"BUY","shares":14,"price":70,"cash_after":20}]`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/broken/trades", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

func TestSimulationHandler_GetSymbolDays(t *testing.T) {
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		symbols        func(ctx context.Context, id string) ([]entity.SymbolDay, error)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "success: per-symbol rows",
			symbols: func(ctx context.Context, id string) ([]entity.SymbolDay, error) {
				assert.Equal(t, "run-1", id)
				return []entity.SymbolDay{{
					RunID: id, Date: day, Symbol: "AAPL", Shares: 14, LastPrice: 71.5,
					DailyProfit: decimal.RequireFromString("12.25"), WinningSells: 1, Buys: 2, Sells: 1,
				}}, nil
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `[{"date":"2024-02-01","symbol":"AAPL","shares":14,"last_price":71.5,"daily_profit":12.25,"winning_sells":1,"losing_sells":0,"buys":2,"sells":1}]`,
		},
		{
			name: "success: no rows yet",
			symbols: func(ctx context.Context, id string) ([]entity.SymbolDay, error) {
				return nil, nil
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `[]`,
		},
		{
			name: "error: unknown run",
			symbols: func(ctx context.Context, id string) ([]entity.SymbolDay, error) {
				return nil, usecase.ErrRunNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "error: ledger failure",
			symbols: func(ctx context.Context, id string) ([]entity.SymbolDay, error) {
				return nil, errors.New("database is locked")
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(&mockSimulationUsecase{SymbolsFunc: tt.symbols})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/run-1/symbols", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
		})
	}
}
