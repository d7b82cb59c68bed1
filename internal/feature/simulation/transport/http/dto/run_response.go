package dto

import bandentity "bandtrader/internal/feature/bands/domain/entity"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SubmitResponse is returned when a run was accepted.
type SubmitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// RunResponse describes a run and, once it succeeded, its report.
type RunResponse struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Symbols      []string        `json:"symbols"`
	SeedStart    string          `json:"seed_start"`
	SeedEnd      string          `json:"seed_end"`
	SimStart     string          `json:"sim_start"`
	SimEnd       string          `json:"sim_end"`
	Interval     string          `json:"interval,omitempty"`
	ThresholdPct float64         `json:"threshold_pct"`
	InitialCash  float64         `json:"initial_cash"`
	FinalEquity  float64         `json:"final_equity"`
	ReturnPct    float64         `json:"return_pct"`
	Error        string          `json:"error,omitempty"`
	StartedAt    string          `json:"started_at,omitempty"`
	FinishedAt   string          `json:"finished_at,omitempty"`
	Report       *ReportResponse `json:"report,omitempty"`
}

// ReportResponse is the summary of a finished run.
type ReportResponse struct {
	FinalCash   float64                    `json:"final_cash"`
	FinalEquity float64                    `json:"final_equity"`
	ReturnPct   float64                    `json:"return_pct"`
	TradedDays  int                        `json:"traded_days"`
	SkippedDays int                        `json:"skipped_days"`
	Skipped     []string                   `json:"skipped"`
	Buys        int                        `json:"buys"`
	Sells       int                        `json:"sells"`
	SeedBands   map[string]bandentity.Band `json:"seed_bands"`
	Positions   []PositionResponse         `json:"positions"`
}

// PositionResponse is one open position.
type PositionResponse struct {
	Symbol      string  `json:"symbol"`
	Shares      int64   `json:"shares"`
	CostBasis   float64 `json:"cost_basis"`
	LastPrice   float64 `json:"last_price"`
	MarketValue float64 `json:"market_value"`
}

// PortfolioResponse is the live portfolio of a run.
type PortfolioResponse struct {
	Cash      float64            `json:"cash"`
	Equity    float64            `json:"equity"`
	Positions []PositionResponse `json:"positions"`
}

// EquityResponse is one end-of-day ledger entry.
type EquityResponse struct {
	Date   string  `json:"date"`
	Cash   float64 `json:"cash"`
	Equity float64 `json:"equity"`
	Buys   int     `json:"buys"`
	Sells  int     `json:"sells"`
}

// TradeResponse is one executed order.
type TradeResponse struct {
	Date      string  `json:"date"`
	Time      string  `json:"time"`
	Symbol    string  `json:"symbol"`
	Action    string  `json:"action"`
	Shares    int64   `json:"shares"`
	Price     float64 `json:"price"`
	CashAfter float64 `json:"cash_after"`
	Profit    float64 `json:"profit,omitempty"`
}

// SymbolDayResponse is the end-of-day state of one symbol.
type SymbolDayResponse struct {
	Date         string  `json:"date"`
	Symbol       string  `json:"symbol"`
	Shares       int64   `json:"shares"`
	LastPrice    float64 `json:"last_price"`
	DailyProfit  float64 `json:"daily_profit"`
	WinningSells int     `json:"winning_sells"`
	LosingSells  int     `json:"losing_sells"`
	Buys         int     `json:"buys"`
	Sells        int     `json:"sells"`
}
