package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is the side of a trade.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Trade is one executed order.
type Trade struct {
	RunID     string
	Date      time.Time
	Time      time.Time
	Symbol    string
	Action    Action
	Shares    int64
	Price     float64
	CashAfter decimal.Decimal
	Profit    decimal.Decimal // realized profit, sells only
}

// EquityEntry is the end-of-day state of a run.
type EquityEntry struct {
	RunID  string
	Date   time.Time
	Cash   decimal.Decimal
	Equity decimal.Decimal
	Buys   int
	Sells  int
}

// SymbolDay is the end-of-day state of one symbol in a run.
type SymbolDay struct {
	RunID        string
	Date         time.Time
	Symbol       string
	Shares       int64
	LastPrice    float64
	DailyProfit  decimal.Decimal
	WinningSells int
	LosingSells  int
	Buys         int
	Sells        int
}

// DayLedger is everything appended to the ledger for one simulated day.
type DayLedger struct {
	Equity  EquityEntry
	Symbols []SymbolDay
	Trades  []Trade
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunInfo describes a simulation run as recorded in the ledger.
type RunInfo struct {
	ID           string
	Symbols      []string
	SeedStart    time.Time
	SeedEnd      time.Time
	SimStart     time.Time
	SimEnd       time.Time
	Interval     string
	ThresholdPct float64
	InitialCash  decimal.Decimal
	Status       RunStatus
	FinalEquity  decimal.Decimal
	ReturnPct    float64
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
}
