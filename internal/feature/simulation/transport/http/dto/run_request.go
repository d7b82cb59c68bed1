// Package dto holds the request and response bodies of the simulation API.
package dto

// RunRequest starts a simulation. Days are YYYY-MM-DD in exchange time; unset
// strategy fields fall back to the server defaults.
type RunRequest struct {
	Symbols         []string `json:"symbols" binding:"required,min=1,dive,required"`
	SeedStart       string   `json:"seed_start" binding:"required"`
	SeedEnd         string   `json:"seed_end" binding:"required"`
	SimStart        string   `json:"sim_start" binding:"required"`
	SimEnd          string   `json:"sim_end" binding:"required"`
	Interval        string   `json:"interval"`
	ThresholdPct    *float64 `json:"threshold_pct" binding:"omitempty,gte=0,lt=100"`
	InitialCash     *float64 `json:"initial_cash" binding:"omitempty,gt=0"`
	MinProfitMargin *float64 `json:"min_profit_margin" binding:"omitempty,gte=0"`
	LossTolerance   *float64 `json:"loss_tolerance" binding:"omitempty,gte=0,lte=1"`
}
