package dto

import (
	"bandtrader/internal/feature/simulation/domain/entity"
	"bandtrader/internal/feature/simulation/usecase"
)

// NewPositions converts position snapshots.
func NewPositions(in []entity.PositionSnapshot) []PositionResponse {
	out := make([]PositionResponse, 0, len(in))
	for _, p := range in {
		out = append(out, PositionResponse{
			Symbol:      p.Symbol,
			Shares:      p.Shares,
			CostBasis:   p.CostBasis.InexactFloat64(),
			LastPrice:   p.LastPrice,
			MarketValue: p.MarketValue.InexactFloat64(),
		})
	}
	return out
}

// NewReportResponse converts a run report. Skipped days are listed as ranges.
func NewReportResponse(r usecase.Report) *ReportResponse {
	skipped := make([]string, 0, len(r.Skipped))
	for _, s := range r.Skipped {
		skipped = append(skipped, s.String())
	}
	return &ReportResponse{
		FinalCash:   r.FinalCash.InexactFloat64(),
		FinalEquity: r.FinalEquity.InexactFloat64(),
		ReturnPct:   r.ReturnPct,
		TradedDays:  r.TradedDays,
		SkippedDays: r.SkippedDays,
		Skipped:     skipped,
		Buys:        r.Buys,
		Sells:       r.Sells,
		SeedBands:   r.SeedBands,
		Positions:   NewPositions(r.Positions),
	}
}
