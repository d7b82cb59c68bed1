// Package entity defines the domain models for the simulation feature.
package entity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientCash is returned when a buy costs more than the cash held.
	ErrInsufficientCash = errors.New("insufficient cash")
	// ErrNoPosition is returned when selling a symbol with no shares held.
	ErrNoPosition = errors.New("no position")
	// ErrInvalidQuantity is returned for non-positive share counts or prices.
	ErrInvalidQuantity = errors.New("invalid quantity")
)

// Lot is one purchase still held.
type Lot struct {
	Price  decimal.Decimal
	Shares int64
}

// Position is the holding in one symbol. Lots is empty exactly when Shares is 0.
type Position struct {
	Shares int64
	Lots   []Lot
}

// Cost returns the cost basis of the position.
func (p Position) Cost() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Lots {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(l.Shares)))
	}
	return total
}

// Portfolio holds the cash pool shared by every symbol and the open positions.
// Cash never goes negative. Portfolio is not safe for concurrent use.
type Portfolio struct {
	cash      decimal.Decimal
	positions map[string]*Position
}

// NewPortfolio creates a portfolio holding cash and no positions.
func NewPortfolio(cash decimal.Decimal) *Portfolio {
	return &Portfolio{cash: cash, positions: make(map[string]*Position)}
}

// Cash returns the uninvested cash.
func (p *Portfolio) Cash() decimal.Decimal {
	return p.cash
}

// Position returns a copy of the holding in symbol.
func (p *Portfolio) Position(symbol string) Position {
	pos, ok := p.positions[symbol]
	if !ok {
		return Position{}
	}
	return Position{Shares: pos.Shares, Lots: append([]Lot(nil), pos.Lots...)}
}

// Buy adds shares of symbol at price, paying from cash.
func (p *Portfolio) Buy(symbol string, shares int64, price decimal.Decimal) error {
	if shares <= 0 || !price.IsPositive() {
		return fmt.Errorf("%w: %d shares at %s", ErrInvalidQuantity, shares, price)
	}
	cost := price.Mul(decimal.NewFromInt(shares))
	if cost.GreaterThan(p.cash) {
		return fmt.Errorf("%w: %s needed, %s held", ErrInsufficientCash, cost.StringFixed(2), p.cash.StringFixed(2))
	}
	pos, ok := p.positions[symbol]
	if !ok {
		pos = &Position{}
		p.positions[symbol] = pos
	}
	pos.Shares += shares
	pos.Lots = append(pos.Lots, Lot{Price: price, Shares: shares})
	p.cash = p.cash.Sub(cost)
	return nil
}

// Sale describes a closed position.
type Sale struct {
	Shares   int64
	Proceeds decimal.Decimal
	Cost     decimal.Decimal
}

// Profit returns proceeds minus cost basis.
func (s Sale) Profit() decimal.Decimal {
	return s.Proceeds.Sub(s.Cost)
}

// QuoteSale values selling the whole position in symbol at price without
// changing the portfolio.
func (p *Portfolio) QuoteSale(symbol string, price decimal.Decimal) (Sale, error) {
	pos, ok := p.positions[symbol]
	if !ok || pos.Shares == 0 {
		return Sale{}, fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}
	return Sale{
		Shares:   pos.Shares,
		Proceeds: price.Mul(decimal.NewFromInt(pos.Shares)),
		Cost:     pos.Cost(),
	}, nil
}

// SellAll closes the position in symbol at price. The purchase history is
// cleared together with the shares.
func (p *Portfolio) SellAll(symbol string, price decimal.Decimal) (Sale, error) {
	sale, err := p.QuoteSale(symbol, price)
	if err != nil {
		return Sale{}, err
	}
	delete(p.positions, symbol)
	p.cash = p.cash.Add(sale.Proceeds)
	return sale, nil
}

// Equity returns cash plus every position valued at its last price. A symbol
// without a price is valued at cost.
func (p *Portfolio) Equity(lastPrices map[string]float64) decimal.Decimal {
	total := p.cash
	for s, pos := range p.positions {
		if px, ok := lastPrices[s]; ok {
			total = total.Add(decimal.NewFromFloat(px).Mul(decimal.NewFromInt(pos.Shares)))
		} else {
			total = total.Add(pos.Cost())
		}
	}
	return total
}

// PositionSnapshot is a read-only view of one position.
type PositionSnapshot struct {
	Symbol      string
	Shares      int64
	CostBasis   decimal.Decimal
	LastPrice   float64
	MarketValue decimal.Decimal
}

// PortfolioSnapshot is a read-only view of the whole portfolio.
type PortfolioSnapshot struct {
	Cash      decimal.Decimal
	Equity    decimal.Decimal
	Positions []PositionSnapshot
}

// Snapshot copies the portfolio state, positions sorted by symbol.
func (p *Portfolio) Snapshot(lastPrices map[string]float64) PortfolioSnapshot {
	snap := PortfolioSnapshot{Cash: p.cash, Equity: p.Equity(lastPrices)}
	for s, pos := range p.positions {
		px := lastPrices[s]
		snap.Positions = append(snap.Positions, PositionSnapshot{
			Symbol:      s,
			Shares:      pos.Shares,
			CostBasis:   pos.Cost(),
			LastPrice:   px,
			MarketValue: decimal.NewFromFloat(px).Mul(decimal.NewFromInt(pos.Shares)),
		})
	}
	sort.Slice(snap.Positions, func(i, j int) bool { return snap.Positions[i].Symbol < snap.Positions[j].Symbol })
	return snap
}
