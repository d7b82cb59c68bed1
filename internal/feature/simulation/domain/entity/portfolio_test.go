package entity_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bandtrader/internal/feature/simulation/domain/entity"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestPortfolio_Buy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		shares   int64
		price    float64
		wantErr  error
		wantCash string
	}{
		{name: "exact cash", shares: 10, price: 100, wantCash: "0"},
		{name: "partial", shares: 14, price: 70, wantCash: "20"},
		{name: "too expensive", shares: 11, price: 100, wantErr: entity.ErrInsufficientCash, wantCash: "1000"},
		{name: "zero shares", shares: 0, price: 100, wantErr: entity.ErrInvalidQuantity, wantCash: "1000"},
		{name: "zero price", shares: 1, price: 0, wantErr: entity.ErrInvalidQuantity, wantCash: "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := entity.NewPortfolio(dec(1000))

			err := p.Buy("AAPL", tt.shares, dec(tt.price))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, p.Position("AAPL").Shares)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.shares, p.Position("AAPL").Shares)
			}
			assert.Equal(t, tt.wantCash, p.Cash().String())
		})
	}
}

func TestPortfolio_SellAllClearsHistory(t *testing.T) {
	t.Parallel()
	p := entity.NewPortfolio(dec(1000))
	require.NoError(t, p.Buy("AAPL", 2, dec(100)))
	require.NoError(t, p.Buy("AAPL", 3, dec(90)))

	pos := p.Position("AAPL")
	assert.Equal(t, int64(5), pos.Shares)
	assert.Len(t, pos.Lots, 2)
	assert.Equal(t, "470", pos.Cost().String())

	sale, err := p.SellAll("AAPL", dec(110))
	require.NoError(t, err)
	assert.Equal(t, int64(5), sale.Shares)
	assert.Equal(t, "550", sale.Proceeds.String())
	assert.Equal(t, "80", sale.Profit().String())
	assert.Equal(t, "1080", p.Cash().String())

	after := p.Position("AAPL")
	assert.Zero(t, after.Shares)
	assert.Empty(t, after.Lots)
}

func TestPortfolio_SellWithoutPosition(t *testing.T) {
	t.Parallel()
	p := entity.NewPortfolio(dec(1000))

	_, err := p.SellAll("AAPL", dec(100))
	assert.ErrorIs(t, err, entity.ErrNoPosition)

	_, err = p.QuoteSale("AAPL", dec(100))
	assert.ErrorIs(t, err, entity.ErrNoPosition)
	assert.Equal(t, "1000", p.Cash().String())
}

func TestPortfolio_QuoteSaleDoesNotMutate(t *testing.T) {
	t.Parallel()
	p := entity.NewPortfolio(dec(100))
	require.NoError(t, p.Buy("MSFT", 1, dec(50)))

	q, err := p.QuoteSale("MSFT", dec(40))
	require.NoError(t, err)
	assert.Equal(t, "-10", q.Profit().String())
	assert.Equal(t, int64(1), p.Position("MSFT").Shares)
	assert.Equal(t, "50", p.Cash().String())
}

func TestPortfolio_PositionIsACopy(t *testing.T) {
	t.Parallel()
	p := entity.NewPortfolio(dec(100))
	require.NoError(t, p.Buy("MSFT", 1, dec(50)))

	pos := p.Position("MSFT")
	pos.Lots[0].Shares = 99

	assert.Equal(t, int64(1), p.Position("MSFT").Lots[0].Shares)
}

func TestPortfolio_EquityAndSnapshot(t *testing.T) {
	t.Parallel()
	p := entity.NewPortfolio(dec(1000))
	require.NoError(t, p.Buy("MSFT", 2, dec(100)))
	require.NoError(t, p.Buy("AAPL", 4, dec(50)))

	// MSFT has no price yet and is valued at cost.
	prices := map[string]float64{"AAPL": 60}
	assert.Equal(t, "1040", p.Equity(prices).String())

	prices["MSFT"] = 90
	snap := p.Snapshot(prices)
	assert.Equal(t, "600", snap.Cash.String())
	assert.Equal(t, "1020", snap.Equity.String())
	require.Len(t, snap.Positions, 2)
	assert.Equal(t, "AAPL", snap.Positions[0].Symbol)
	assert.Equal(t, "240", snap.Positions[0].MarketValue.String())
	assert.Equal(t, "MSFT", snap.Positions[1].Symbol)
	assert.Equal(t, "200", snap.Positions[1].CostBasis.String())
}
