// Package di provides dependency injection factories for creating application components.
package di

import (
	"fmt"
	"time"

	"bandtrader/internal/feature/prices/usecase"
	"bandtrader/internal/platform/calendar"
	"bandtrader/internal/platform/config"
	"bandtrader/internal/platform/credentials"
	"bandtrader/internal/platform/externalapi/tiingo"
	infrahttp "bandtrader/internal/platform/http"
	"bandtrader/internal/shared/ratelimiter"
)

// NewMarket creates a fully configured TiingoMarket with its HTTP client and credential pool.
func NewMarket(cfg config.ProviderConfig) (*tiingo.TiingoMarket, error) {
	keys, err := credentials.NewPool(cfg.APIKeys)
	if err != nil {
		return nil, fmt.Errorf("provider api keys: %w", err)
	}
	tc := tiingo.NewConfig(cfg)
	httpClient := infrahttp.NewHTTPClient(tc.Timeout, keys.Size()*2)
	return tiingo.NewTiingoMarket(tc, httpClient, keys), nil
}

// NewBackfillUsecase wires the provider client, the shared courtesy delay and
// the trading calendar into a BackfillUsecase.
func NewBackfillUsecase(cfg *config.Config, cal *calendar.TradingCalendar) (*usecase.BackfillUsecase, error) {
	market, err := NewMarket(cfg.Provider)
	if err != nil {
		return nil, err
	}
	limiter := ratelimiter.NewRateLimiter(cfg.Ingest.RequestsPerMinute, time.Minute)
	return usecase.NewBackfillUsecase(market, limiter, cal), nil
}
