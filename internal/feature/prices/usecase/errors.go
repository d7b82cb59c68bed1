// Package usecase implements ingestion and validation of price series.
package usecase

import "errors"

var (
	// ErrProviderThrottled is returned when every credential stays throttled past the configured retry budget.
	ErrProviderThrottled = errors.New("provider throttled")

	// ErrProviderUnavailable is returned for non-throttling HTTP failures and transport errors.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrInvalidRange is returned when a requested end day precedes its start day.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrNoSeries is returned when no stored series exists for a symbol.
	ErrNoSeries = errors.New("no stored series for symbol")
)
