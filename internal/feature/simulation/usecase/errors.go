// Package usecase implements the multi-symbol band-trading simulation.
package usecase

import (
	"errors"

	"bandtrader/internal/feature/simulation/domain/entity"
)

var (
	// ErrInsufficientSeedHistory is returned before any ledger write when a symbol
	// has fewer seed prices than the band window.
	ErrInsufficientSeedHistory = errors.New("insufficient seed history")

	// ErrInvalidRun is returned for malformed run requests.
	ErrInvalidRun = errors.New("invalid run request")

	// ErrRunNotFound is returned when no run with the given id exists.
	ErrRunNotFound = errors.New("run not found")

	// ErrInsufficientCash and ErrNoPosition are the portfolio's own errors.
	ErrInsufficientCash = entity.ErrInsufficientCash
	ErrNoPosition       = entity.ErrNoPosition
)
