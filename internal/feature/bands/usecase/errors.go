package usecase

import "errors"

var (
	// ErrNoDataInRange is returned when the clamped analysis range holds no rows.
	ErrNoDataInRange = errors.New("no stored data in range")
	// ErrInvalidRange is returned when an analysis range ends before it starts.
	ErrInvalidRange = errors.New("invalid range")
)
