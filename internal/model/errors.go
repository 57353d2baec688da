package model

import "errors"

var (
	// ErrDataUnavailable means a price or rate fetch failed or returned nothing.
	// Callers skip the affected ticker; it is never a reason to buy or sell.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrInsufficientHistory means fewer bars than an indicator lookback requires.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrInsufficientFunds means an entry was sized above the available cash.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrPersistence means the durable store could not be written.
	ErrPersistence = errors.New("persistence failure")

	// ErrUnknownPosition means no open position exists for the ticker.
	ErrUnknownPosition = errors.New("unknown position")
)
