package app

import "errors"

var (
	// ErrAlreadyRunning is returned by Start on a monitor that is running.
	ErrAlreadyRunning = errors.New("monitor already running")

	// ErrNoMarkets is returned by Start when there is nothing to monitor.
	ErrNoMarkets = errors.New("no markets to monitor")

	// ErrPositionNotFound is returned when closing a position that does not
	// exist or is already closed.
	ErrPositionNotFound = errors.New("position not found")

	// ErrInvalidSize is returned when adding a position with size <= 0.
	ErrInvalidSize = errors.New("position size must be positive")

	// ErrInvalidSide is returned when a position side is not LONG or SHORT.
	ErrInvalidSide = errors.New("position side must be LONG or SHORT")
)
