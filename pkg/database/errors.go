package database

import "errors"

var (
	// ErrNotReady means the startup ping has not succeeded yet, or the pool
	// has been closed for shutdown.
	ErrNotReady = errors.New("database not ready")
	// ErrUnreachable means a readiness ping failed after startup.
	ErrUnreachable = errors.New("database unreachable")
)
