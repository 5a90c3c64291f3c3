package guard

import "errors"

// Sentinel errors for guarded execution.
var (
	// ErrNoConnectionString is returned when a GuardedConn is configured
	// with neither a connection string nor a connection.
	ErrNoConnectionString = errors.New("guard: connection string is required")

	// ErrConnectionClosed is returned when a command executes against a
	// handle that is not open.
	ErrConnectionClosed = errors.New("guard: connection is not open")

	// ErrConnectionOpen is returned when a closed-handle-only operation is
	// attempted on an open handle.
	ErrConnectionOpen = errors.New("guard: connection is already open")
)
