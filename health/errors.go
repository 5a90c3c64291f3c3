package health

import "errors"

var (
	// ErrCheckFailed indicates a health check failed.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrNoDatabase indicates a database checker has no connection.
	ErrNoDatabase = errors.New("health: no database connection configured")
)
