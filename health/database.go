package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/sqlguard/guard"
)

// defaultProbeQuery is a minimal round trip through the engine.
const defaultProbeQuery = "SELECT 1"

// Database is the guarded-connection surface the checker probes through.
// *guard.GuardedConn satisfies it.
type Database interface {
	CreateCommand(text string, args ...any) guard.Command
	ExecuteCommand(ctx context.Context, cmd guard.Command, shape guard.ResultShape) (any, error)
}

// DatabaseCheckerConfig configures a DatabaseChecker.
type DatabaseCheckerConfig struct {
	// Name identifies the checked database in results.
	Name string

	// Server is the probed server, carried into results when set.
	Server string

	// Conn is the guarded connection to probe through.
	Conn Database

	// Query overrides the probe statement.
	// Default: SELECT 1
	Query string

	// DegradedAfter downgrades a successful probe that took longer.
	// Default: 500ms
	DegradedAfter time.Duration

	// Timeout bounds the probe.
	// Default: 5s
	Timeout time.Duration
}

// DatabaseChecker probes a database endpoint through a guarded connection.
// The probe inherits the connection's retry discipline, so a transient blip
// inside the retry budget still reports healthy.
type DatabaseChecker struct {
	config DatabaseCheckerConfig
}

// NewDatabaseChecker creates a database health checker.
func NewDatabaseChecker(config DatabaseCheckerConfig) *DatabaseChecker {
	// Apply defaults
	if config.Name == "" {
		config.Name = "database"
	}
	if config.Query == "" {
		config.Query = defaultProbeQuery
	}
	if config.DegradedAfter <= 0 {
		config.DegradedAfter = 500 * time.Millisecond
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	return &DatabaseChecker{config: config}
}

// Name returns the name of this checker.
func (c *DatabaseChecker) Name() string {
	return c.config.Name
}

// Check probes the database and maps the outcome to a status.
func (c *DatabaseChecker) Check(ctx context.Context) Result {
	if c.config.Conn == nil {
		return Unhealthy("no connection configured", ErrNoDatabase).WithServer(c.config.Server)
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	cmd := c.config.Conn.CreateCommand(c.config.Query)
	_, err := c.config.Conn.ExecuteCommand(probeCtx, cmd, guard.ShapeScalar)
	elapsed := time.Since(start)

	var result Result
	switch {
	case err != nil:
		result = Unhealthy("probe failed", err)
	case elapsed > c.config.DegradedAfter:
		result = Degraded(fmt.Sprintf("probe slow: %v", elapsed.Round(time.Millisecond)))
	default:
		result = Healthy("probe ok")
	}
	return result.WithLatency(elapsed).WithServer(c.config.Server)
}
