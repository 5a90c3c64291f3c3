package health

import (
	"context"
	"time"
)

// Status grades a probed database endpoint.
type Status int

const (
	// StatusHealthy means the endpoint answered the probe promptly.
	StatusHealthy Status = iota
	// StatusDegraded means the endpoint answered, but slower than the
	// configured threshold.
	StatusDegraded
	// StatusUnhealthy means the probe failed after the guarded connection
	// exhausted its retry budget.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is the outcome of one probe.
type Result struct {
	// Status is the graded outcome.
	Status Status

	// Message provides additional context about the status.
	Message string

	// Server is the probed server, when known.
	Server string

	// Latency is the round-trip time of the probe through the guarded
	// connection, retries included.
	Latency time.Duration

	// Timestamp is when the probe ran.
	Timestamp time.Time

	// Error is the failure that ended the probe, nil otherwise.
	Error error
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{
		Status:    StatusHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Degraded creates a degraded result.
func Degraded(message string) Result {
	return Result{
		Status:    StatusDegraded,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string, err error) Result {
	return Result{
		Status:    StatusUnhealthy,
		Message:   message,
		Error:     err,
		Timestamp: time.Now(),
	}
}

// WithLatency sets the probe latency on a result.
func (r Result) WithLatency(d time.Duration) Result {
	r.Latency = d
	return r
}

// WithServer sets the probed server on a result.
func (r Result) WithServer(server string) Result {
	r.Server = server
	return r
}

// Checker probes one database endpoint.
type Checker interface {
	// Name identifies the probed endpoint.
	Name() string

	// Check runs the probe and grades the outcome.
	Check(ctx context.Context) Result
}

// CheckerFunc adapts an ordinary function to the Checker interface.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc creates a new CheckerFunc.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name identifies the probed endpoint.
func (f *CheckerFunc) Name() string {
	return f.name
}

// Check runs the probe.
func (f *CheckerFunc) Check(ctx context.Context) Result {
	return f.fn(ctx)
}
