// Package observe provides the logging and metrics surface used by the
// sqlguard packages.
//
// The package deliberately stays small: a structured Logger interface with a
// JSON implementation that redacts connection secrets, and a Metrics
// interface backed by OpenTelemetry instruments for operation counts,
// durations, and retry attempts. Both have no-op implementations so guarded
// code never nil-checks its telemetry.
//
//	logger := observe.NewLogger("info")
//	metrics, err := observe.NewMetrics(meterProvider.Meter("sqlguard"))
//
// The module does not own a MeterProvider; the embedding application
// configures exporters and hands a Meter in.
package observe
