package observe

import "context"

// OpMeta identifies a guarded database operation in logs and metrics.
type OpMeta struct {
	// Operation is the operation category, for example "open" or "execute".
	Operation string

	// Shape is the requested result shape for execute operations.
	Shape string

	// Server is the target server, when known.
	Server string
}

// Logger is a minimal structured logging interface.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging must be best-effort and must not panic.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
}

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

// ExtendedLogger extends Logger with WithOp for creating operation-scoped
// loggers.
//
// Contract:
// - Ownership: WithOp returns a logger bound to OpMeta; the returned logger
//   may share state with its parent.
type ExtendedLogger interface {
	Logger
	WithOp(meta OpMeta) Logger
}

// nopLogger discards everything.
type nopLogger struct{}

// NewNopLogger returns a logger that discards all output.
func NewNopLogger() Logger {
	return nopLogger{}
}

func (nopLogger) Info(ctx context.Context, msg string, fields ...Field)  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...Field)  {}
func (nopLogger) Error(ctx context.Context, msg string, fields ...Field) {}
func (nopLogger) Debug(ctx context.Context, msg string, fields ...Field) {}
