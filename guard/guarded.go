package guard

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/sqlguard/classify"
	"github.com/jonwraymond/sqlguard/observe"
	"github.com/jonwraymond/sqlguard/retry"
)

// defaultSessionTracingQuery reads the session tracing identifier the engine
// associates with the current connection.
const defaultSessionTracingQuery = "SELECT CONVERT(NVARCHAR(36), CONTEXT_INFO())"

// Config configures a GuardedConn.
type Config struct {
	// ConnectionString is the connection string for the owned handle.
	ConnectionString string

	// Connection overrides the handle implementation.
	// Default: NewSQLConnection(ConnectionString)
	Connection Connection

	// ConnectionPolicy governs connection opens.
	// Default: retry.DefaultRegistry.Default(retry.KindConnection)
	ConnectionPolicy *retry.Policy

	// CommandPolicy governs command execution.
	// Default: retry.DefaultRegistry.Default(retry.KindCommand)
	CommandPolicy *retry.Policy

	// SessionTracingQuery overrides the diagnostic session identifier query.
	SessionTracingQuery string

	// Logger receives retry and cleanup events.
	// Default: discard
	Logger observe.Logger

	// Metrics receives operation outcomes.
	// Default: discard
	Metrics observe.Metrics
}

// GuardedConn executes database operations under nested retry scopes while
// keeping the lifecycle of its single owned connection handle correct. Not
// safe for concurrent use; see the package documentation.
type GuardedConn struct {
	conn       Connection
	connPolicy *retry.Policy
	cmdPolicy  *retry.Policy
	failover   *retry.Policy
	tracingSQL string
	logger     observe.Logger
	metrics    observe.Metrics
}

// New creates a GuardedConn. The handle is constructed immediately but left
// closed; the first operation opens it.
func New(cfg Config) (*GuardedConn, error) {
	conn := cfg.Connection
	if conn == nil {
		if cfg.ConnectionString == "" {
			return nil, ErrNoConnectionString
		}
		conn = NewSQLConnection(cfg.ConnectionString)
	}

	connPolicy := cfg.ConnectionPolicy
	if connPolicy == nil {
		connPolicy = retry.DefaultRegistry.Default(retry.KindConnection)
	}
	cmdPolicy := cfg.CommandPolicy
	if cmdPolicy == nil {
		cmdPolicy = retry.DefaultRegistry.Default(retry.KindCommand)
	}

	tracingSQL := cfg.SessionTracingQuery
	if tracingSQL == "" {
		tracingSQL = defaultSessionTracingQuery
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observe.NewNopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.NewNopMetrics()
	}

	g := &GuardedConn{
		conn:       conn,
		connPolicy: connPolicy,
		cmdPolicy:  cmdPolicy,
		tracingSQL: tracingSQL,
		logger:     logger,
		metrics:    metrics,
	}

	// One quick retry against the same connection string after a DNS-class
	// failure, before control returns to the outer policy's budget.
	g.failover = retry.NewPolicy(retry.Config{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Strategy:     retry.BackoffConstant,
		Classifier:   classify.NetworkConnectivity{},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			ctx := context.Background()
			g.logger.Warn(ctx, "dns failure, retrying connect",
				observe.Field{Key: "attempt", Value: attempt},
				observe.Field{Key: "error", Value: err.Error()},
			)
			g.metrics.RecordRetry(ctx, observe.OpMeta{Operation: "failover"}, attempt)
		},
	})

	return g, nil
}

// CreateCommand builds a command bound to the owned connection handle.
func (g *GuardedConn) CreateCommand(text string, args ...any) Command {
	return g.conn.CreateCommand(text, args...)
}

// Connection exposes the owned handle. Callers must not open or close it.
func (g *GuardedConn) Connection() Connection {
	return g.conn
}

// Open opens the owned handle under the connection policy. Opening an
// already-open handle is a no-op.
func (g *GuardedConn) Open(ctx context.Context) (Connection, error) {
	return g.OpenWith(ctx, g.connPolicy)
}

// OpenWith opens the owned handle under the given policy, nested inside the
// failover scope.
func (g *GuardedConn) OpenWith(ctx context.Context, policy *retry.Policy) (Connection, error) {
	if policy == nil {
		policy = g.connPolicy
	}

	meta := observe.OpMeta{Operation: "open"}
	start := time.Now()

	err := policy.Execute(ctx, func(ctx context.Context) error {
		return g.failover.Execute(ctx, func(ctx context.Context) error {
			if g.conn.State() != StateOpen {
				return g.conn.Open(ctx)
			}
			return nil
		})
	})

	g.metrics.RecordOperation(ctx, meta, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return g.conn, nil
}

// Close closes the owned handle if it is open.
func (g *GuardedConn) Close() error {
	if g.conn.State() != StateOpen {
		return nil
	}
	return g.conn.Close()
}

// ExecuteCommand executes the command under the command policy and returns a
// value of the requested shape: Rows, DocumentStream, int64, or the raw
// scalar. The typed helpers cover the common cases.
func (g *GuardedConn) ExecuteCommand(ctx context.Context, cmd Command, shape ResultShape) (any, error) {
	return g.ExecuteCommandWith(ctx, cmd, g.cmdPolicy, shape, BehaviorDefault)
}

// ExecuteCommandWith executes the command under the given policy, nested
// inside the failover scope.
//
// If the command has no open connection, the first attempt opens the owned
// handle and records that the call did; later attempts re-check and reopen
// only if the handle dropped in between. The close decision is evaluated
// exactly once per call, after the retry scopes settle: a handle this call
// opened is closed after success for the row-count and scalar shapes
// (streaming shapes leave it open because the returned stream owns connection
// lifetime from then on), or after the final failure, before the original
// error propagates unchanged.
func (g *GuardedConn) ExecuteCommandWith(ctx context.Context, cmd Command, policy *retry.Policy, shape ResultShape, behavior Behavior) (any, error) {
	if policy == nil {
		policy = g.cmdPolicy
	}

	meta := observe.OpMeta{Operation: "execute", Shape: shape.String()}
	start := time.Now()

	opened := false
	result, err := retry.ExecuteAction(ctx, policy, func(ctx context.Context) (any, error) {
		return retry.ExecuteAction(ctx, g.failover, func(ctx context.Context) (any, error) {
			if err := g.ensureOpen(ctx, cmd, &opened); err != nil {
				return nil, err
			}
			return dispatch(ctx, cmd, shape, behavior)
		})
	})

	g.metrics.RecordOperation(ctx, meta, time.Since(start), err)

	if err != nil {
		g.cleanupAfterFailure(ctx, cmd, opened)
		return nil, err
	}

	if opened && shape.closeOnSuccess() && cmd.Connection().State() == StateOpen {
		if closeErr := cmd.Connection().Close(); closeErr != nil {
			g.logger.Warn(ctx, "close after success failed",
				observe.Field{Key: "error", Value: closeErr.Error()})
		}
	}
	return result, nil
}

// ensureOpen gives the command an open connection for one attempt, flagging
// the call as the opener when it was this call that opened the handle.
func (g *GuardedConn) ensureOpen(ctx context.Context, cmd Command, opened *bool) error {
	if cmd.Connection() == nil {
		conn, err := g.Open(ctx)
		if err != nil {
			return err
		}
		cmd.SetConnection(conn)
		*opened = true
		return nil
	}
	if cmd.Connection().State() != StateOpen {
		if err := cmd.Connection().Open(ctx); err != nil {
			return err
		}
		*opened = true
	}
	return nil
}

// cleanupAfterFailure closes a connection this call opened. The close error
// is logged; it must never mask the failure that got us here.
func (g *GuardedConn) cleanupAfterFailure(ctx context.Context, cmd Command, opened bool) {
	if !opened {
		return
	}
	conn := cmd.Connection()
	if conn == nil || conn.State() != StateOpen {
		return
	}
	if closeErr := conn.Close(); closeErr != nil {
		g.logger.Warn(ctx, "cleanup close failed",
			observe.Field{Key: "error", Value: closeErr.Error()})
	}
}

// ExecuteRowCount executes the command and returns the affected row count.
func (g *GuardedConn) ExecuteRowCount(ctx context.Context, cmd Command) (int64, error) {
	v, err := g.ExecuteCommand(ctx, cmd, ShapeRowCount)
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// ExecuteRows executes the command and streams the resulting rows. With
// BehaviorCloseConnection the stream's Close also closes the connection.
func (g *GuardedConn) ExecuteRows(ctx context.Context, cmd Command, behavior Behavior) (Rows, error) {
	v, err := g.ExecuteCommandWith(ctx, cmd, g.cmdPolicy, ShapeRows, behavior)
	if err != nil {
		return nil, err
	}
	return v.(Rows), nil
}

// ExecuteDocuments executes the command and streams structured documents.
// Fails as unsupported when the command lacks the capability.
func (g *GuardedConn) ExecuteDocuments(ctx context.Context, cmd Command) (DocumentStream, error) {
	v, err := g.ExecuteCommand(ctx, cmd, ShapeDocuments)
	if err != nil {
		return nil, err
	}
	return v.(DocumentStream), nil
}

// ExecuteScalar executes the command and converts the scalar result to T
// using invariant conversion rules. A NULL result yields the zero value.
func ExecuteScalar[T any](ctx context.Context, g *GuardedConn, cmd Command) (T, error) {
	v, err := g.ExecuteCommand(ctx, cmd, ShapeScalar)
	if err != nil {
		var zero T
		return zero, err
	}
	return ConvertScalar[T](v)
}

// SessionTracingID reads the session tracing identifier associated with the
// current connection. Best-effort diagnostics only: every failure, of any
// kind, is swallowed and the nil identifier returned.
func (g *GuardedConn) SessionTracingID(ctx context.Context) (id uuid.UUID) {
	defer func() {
		// A diagnostic read must never take the caller down.
		if r := recover(); r != nil {
			id = uuid.Nil
		}
	}()

	cmd := g.CreateCommand(g.tracingSQL)
	raw, err := ExecuteScalar[string](ctx, g, cmd)
	if err != nil {
		g.logger.Debug(ctx, "session tracing id unavailable",
			observe.Field{Key: "error", Value: err.Error()})
		return uuid.Nil
	}

	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
