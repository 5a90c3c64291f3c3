package guard

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/sqlguard/classify"
	"github.com/jonwraymond/sqlguard/failure"
	"github.com/jonwraymond/sqlguard/retry"
)

// fakeConn is a Connection test double that scripts open failures and counts
// lifecycle transitions.
type fakeConn struct {
	state    ConnState
	opens    int
	closes   int
	openErrs []error // consumed one per Open call; nil entries succeed
	dsn      string
}

func (c *fakeConn) Open(ctx context.Context) error {
	var err error
	if len(c.openErrs) > 0 {
		err, c.openErrs = c.openErrs[0], c.openErrs[1:]
	}
	if err != nil {
		return err
	}
	c.opens++
	c.state = StateOpen
	return nil
}

func (c *fakeConn) Close() error {
	c.closes++
	c.state = StateClosed
	return nil
}

func (c *fakeConn) State() ConnState { return c.state }

func (c *fakeConn) ChangeDatabase(ctx context.Context, name string) error { return nil }

func (c *fakeConn) CreateCommand(text string, args ...any) Command {
	return &fakeCommand{conn: c, text: text}
}

func (c *fakeConn) ConnectionString() string { return c.dsn }

func (c *fakeConn) SetConnectionString(dsn string) { c.dsn = dsn }

func (c *fakeConn) Timeout() time.Duration { return time.Second }

// fakeCommand is a Command test double that scripts per-attempt results.
// With dropConn set, a scripted failure also drops the underlying handle,
// modeling a broken transport.
type fakeCommand struct {
	conn     Connection
	text     string
	execErrs []error // consumed one per execute call; nil entries succeed
	execs    int
	rowCount int64
	scalar   any
	dropConn bool
}

func (m *fakeCommand) CommandText() string { return m.text }

func (m *fakeCommand) Connection() Connection { return m.conn }

func (m *fakeCommand) SetConnection(conn Connection) { m.conn = conn }

func (m *fakeCommand) nextErr() error {
	m.execs++
	if len(m.execErrs) > 0 {
		var err error
		err, m.execErrs = m.execErrs[0], m.execErrs[1:]
		if err != nil && m.dropConn {
			if fc, ok := m.conn.(*fakeConn); ok {
				fc.state = StateClosed
			}
		}
		return err
	}
	return nil
}

func (m *fakeCommand) ExecuteRows(ctx context.Context, behavior Behavior) (Rows, error) {
	if err := m.nextErr(); err != nil {
		return nil, err
	}
	return &fakeRows{}, nil
}

func (m *fakeCommand) ExecuteNonQuery(ctx context.Context) (int64, error) {
	if err := m.nextErr(); err != nil {
		return 0, err
	}
	return m.rowCount, nil
}

func (m *fakeCommand) ExecuteScalar(ctx context.Context) (any, error) {
	if err := m.nextErr(); err != nil {
		return nil, err
	}
	return m.scalar, nil
}

type fakeRows struct{ closed bool }

func (r *fakeRows) Next() bool { return false }

func (r *fakeRows) Scan(dest ...any) error { return nil }

func (r *fakeRows) Close() error { r.closed = true; return nil }

func (r *fakeRows) Err() error { return nil }

// fakeDocCommand adds the document-stream capability to fakeCommand.
type fakeDocCommand struct {
	fakeCommand
	docs []json.RawMessage
}

func (m *fakeDocCommand) ExecuteDocuments(ctx context.Context) (DocumentStream, error) {
	if err := m.nextErr(); err != nil {
		return nil, err
	}
	return &fakeDocStream{docs: m.docs}, nil
}

type fakeDocStream struct {
	docs   []json.RawMessage
	pos    int
	closed bool
}

func (d *fakeDocStream) Next() bool {
	if d.pos >= len(d.docs) {
		return false
	}
	d.pos++
	return true
}

func (d *fakeDocStream) Document() json.RawMessage { return d.docs[d.pos-1] }

func (d *fakeDocStream) Close() error { d.closed = true; return nil }

func (d *fakeDocStream) Err() error { return nil }

func transientPolicy(maxAttempts int) *retry.Policy {
	return retry.NewPolicy(retry.Config{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		Classifier:   classify.Transient{},
	})
}

func newGuarded(t *testing.T, conn Connection, maxAttempts int) *GuardedConn {
	t.Helper()
	g, err := New(Config{
		Connection:       conn,
		ConnectionPolicy: transientPolicy(maxAttempts),
		CommandPolicy:    transientPolicy(maxAttempts),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g
}

func unavailable() *failure.Failure {
	return failure.NewEngine(40613, 20, 0, "db-01", "database unavailable")
}

func TestNew_RequiresConnection(t *testing.T) {
	_, err := New(Config{})
	if !errors.Is(err, ErrNoConnectionString) {
		t.Errorf("New() error = %v, want ErrNoConnectionString", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	conn := &fakeConn{}
	g := newGuarded(t, conn, 3)
	ctx := context.Background()

	if _, err := g.Open(ctx); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := g.Open(ctx); err != nil {
		t.Fatalf("second Open() error = %v", err)
	}

	if conn.opens != 1 {
		t.Errorf("opens = %d, want 1 (already open must not reopen)", conn.opens)
	}
	if conn.State() != StateOpen {
		t.Error("connection should remain open")
	}
}

func TestOpen_DNSFailover(t *testing.T) {
	// First open attempt hits a DNS miss; the inner failover scope retries
	// once against the same connection string even though the outer policy
	// never retries.
	conn := &fakeConn{openErrs: []error{
		failure.NewEngine(failure.CodeHostNotFound, 20, 0, "", "no such host"),
		nil,
	}}

	g, err := New(Config{
		Connection:       conn,
		ConnectionPolicy: retry.NoRetry(),
		CommandPolicy:    retry.NoRetry(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := g.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if conn.State() != StateOpen {
		t.Error("connection should be open after failover retry")
	}
}

func TestOpen_DNSFailoverSingleRetry(t *testing.T) {
	// Two consecutive DNS misses exhaust the failover scope; with a
	// no-retry outer policy the second miss surfaces.
	dns := func() error {
		return failure.NewEngine(failure.CodeHostNotFound, 20, 0, "", "no such host")
	}
	conn := &fakeConn{openErrs: []error{dns(), dns(), nil}}

	g, err := New(Config{Connection: conn, ConnectionPolicy: retry.NoRetry(), CommandPolicy: retry.NoRetry()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = g.Open(context.Background())
	if err == nil {
		t.Fatal("Open() should fail after the single failover retry")
	}

	var f *failure.Failure
	if !errors.As(err, &f) || f.Code != failure.CodeHostNotFound {
		t.Errorf("error = %v, want the DNS failure unchanged", err)
	}
}

func TestExecuteRowCount_SuccessClosesOpenedConnection(t *testing.T) {
	conn := &fakeConn{}
	g := newGuarded(t, conn, 3)

	cmd := &fakeCommand{text: "DELETE FROM stale", rowCount: 5}
	n, err := g.ExecuteRowCount(context.Background(), cmd)

	if err != nil {
		t.Fatalf("ExecuteRowCount() error = %v", err)
	}
	if n != 5 {
		t.Errorf("row count = %d, want 5", n)
	}
	if conn.State() != StateClosed {
		t.Error("connection opened by this call should be closed after success")
	}
	if conn.opens != 1 || conn.closes != 1 {
		t.Errorf("opens/closes = %d/%d, want 1/1", conn.opens, conn.closes)
	}
}

func TestExecuteRowCount_ExhaustedClosesOpenedConnection(t *testing.T) {
	conn := &fakeConn{}
	g := newGuarded(t, conn, 2)

	cmd := &fakeCommand{
		text:     "DELETE FROM stale",
		execErrs: []error{unavailable(), unavailable()},
	}

	_, err := g.ExecuteRowCount(context.Background(), cmd)
	if err == nil {
		t.Fatal("ExecuteRowCount() should fail after exhausting retries")
	}
	if conn.State() != StateClosed {
		t.Error("connection opened by this call should be closed after exhaustion")
	}
	if cmd.execs != 2 {
		t.Errorf("execs = %d, want 2", cmd.execs)
	}
	// The handle opened by the first attempt is reused by later attempts and
	// closed once, after the final failure.
	if conn.opens != 1 || conn.closes != 1 {
		t.Errorf("opens/closes = %d/%d, want 1/1", conn.opens, conn.closes)
	}
}

func TestExecuteRows_SuccessLeavesConnectionOpen(t *testing.T) {
	conn := &fakeConn{}
	g := newGuarded(t, conn, 3)

	cmd := &fakeCommand{text: "SELECT * FROM orders"}
	rows, err := g.ExecuteRows(context.Background(), cmd, BehaviorDefault)

	if err != nil {
		t.Fatalf("ExecuteRows() error = %v", err)
	}
	if conn.State() != StateOpen {
		t.Error("streaming shape should leave the connection open")
	}

	if err := rows.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if conn.State() != StateOpen {
		t.Error("default behavior: closing the stream must not close the connection")
	}
}

func TestExecuteRows_CloseConnectionBehavior(t *testing.T) {
	conn := &fakeConn{}
	g := newGuarded(t, conn, 3)

	cmd := &fakeCommand{text: "SELECT * FROM orders"}
	rows, err := g.ExecuteRows(context.Background(), cmd, BehaviorCloseConnection)

	if err != nil {
		t.Fatalf("ExecuteRows() error = %v", err)
	}
	if conn.State() != StateOpen {
		t.Fatal("connection should stay open until the stream closes")
	}

	if err := rows.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if conn.State() != StateClosed {
		t.Error("closing the stream should close the connection")
	}
}

func TestExecuteCommand_TransientThenSuccess(t *testing.T) {
	conn := &fakeConn{}
	g := newGuarded(t, conn, 3)

	cmd := &fakeCommand{
		text:     "UPDATE accounts SET active = true",
		rowCount: 1,
		execErrs: []error{unavailable(), unavailable(), nil},
	}

	n, err := g.ExecuteRowCount(context.Background(), cmd)
	if err != nil {
		t.Fatalf("ExecuteRowCount() error = %v", err)
	}
	if n != 1 {
		t.Errorf("row count = %d, want 1", n)
	}
	if cmd.execs != 3 {
		t.Errorf("attempts = %d, want 3", cmd.execs)
	}
	if conn.State() != StateClosed {
		t.Error("connection should be closed after the successful attempt")
	}
	// One open serves all three attempts.
	if conn.opens != 1 || conn.closes != 1 {
		t.Errorf("opens/closes = %d/%d, want 1/1", conn.opens, conn.closes)
	}
}

func TestExecuteCommand_DroppedConnectionReopened(t *testing.T) {
	conn := &fakeConn{}
	g := newGuarded(t, conn, 3)

	// The first attempt's failure takes the transport down with it; the next
	// attempt must reopen before executing.
	cmd := &fakeCommand{
		text:     "UPDATE accounts SET active = true",
		rowCount: 1,
		dropConn: true,
		execErrs: []error{
			failure.NewEngine(failure.CodeTransportBroken, 20, 0, "", "connection broken"),
			nil,
		},
	}

	n, err := g.ExecuteRowCount(context.Background(), cmd)
	if err != nil {
		t.Fatalf("ExecuteRowCount() error = %v", err)
	}
	if n != 1 {
		t.Errorf("row count = %d, want 1", n)
	}
	if conn.opens != 2 {
		t.Errorf("opens = %d, want 2 (reopen after the drop)", conn.opens)
	}
	if conn.State() != StateClosed {
		t.Error("connection should be closed after success")
	}
}

func TestExecuteCommand_PermanentFailsFirstAttempt(t *testing.T) {
	conn := &fakeConn{}
	g := newGuarded(t, conn, 3)

	invalidObject := failure.NewEngine(208, 16, 1, "db-01", "invalid object name 'orders'")
	cmd := &fakeCommand{
		text:     "SELECT count(*) FROM orders",
		execErrs: []error{invalidObject},
	}

	_, err := g.ExecuteRowCount(context.Background(), cmd)
	if err == nil {
		t.Fatal("ExecuteRowCount() should fail")
	}

	var f *failure.Failure
	if !errors.As(err, &f) || f.Code != 208 {
		t.Errorf("error = %v, want the code-208 failure unchanged", err)
	}
	if cmd.execs != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on permanent failure)", cmd.execs)
	}
	if conn.State() != StateClosed {
		t.Error("connection opened by this call should be closed before the failure propagates")
	}
}

func TestExecuteCommand_AttachedOpenConnectionNotClosed(t *testing.T) {
	conn := &fakeConn{}
	if err := conn.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	g := newGuarded(t, conn, 1)

	cmd := &fakeCommand{
		conn:     conn,
		text:     "DELETE FROM stale",
		execErrs: []error{failure.NewEngine(208, 16, 1, "", "invalid object")},
	}

	_, err := g.ExecuteRowCount(context.Background(), cmd)
	if err == nil {
		t.Fatal("ExecuteRowCount() should fail")
	}
	if conn.State() != StateOpen {
		t.Error("a connection this call did not open must stay open")
	}
}

func TestExecuteCommand_AttachedClosedConnectionReopened(t *testing.T) {
	conn := &fakeConn{}
	g := newGuarded(t, conn, 3)

	cmd := &fakeCommand{conn: conn, text: "DELETE FROM stale", rowCount: 2}
	n, err := g.ExecuteRowCount(context.Background(), cmd)

	if err != nil {
		t.Fatalf("ExecuteRowCount() error = %v", err)
	}
	if n != 2 {
		t.Errorf("row count = %d, want 2", n)
	}
	if conn.opens != 1 || conn.closes != 1 {
		t.Errorf("opens/closes = %d/%d, want 1/1", conn.opens, conn.closes)
	}
	if conn.State() != StateClosed {
		t.Error("a connection this call opened should be closed after success")
	}
}

func TestExecuteDocuments_CapabilityGate(t *testing.T) {
	conn := &fakeConn{}
	g := newGuarded(t, conn, 3)

	// fakeCommand lacks the DocumentStreamer capability.
	cmd := &fakeCommand{text: "SELECT doc FROM events"}
	_, err := g.ExecuteDocuments(context.Background(), cmd)
	if err == nil {
		t.Fatal("ExecuteDocuments() should fail for a command without the capability")
	}

	var f *failure.Failure
	if !errors.As(err, &f) || f.Kind != failure.KindUnsupported {
		t.Errorf("error = %v, want an unsupported failure", err)
	}

	var transient classify.Transient
	if transient.IsTransient(err) {
		t.Error("an unsupported shape must never classify as transient")
	}
}

func TestExecuteDocuments_Streams(t *testing.T) {
	conn := &fakeConn{}
	g := newGuarded(t, conn, 3)

	cmd := &fakeDocCommand{
		fakeCommand: fakeCommand{text: "SELECT doc FROM events"},
		docs:        []json.RawMessage{json.RawMessage(`{"id":1}`), json.RawMessage(`{"id":2}`)},
	}

	stream, err := g.ExecuteDocuments(context.Background(), cmd)
	if err != nil {
		t.Fatalf("ExecuteDocuments() error = %v", err)
	}
	if conn.State() != StateOpen {
		t.Error("document streaming should leave the connection open")
	}

	count := 0
	for stream.Next() {
		count++
	}
	if count != 2 {
		t.Errorf("documents = %d, want 2", count)
	}
	if err := stream.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestExecuteScalar_Converts(t *testing.T) {
	conn := &fakeConn{}
	g := newGuarded(t, conn, 3)

	cmd := &fakeCommand{text: "SELECT count(*) FROM orders", scalar: "42"}
	n, err := ExecuteScalar[int64](context.Background(), g, cmd)

	if err != nil {
		t.Fatalf("ExecuteScalar() error = %v", err)
	}
	if n != 42 {
		t.Errorf("scalar = %d, want 42", n)
	}
	if conn.State() != StateClosed {
		t.Error("scalar shape should close the connection this call opened")
	}
}

func TestExecuteScalar_NullYieldsZeroValue(t *testing.T) {
	conn := &fakeConn{}
	g := newGuarded(t, conn, 3)

	cmd := &fakeCommand{text: "SELECT max(id) FROM empty", scalar: nil}
	n, err := ExecuteScalar[int64](context.Background(), g, cmd)

	if err != nil {
		t.Fatalf("ExecuteScalar() error = %v", err)
	}
	if n != 0 {
		t.Errorf("scalar = %d, want the zero value for NULL", n)
	}
}

func TestSessionTracingID(t *testing.T) {
	t.Run("returns the session identifier", func(t *testing.T) {
		want := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")

		conn := &tracingConn{fakeConn: fakeConn{}, scalar: want.String()}
		g := newGuarded(t, conn, 1)

		if got := g.SessionTracingID(context.Background()); got != want {
			t.Errorf("SessionTracingID() = %v, want %v", got, want)
		}
	})

	t.Run("swallows every failure", func(t *testing.T) {
		conn := &tracingConn{
			fakeConn: fakeConn{},
			execErr:  failure.NewEngine(208, 16, 1, "", "invalid object"),
		}
		g := newGuarded(t, conn, 1)

		if got := g.SessionTracingID(context.Background()); got != uuid.Nil {
			t.Errorf("SessionTracingID() = %v, want uuid.Nil on failure", got)
		}
	})

	t.Run("unparseable identifier yields nil", func(t *testing.T) {
		conn := &tracingConn{fakeConn: fakeConn{}, scalar: "not-a-uuid"}
		g := newGuarded(t, conn, 1)

		if got := g.SessionTracingID(context.Background()); got != uuid.Nil {
			t.Errorf("SessionTracingID() = %v, want uuid.Nil", got)
		}
	})
}

// tracingConn hands out commands that return a scripted scalar, standing in
// for the engine's session identifier query.
type tracingConn struct {
	fakeConn
	scalar  string
	execErr error
}

func (c *tracingConn) CreateCommand(text string, args ...any) Command {
	cmd := &fakeCommand{conn: c, text: text, scalar: c.scalar}
	if c.execErr != nil {
		cmd.execErrs = []error{c.execErr}
	}
	return cmd
}

func TestClose_Idempotent(t *testing.T) {
	conn := &fakeConn{}
	g := newGuarded(t, conn, 1)

	if err := g.Close(); err != nil {
		t.Errorf("Close() on a closed handle should be a no-op, got %v", err)
	}

	if _, err := g.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := g.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if conn.State() != StateClosed {
		t.Error("Close() should close the handle")
	}
}
