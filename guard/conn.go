package guard

import (
	"context"
	"encoding/json"
	"time"
)

// ConnState reports whether a connection handle is usable.
type ConnState int

const (
	// StateClosed means the handle holds no live connection.
	StateClosed ConnState = iota
	// StateOpen means the handle is connected and ready for commands.
	StateOpen
)

// String returns the string representation of the state.
func (s ConnState) String() string {
	switch s {
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Behavior adjusts how a row stream relates to its connection.
type Behavior int

const (
	// BehaviorDefault leaves connection lifetime to the caller.
	BehaviorDefault Behavior = iota
	// BehaviorCloseConnection closes the connection when the stream closes.
	BehaviorCloseConnection
)

// Connection is the database connection capability guard executes against.
//
// Contract:
// - Ownership: exactly one owner opens and closes a Connection; guard assumes
//   no other component mutates the handle underneath it.
// - Errors: implementations must return errors already decoded into the
//   failure model (see failure.Decode).
type Connection interface {
	// Open establishes the connection. Opening an open handle is an error;
	// callers check State first.
	Open(ctx context.Context) error

	// Close releases the connection. Closing a closed handle is a no-op.
	Close() error

	// State reports whether the handle is open.
	State() ConnState

	// ChangeDatabase switches the handle to another database by name.
	ChangeDatabase(ctx context.Context, name string) error

	// CreateCommand builds a command associated with this connection.
	CreateCommand(text string, args ...any) Command

	// ConnectionString returns the current connection string.
	ConnectionString() string

	// SetConnectionString replaces the connection string. Only valid while
	// the handle is closed.
	SetConnectionString(dsn string)

	// Timeout returns the configured per-operation timeout.
	Timeout() time.Duration
}

// Command is a single executable statement bound to a connection.
type Command interface {
	// CommandText returns the statement text.
	CommandText() string

	// Connection returns the associated connection, nil when unattached.
	Connection() Connection

	// SetConnection attaches the command to a connection.
	SetConnection(conn Connection)

	// ExecuteRows runs the statement and streams the resulting rows.
	ExecuteRows(ctx context.Context, behavior Behavior) (Rows, error)

	// ExecuteNonQuery runs the statement and returns the affected row count.
	ExecuteNonQuery(ctx context.Context) (int64, error)

	// ExecuteScalar runs the statement and returns the first column of the
	// first row, or nil when the result set is empty.
	ExecuteScalar(ctx context.Context) (any, error)
}

// DocumentStreamer is the optional capability for commands that can stream
// structured documents. Requesting the document shape from a Command that
// does not implement it fails as unsupported.
type DocumentStreamer interface {
	// ExecuteDocuments runs the statement and streams one document per row.
	ExecuteDocuments(ctx context.Context) (DocumentStream, error)
}

// Rows is a forward-only row stream. Close releases the stream; depending on
// the requested Behavior it may also release the underlying connection.
type Rows interface {
	// Next advances to the next row, reporting false at the end.
	Next() bool

	// Scan copies the current row's columns into dest.
	Scan(dest ...any) error

	// Close releases the stream.
	Close() error

	// Err returns the error, if any, that ended iteration early.
	Err() error
}

// DocumentStream is a forward-only stream of structured documents.
type DocumentStream interface {
	// Next advances to the next document, reporting false at the end.
	Next() bool

	// Document returns the current document.
	Document() json.RawMessage

	// Close releases the stream.
	Close() error

	// Err returns the error, if any, that ended iteration early.
	Err() error
}

// connCloserRows closes the owning connection along with the stream.
type connCloserRows struct {
	Rows
	conn Connection
}

func (r *connCloserRows) Close() error {
	err := r.Rows.Close()
	if closeErr := r.conn.Close(); err == nil {
		err = closeErr
	}
	return err
}

// connCloserDocs is the document-stream counterpart of connCloserRows.
type connCloserDocs struct {
	DocumentStream
	conn Connection
}

func (d *connCloserDocs) Close() error {
	err := d.DocumentStream.Close()
	if closeErr := d.conn.Close(); err == nil {
		err = closeErr
	}
	return err
}
