package guard

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	// Registers the postgres driver backing sqlConn.
	_ "github.com/lib/pq"

	"github.com/jonwraymond/sqlguard/failure"
)

const (
	sqlDriverName     = "postgres"
	defaultSQLTimeout = 30 * time.Second
)

// sqlConn implements Connection over database/sql with the lib/pq driver.
// All driver errors cross failure.Decode exactly once on their way out.
type sqlConn struct {
	dsn     string
	db      *sql.DB
	timeout time.Duration
}

// NewSQLConnection creates a closed connection handle for the given
// connection string. Both URL ("postgres://...") and key=value DSN forms are
// accepted.
func NewSQLConnection(dsn string) Connection {
	return &sqlConn{dsn: dsn, timeout: defaultSQLTimeout}
}

func (c *sqlConn) Open(ctx context.Context) error {
	if c.db != nil {
		return ErrConnectionOpen
	}

	db, err := sql.Open(sqlDriverName, c.dsn)
	if err != nil {
		return failure.Decode(err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return failure.Decode(err)
	}

	c.db = db
	return nil
}

func (c *sqlConn) Close() error {
	if c.db == nil {
		return nil
	}
	db := c.db
	c.db = nil
	if err := db.Close(); err != nil {
		return failure.Decode(err)
	}
	return nil
}

func (c *sqlConn) State() ConnState {
	if c.db != nil {
		return StateOpen
	}
	return StateClosed
}

// ChangeDatabase rewrites the database name in the connection string.
// database/sql has no in-place switch, so an open handle is closed and
// reopened against the new database.
func (c *sqlConn) ChangeDatabase(ctx context.Context, name string) error {
	dsn, err := rewriteDatabase(c.dsn, name)
	if err != nil {
		return err
	}

	wasOpen := c.db != nil
	if wasOpen {
		if err := c.Close(); err != nil {
			return err
		}
	}
	c.dsn = dsn
	if wasOpen {
		return c.Open(ctx)
	}
	return nil
}

func (c *sqlConn) CreateCommand(text string, args ...any) Command {
	return &sqlCommand{conn: c, text: text, args: args}
}

func (c *sqlConn) ConnectionString() string {
	return c.dsn
}

func (c *sqlConn) SetConnectionString(dsn string) {
	c.dsn = dsn
}

func (c *sqlConn) Timeout() time.Duration {
	return c.timeout
}

// rewriteDatabase swaps the database name in a URL or key=value DSN.
func rewriteDatabase(dsn, name string) (string, error) {
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", failure.Wrap("invalid connection string", err)
		}
		u.Path = "/" + name
		return u.String(), nil
	}

	parts := strings.Fields(dsn)
	replaced := false
	for i, p := range parts {
		if strings.HasPrefix(p, "dbname=") {
			parts[i] = "dbname=" + name
			replaced = true
		}
	}
	if !replaced {
		parts = append(parts, "dbname="+name)
	}
	return strings.Join(parts, " "), nil
}

// sqlCommand implements Command and DocumentStreamer for sqlConn.
type sqlCommand struct {
	conn Connection
	text string
	args []any
}

func (m *sqlCommand) CommandText() string {
	return m.text
}

func (m *sqlCommand) Connection() Connection {
	return m.conn
}

func (m *sqlCommand) SetConnection(conn Connection) {
	m.conn = conn
}

// db resolves the open database handle behind the associated connection.
func (m *sqlCommand) db() (*sql.DB, time.Duration, error) {
	sc, ok := m.conn.(*sqlConn)
	if !ok || sc == nil {
		return nil, 0, ErrConnectionClosed
	}
	if sc.db == nil {
		return nil, 0, ErrConnectionClosed
	}
	return sc.db, sc.timeout, nil
}

func (m *sqlCommand) ExecuteRows(ctx context.Context, behavior Behavior) (Rows, error) {
	db, _, err := m.db()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, m.text, m.args...)
	if err != nil {
		return nil, failure.Decode(err)
	}
	return &sqlRows{rows: rows}, nil
}

func (m *sqlCommand) ExecuteNonQuery(ctx context.Context) (int64, error) {
	db, timeout, err := m.db()
	if err != nil {
		return 0, err
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := db.ExecContext(execCtx, m.text, m.args...)
	if err != nil {
		return 0, failure.Decode(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, failure.Decode(err)
	}
	return n, nil
}

func (m *sqlCommand) ExecuteScalar(ctx context.Context) (any, error) {
	db, timeout, err := m.db()
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.QueryContext(queryCtx, m.text, m.args...)
	if err != nil {
		return nil, failure.Decode(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, failure.Decode(err)
		}
		return nil, nil
	}

	var v any
	if err := rows.Scan(&v); err != nil {
		return nil, failure.Decode(err)
	}
	return v, nil
}

// ExecuteDocuments streams one JSON document per result row. The statement
// must produce a single json/jsonb column.
func (m *sqlCommand) ExecuteDocuments(ctx context.Context) (DocumentStream, error) {
	db, _, err := m.db()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, m.text, m.args...)
	if err != nil {
		return nil, failure.Decode(err)
	}
	return &sqlDocumentStream{rows: rows}, nil
}

// sqlRows adapts *sql.Rows to the Rows interface, decoding scan errors.
type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool {
	return r.rows.Next()
}

func (r *sqlRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return failure.Decode(err)
	}
	return nil
}

func (r *sqlRows) Close() error {
	if err := r.rows.Close(); err != nil {
		return failure.Decode(err)
	}
	return nil
}

func (r *sqlRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return failure.Decode(err)
	}
	return nil
}

// sqlDocumentStream adapts *sql.Rows to DocumentStream.
type sqlDocumentStream struct {
	rows    *sql.Rows
	current json.RawMessage
	err     error
}

func (d *sqlDocumentStream) Next() bool {
	if d.err != nil {
		return false
	}
	if !d.rows.Next() {
		return false
	}

	var raw []byte
	if err := d.rows.Scan(&raw); err != nil {
		d.err = failure.Decode(err)
		return false
	}
	d.current = json.RawMessage(raw)
	return true
}

func (d *sqlDocumentStream) Document() json.RawMessage {
	return d.current
}

func (d *sqlDocumentStream) Close() error {
	if err := d.rows.Close(); err != nil {
		return failure.Decode(err)
	}
	return nil
}

func (d *sqlDocumentStream) Err() error {
	if d.err != nil {
		return d.err
	}
	if err := d.rows.Err(); err != nil {
		return failure.Decode(err)
	}
	return nil
}

// Capability checks.
var (
	_ Connection       = (*sqlConn)(nil)
	_ Command          = (*sqlCommand)(nil)
	_ DocumentStreamer = (*sqlCommand)(nil)
)
