// Package guard wraps a failure-prone database endpoint with retry-aware,
// lifecycle-correct execution.
//
// GuardedConn owns a single connection handle and two retry policies: one
// governing connection opens, one governing command execution. Every
// operation runs inside two nested retry scopes. The outer scope is the
// caller's policy, typically classified by classify.Transient. The inner
// scope is a fixed single-retry failover policy classified by
// classify.NetworkConnectivity, which quickly re-attempts once after a DNS
// "host not found" failure before the outer scope's budget is consulted.
//
//	conn, err := guard.New(guard.Config{
//	    ConnectionString: dsn,
//	    ConnectionPolicy: connPolicy,
//	    CommandPolicy:    cmdPolicy,
//	})
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	cmd := conn.CreateCommand("UPDATE accounts SET active = true WHERE id = $1", id)
//	affected, err := conn.ExecuteRowCount(ctx, cmd)
//
// # Connection lifecycle
//
// When a command arrives without an open connection, GuardedConn opens its
// handle for the duration of the call and records that it did so. The handle
// stays open across retry attempts; the close decision is evaluated once per
// call, after the retry scopes settle. Row-count and scalar shapes close the
// handle after success; streaming shapes leave it open because the returned
// stream owns the connection's lifetime. When the call ultimately fails, a
// handle it opened is closed before the failure propagates, and a failed
// close never masks the original error.
//
// # Drivers
//
// The Connection and Command interfaces describe the capability set guard
// requires; NewSQLConnection provides the database/sql implementation backed
// by the lib/pq driver. Document streaming is an optional capability: a
// Command that implements DocumentStreamer can serve the document shape,
// anything else fails the request as unsupported, never as transient.
//
// A GuardedConn is not safe for concurrent use. Its handle is shared mutable
// state; callers running commands from multiple goroutines must serialize.
package guard
