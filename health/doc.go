// Package health provides health checking for guarded database endpoints.
//
// A Checker probes one database endpoint and reports a Result with a Status
// of healthy, degraded, or unhealthy, the probed server, and the probe
// latency. DatabaseChecker issues a lightweight scalar probe through a
// guarded connection and downgrades the status when the probe is slow or
// fails.
//
//	checker := health.NewDatabaseChecker(health.DatabaseCheckerConfig{
//	    Name: "orders-db",
//	    Conn: guardedConn,
//	})
//	result := checker.Check(ctx)
//
// Handler exposes a checker over HTTP for liveness and readiness probes.
package health
