// Package failure defines the error model shared by the sqlguard packages.
//
// A database operation can fail in many shapes: an engine error carrying a
// numeric code, a transport timeout, a DNS lookup miss, or an opaque driver
// error. This package collapses all of them into a single tagged value, the
// Failure, which is decoded exactly once at the driver boundary and then
// inspected structurally by the classifiers in package classify.
//
// # The Failure value
//
// A Failure carries a Kind tag, the engine error number, severity class,
// state, originating server, the raw message, an optional wrapped cause, and
// the bundled sub-records a single driver exception may contain. It also owns
// a small metadata map that classifiers use as a side channel, for example to
// attach a decoded throttling condition.
//
//	var f *failure.Failure
//	if errors.As(err, &f) {
//	    if cond, ok := f.Get(classify.KeyThrottlingCondition); ok {
//	        // inspect the throttling condition
//	    }
//	}
//
// # Boundary decoding
//
// Decode converts an arbitrary error into a Failure. Driver integrations call
// it at the point where the underlying error is first observed so that the
// rest of the system never pattern-matches on concrete driver types:
//
//	rows, err := db.QueryContext(ctx, query)
//	if err != nil {
//	    return nil, failure.Decode(err)
//	}
//
// Decode recognizes lib/pq engine errors, DNS resolution misses, transport
// timeouts, and bad-connection signals; everything else becomes an Unknown
// Failure wrapping the original error.
package failure
