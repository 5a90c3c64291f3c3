package classify

import (
	"errors"
	"strings"

	"github.com/jonwraymond/sqlguard/failure"
)

// Transient recognizes failures that are worth retrying. The zero value is
// ready to use.
type Transient struct{}

// Engine codes that always classify as transient.
var transientCodes = map[int]struct{}{
	// Cannot open database requested by the login
	4060: {},
	// The resource limit for the current session has been reached
	10928: {},
	// The server is busy; minimum guarantee temporarily unavailable
	10929: {},
	// A transport-level error: established connection aborted
	10053: {},
	// A transport-level error: existing connection forcibly closed
	10054: {},
	// A connection attempt failed to respond in time
	10060: {},
	// The service encountered an error processing the request
	40197: {},
	// The service is currently busy
	40540: {},
	// The database is not currently available
	40613: {},
	// The server is too busy; failover in progress
	40143: {},
	// The connection was broken on the shared-memory transport
	failure.CodeTransportBroken: {},
	// The wait operation timed out at the winsock level
	64: {},
	// The instance does not support encryption (driver-level)
	failure.CodeEncryptionNotSupported: {},
}

// IsTransient reports whether the failure is likely to clear on retry.
//
// Engine records are evaluated in order against the rule table: throttling
// first, then the decisive code-0 conjunction, then the fixed transient-code
// table. A code-0 record that misses the conjunction ends classification for
// the whole failure. When no record matches, timeout signals classify as
// transient and wrapped causes are classified recursively.
//
// Recognizing throttling has one side effect: the decoded condition is
// attached to the failure's metadata under KeyThrottlingMode and
// KeyThrottlingCondition.
func (Transient) IsTransient(err error) bool {
	if err == nil {
		return false
	}

	f := asFailure(err)
	if f == nil {
		return false
	}

	for _, r := range f.EngineRecords() {
		switch {
		case r.Code == failure.CodeThrottling:
			cond := DecodeThrottling(r.Message)
			f.Set(KeyThrottlingMode, cond.Mode)
			f.Set(KeyThrottlingCondition, cond)
			return true

		case r.Code == 0:
			// Code 0 is decisive either way: no further records are examined.
			return isSevereZero(f, r)

		default:
			if _, ok := transientCodes[r.Code]; ok {
				return true
			}
		}
	}

	if f.Kind == failure.KindTimeout {
		return true
	}

	// Recurse into a wrapped cause. A cause that never crossed the decode
	// boundary is decoded once first; when that yields another opaque
	// wrapper, classification stops, since re-decoding it would never settle.
	if f.Inner != nil {
		var inner *failure.Failure
		if !errors.As(f.Inner, &inner) {
			inner = failure.Decode(f.Inner)
			if inner.Kind == failure.KindUnknown {
				return false
			}
		}
		return Transient{}.IsTransient(inner)
	}

	return false
}

// isSevereZero is the ambiguous code-0 rule: transient only when the record
// reports a severe connection-level failure in exactly the shape the engine
// uses for one, with nothing else chained underneath.
func isSevereZero(f, r *failure.Failure) bool {
	if r.Class != 20 && r.Class != 11 {
		return false
	}
	if r.State != 0 {
		return false
	}
	if r.Server == "" {
		return false
	}
	if f.Inner != nil {
		return false
	}
	return strings.EqualFold(r.Message, SevereErrorMessage())
}

// asFailure resolves err to the Failure model, decoding at most once for
// errors that never crossed the driver boundary.
func asFailure(err error) *failure.Failure {
	var f *failure.Failure
	if errors.As(err, &f) {
		return f
	}
	return failure.Decode(err)
}
