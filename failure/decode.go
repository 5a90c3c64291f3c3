package failure

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strconv"
	"syscall"

	"github.com/lib/pq"
)

// Decode converts an arbitrary error into a Failure. It is the single point
// where concrete driver and transport error types are examined; callers see
// only the tagged Failure model afterwards. A nil error decodes to nil, and
// an error that already is (or wraps) a Failure passes through unchanged.
func Decode(err error) *Failure {
	if err == nil {
		return nil
	}

	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return decodePQ(pqErr)
	}

	// Only a definitive host-not-found answer carries the connectivity code;
	// a DNS timeout is still a timeout and falls through to those branches.
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return NewEngine(CodeHostNotFound, 0, 0, dnsErr.Server, dnsErr.Error())
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeout("operation deadline exceeded", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeout("network timeout", err)
	}

	if errors.Is(err, driver.ErrBadConn) {
		return NewEngine(CodeTransportBroken, 0, 0, "", err.Error())
	}

	if errors.Is(err, syscall.ECONNRESET) {
		return NewEngine(CodeConnectionReset, 0, 0, "", err.Error())
	}

	return Wrap("database operation failed", err)
}

// decodePQ maps a lib/pq engine error onto a Failure record. SQLSTATE values
// are five characters; the all-digit ones carry over as the engine code,
// anything else (for example 57P01) has no numeric equivalent and the record
// keeps code 0, which the classifier treats as decisively non-transient
// unless the severe-error conjunction holds.
func decodePQ(err *pq.Error) *Failure {
	code := 0
	if n, convErr := strconv.Atoi(string(err.Code)); convErr == nil {
		code = n
	}

	class := 0
	switch err.Severity {
	case "FATAL":
		class = 20
	case "PANIC":
		class = 24
	case "ERROR":
		class = 16
	case "WARNING":
		class = 10
	}

	return NewEngine(code, class, 0, "", err.Message)
}
