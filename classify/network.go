package classify

import (
	"errors"

	"github.com/jonwraymond/sqlguard/failure"
)

// NetworkConnectivity recognizes exactly one failure signature: the engine
// code for a DNS "host not found" error. It backs the single-retry failover
// scope in package guard and is useless as a general classifier.
type NetworkConnectivity struct{}

// IsTransient reports whether the failure is a host-not-found error.
func (NetworkConnectivity) IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var f *failure.Failure
	if !errors.As(err, &f) {
		f = failure.Decode(err)
	}
	if f == nil {
		return false
	}

	for _, r := range f.EngineRecords() {
		if r.Code == failure.CodeHostNotFound {
			return true
		}
	}
	return false
}
