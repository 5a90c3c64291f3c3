package classify

import (
	"fmt"
	"regexp"
	"strconv"
)

// Metadata keys under which the classifier attaches decoded throttling
// information to a Failure. Keyed by type name so application code can
// recover the values after retries are exhausted.
const (
	KeyThrottlingMode      = "classify.ThrottlingMode"
	KeyThrottlingCondition = "classify.ThrottlingCondition"
)

// ThrottlingMode enumerates how aggressively the service is rejecting
// requests while a resource is under pressure.
type ThrottlingMode int

const (
	// ModeUnknown means the throttling message could not be decoded.
	ModeUnknown ThrottlingMode = iota - 1
	// ModeNone means no requests are being rejected.
	ModeNone
	// ModeRejectUpdateInsert means updates and inserts are rejected.
	ModeRejectUpdateInsert
	// ModeRejectAllWrites means all write operations are rejected.
	ModeRejectAllWrites
	// ModeRejectAll means all operations are rejected.
	ModeRejectAll
)

// String returns the string representation of the mode.
func (m ThrottlingMode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeRejectUpdateInsert:
		return "reject-update-insert"
	case ModeRejectAllWrites:
		return "reject-all-writes"
	case ModeRejectAll:
		return "reject-all"
	default:
		return "unknown"
	}
}

// ThrottlingCondition is the decoded reason a throttling error was raised.
// Immutable once constructed.
type ThrottlingCondition struct {
	// Mode is the rejection mode, taken from the reason code's two
	// low-order bits.
	Mode ThrottlingMode

	// Code is the raw reason code embedded in the error message, or -1
	// when the message could not be decoded.
	Code int
}

// String returns a readable form of the condition.
func (c ThrottlingCondition) String() string {
	return fmt.Sprintf("throttling mode %s (code %d)", c.Mode, c.Code)
}

// Matches "Code: NNN" fragments in the engine's throttling message.
var throttlingCodeRe = regexp.MustCompile(`Code:\s*(\d+)`)

// DecodeThrottling parses the reason code embedded in a throttling error's
// message text. Messages that carry no recognizable code decode to the
// unknown condition rather than an error; the classifier must never fail.
func DecodeThrottling(message string) ThrottlingCondition {
	m := throttlingCodeRe.FindStringSubmatch(message)
	if m == nil {
		return ThrottlingCondition{Mode: ModeUnknown, Code: -1}
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return ThrottlingCondition{Mode: ModeUnknown, Code: -1}
	}
	return ThrottlingCondition{Mode: ThrottlingMode(code & 3), Code: code}
}
