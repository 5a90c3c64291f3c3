package failure

import (
	"fmt"
	"strings"
)

// Kind tags the broad category of a Failure.
type Kind int

const (
	// KindUnknown is an error the boundary decoder could not categorize.
	KindUnknown Kind = iota
	// KindEngine is an error reported by the database engine with a numeric code.
	KindEngine
	// KindTimeout is a timeout signal distinct from any engine error.
	KindTimeout
	// KindUnsupported is a request for a capability the driver does not provide.
	KindUnsupported
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindEngine:
		return "engine"
	case KindTimeout:
		return "timeout"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Failure is the error value observed by the classifiers. One driver
// exception may bundle several engine records; Records holds them in order.
// The zero value is usable but carries no signal.
//
// Contract:
// - Ownership: a Failure is built once at the boundary and not mutated after,
//   with the exception of the metadata map which classifiers may write to.
// - Concurrency: not safe for concurrent mutation of the metadata map.
type Failure struct {
	// Kind is the broad category tag.
	Kind Kind

	// Code is the engine error number, meaningful when Kind is KindEngine.
	Code int

	// Class is the engine severity class.
	Class int

	// State is the engine state code.
	State int

	// Server identifies the server that produced the error, when known.
	Server string

	// Message is the error text.
	Message string

	// Inner is the wrapped cause, if this Failure decorates another error.
	Inner error

	// Records are the bundled sub-errors from a single driver exception.
	// When empty, the Failure itself is the only record.
	Records []*Failure

	data map[string]any
}

// NewEngine creates an engine Failure from its record fields.
func NewEngine(code, class, state int, server, message string) *Failure {
	return &Failure{
		Kind:    KindEngine,
		Code:    code,
		Class:   class,
		State:   state,
		Server:  server,
		Message: message,
	}
}

// NewTimeout creates a timeout Failure wrapping the originating error.
func NewTimeout(message string, inner error) *Failure {
	return &Failure{Kind: KindTimeout, Message: message, Inner: inner}
}

// NewUnsupported creates a Failure for a capability the driver lacks.
func NewUnsupported(message string) *Failure {
	return &Failure{Kind: KindUnsupported, Message: message}
}

// Wrap creates an unknown-kind Failure decorating an underlying cause.
func Wrap(message string, inner error) *Failure {
	return &Failure{Kind: KindUnknown, Message: message, Inner: inner}
}

// Error implements the error interface.
func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString("sqlguard: ")
	b.WriteString(f.Kind.String())
	if f.Kind == KindEngine {
		fmt.Fprintf(&b, " error %d", f.Code)
	}
	if f.Message != "" {
		b.WriteString(": ")
		b.WriteString(f.Message)
	}
	if f.Inner != nil {
		b.WriteString(": ")
		b.WriteString(f.Inner.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped cause, if any.
func (f *Failure) Unwrap() error {
	return f.Inner
}

// EngineRecords returns the bundled sub-records, or the Failure itself as a
// single record when none were bundled. Only engine records participate.
func (f *Failure) EngineRecords() []*Failure {
	if len(f.Records) > 0 {
		return f.Records
	}
	if f.Kind == KindEngine {
		return []*Failure{f}
	}
	return nil
}

// Set stores a metadata entry on the Failure. The map is allocated lazily.
func (f *Failure) Set(key string, value any) {
	if f.data == nil {
		f.data = make(map[string]any)
	}
	f.data[key] = value
}

// Get reads a metadata entry previously stored with Set.
func (f *Failure) Get(key string) (any, bool) {
	v, ok := f.data[key]
	return v, ok
}
