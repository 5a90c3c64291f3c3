package retry

import "sync"

// OperationKind distinguishes the operation categories that carry their own
// default policies.
type OperationKind int

const (
	// KindConnection covers opening a connection.
	KindConnection OperationKind = iota
	// KindCommand covers executing a command.
	KindCommand
)

// String returns the string representation of the kind.
func (k OperationKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Registry holds default policies keyed by operation kind.
type Registry struct {
	mu       sync.RWMutex
	defaults map[OperationKind]*Policy
}

// NewRegistry creates an empty policy registry.
func NewRegistry() *Registry {
	return &Registry{defaults: make(map[OperationKind]*Policy)}
}

// SetDefault installs the default policy for an operation kind. A nil policy
// clears the entry.
func (r *Registry) SetDefault(kind OperationKind, p *Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p == nil {
		delete(r.defaults, kind)
		return
	}
	r.defaults[kind] = p
}

// Default returns the default policy for an operation kind, falling back to
// the no-retry sentinel when none was installed.
func (r *Registry) Default(kind OperationKind) *Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.defaults[kind]; ok {
		return p
	}
	return noRetry
}

// noRetry is the shared sentinel returned for unset registry entries.
var noRetry = NoRetry()

// DefaultRegistry is the process-wide registry consulted by call sites that
// pass no explicit policy.
var DefaultRegistry = NewRegistry()
