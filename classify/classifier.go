package classify

// Classifier decides whether a failure is worth retrying.
//
// Contract:
// - Errors: implementations must not panic and must classify nil as false.
// - Concurrency: implementations must be safe for concurrent use.
type Classifier interface {
	// IsTransient reports whether the error is likely to clear on retry.
	IsTransient(err error) bool
}

// Func is an adapter to allow ordinary functions to be used as Classifiers.
type Func func(err error) bool

// IsTransient calls the underlying function.
func (f Func) IsTransient(err error) bool {
	return f(err)
}
