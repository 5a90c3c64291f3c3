// Package retry provides the classifier-driven retry policies that govern
// guarded database operations.
//
// A Policy owns an attempt budget, a backoff schedule, and a Classifier. Its
// Execute method re-invokes the operation while the classifier marks the
// returned error transient and attempts remain; when the budget is exhausted
// or the classifier says permanent, the last error is returned unchanged.
//
//	policy := retry.NewPolicy(retry.Config{
//	    MaxAttempts:  5,
//	    InitialDelay: 100 * time.Millisecond,
//	    MaxDelay:     5 * time.Second,
//	    Classifier:   classify.Transient{},
//	})
//
//	err := policy.Execute(ctx, func(ctx context.Context) error {
//	    return performQuery(ctx)
//	})
//
// ExecuteAction is the typed form for operations that produce a value.
//
// # Defaults
//
// A process-wide Registry holds default policies keyed by operation kind
// (connection open versus command execution), so call sites that pass no
// policy pick up a coherent configuration. NoRetry returns the sentinel
// policy with a single attempt for callers that want the guarded execution
// plumbing without retries.
//
// Delays between attempts block the calling goroutine, honoring context
// cancellation.
package retry
