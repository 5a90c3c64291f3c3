// Package classify decides whether a database failure is transient.
//
// A transient failure is one the caller can safely retry: the connection was
// dropped mid-flight, the service is momentarily throttling, a failover is in
// progress. A permanent failure must surface immediately: a syntax error, a
// missing table, a rejected login. The classifiers here make that call; the
// retry engine in package retry consults them between attempts.
//
// # Classifiers
//
// Transient is the general-purpose classifier. It evaluates each engine
// record of a Failure against an ordered rule table: the throttling code, the
// ambiguous code-0 conjunction, the fixed table of known transient codes,
// then timeout signals and wrapped causes. When it recognizes throttling it
// also decodes the embedded reason code and attaches the resulting
// ThrottlingCondition to the Failure's metadata so callers can recover it
// without re-parsing the message.
//
// NetworkConnectivity is deliberately narrow: it recognizes only the DNS
// "host not found" code and nothing else. It exists for the single-retry
// failover scope that package guard nests inside every operation.
//
//	var transient classify.Transient
//	if transient.IsTransient(err) {
//	    // safe to retry
//	}
//
// Classifiers never return errors and never panic; a nil error classifies as
// non-transient.
package classify
