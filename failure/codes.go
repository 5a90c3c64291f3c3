package failure

// Engine error codes with reserved meaning across the sqlguard packages.
// The transient subset lives in package classify; the codes named here are
// the ones other components key decisions on.
const (
	// CodeThrottling is the engine error raised when the service rejects a
	// request because a resource is under pressure. Its message embeds a
	// machine-readable reason code (see classify.DecodeThrottling).
	CodeThrottling = 40501

	// CodeHostNotFound is the engine-level code for a DNS "host not found"
	// failure. DNS resolution errors observed at the transport boundary are
	// decoded to this code.
	CodeHostNotFound = 11001

	// CodeTransportBroken is the engine-level code for a connection that was
	// forcibly closed by the transport.
	CodeTransportBroken = 233

	// CodeConnectionReset is the code for a connection reset by the peer.
	CodeConnectionReset = 10054

	// CodeEncryptionNotSupported is the driver-level code reported when the
	// server does not support the requested encryption.
	CodeEncryptionNotSupported = 20
)
