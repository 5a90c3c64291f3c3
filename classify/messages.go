package classify

// Message resources referenced by the classification rules. Kept behind a
// lookup so the sentinel text lives in exactly one place.

const severeErrorMessage = "A severe error occurred on the current command. The results, if any, should be discarded."

// SevereErrorMessage returns the sentinel text the engine emits for a severe
// connection-level error reported with code 0. The code-0 rule compares
// against it case-insensitively.
func SevereErrorMessage() string {
	return severeErrorMessage
}
