package entry

import "fmt"

// UnreachableError reports a network or transport failure loading a
// remote's entry or one of its module payloads. Recoverable: callers may
// retry or surface a fallback.
type UnreachableError struct {
	Remote   string
	Location string
	Status   int // HTTP status when the server answered, 0 otherwise
	Err      error
}

// Error returns the message.
func (e *UnreachableError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote %q unreachable: %s returned status %d", e.Remote, e.Location, e.Status)
	}
	return fmt.Sprintf("remote %q unreachable: %s: %v", e.Remote, e.Location, e.Err)
}

// Unwrap returns the underlying cause.
func (e *UnreachableError) Unwrap() error { return e.Err }

// MalformedError reports an entry that loaded but is missing required
// structure. Fatal for that remote only; other remotes are unaffected.
type MalformedError struct {
	Remote string
	Reason string
	Err    error
}

// Error returns the message.
func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote %q entry malformed: %s: %v", e.Remote, e.Reason, e.Err)
	}
	return fmt.Sprintf("remote %q entry malformed: %s", e.Remote, e.Reason)
}

// Unwrap returns the underlying cause.
func (e *MalformedError) Unwrap() error { return e.Err }
