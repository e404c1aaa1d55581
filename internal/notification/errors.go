package notification

import "fmt"

// LookupError reports that the recipient query failed.
type LookupError struct {
	Err error
}

func (e *LookupError) Error() string { return fmt.Sprintf("recipient lookup: %v", e.Err) }
func (e *LookupError) Unwrap() error { return e.Err }

// DispatchError aborts a whole dispatch. It wraps a *credential.AuthError or
// a *LookupError; per-recipient failures never produce one.
type DispatchError struct {
	DispatchID string
	Err        error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.DispatchID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
