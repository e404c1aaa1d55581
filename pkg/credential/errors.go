package credential

import "fmt"

// AuthError reports a failure to sign an assertion or to exchange it for an
// access token. It is never retried automatically.
type AuthError struct {
	Op         string // "parse_key", "sign", "exchange", "decode"
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("auth %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("auth %s failed", e.Op)
	}
}

func (e *AuthError) Unwrap() error { return e.Err }
