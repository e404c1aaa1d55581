package fcm

import (
	"errors"
	"fmt"
)

// DefaultSound is the platform default notification sound.
const DefaultSound = "default"

// Message is one push addressed to a single device token.
type Message struct {
	Token string
	Title string
	Body  string
	Sound string
	// Data values must be strings; FCM v1 rejects other JSON types.
	Data map[string]string
}

// SendError reports a failed push to one device. It never aborts a batch.
type SendError struct {
	Token      string
	StatusCode int    // HTTP status, 0 for transport errors
	ErrorCode  string // FCM error code such as UNREGISTERED
	Body       string
	Err        error
}

func (e *SendError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fcm send: status %d %s: %s", e.StatusCode, e.ErrorCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("fcm send: %v", e.Err)
	default:
		return "fcm send failed"
	}
}

func (e *SendError) Unwrap() error { return e.Err }

// Unregistered reports whether the gateway says the token no longer
// belongs to an installed app.
func (e *SendError) Unregistered() bool {
	return e.StatusCode == 404 || e.ErrorCode == "UNREGISTERED"
}

// IsUnregistered reports whether err is a SendError for a stale token.
func IsUnregistered(err error) bool {
	var sendErr *SendError
	return errors.As(err, &sendErr) && sendErr.Unregistered()
}
