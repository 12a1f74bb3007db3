package socket

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrClosed is returned by every operation on a closed socket.
	ErrClosed = errors.New("socket: closed")

	ErrAlreadyBound     = errors.New("socket: already bound")
	ErrAlreadyConnected = errors.New("socket: already connected")
	ErrNotConnected     = errors.New("socket: not connected")
	ErrInputShutdown    = errors.New("socket: input already shut down")
	ErrOutputShutdown   = errors.New("socket: output already shut down")
)

// ArgumentError reports an invalid argument. It is returned before the
// underlying implementation is touched, and the socket state is unchanged.
type ArgumentError struct {
	Arg    string
	Value  any
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("socket: invalid %s %v: %s", e.Arg, e.Value, e.Reason)
}

// TimeoutError is returned when a connect or a read does not complete in time.
type TimeoutError struct {
	Op    string
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("socket: %s timed out after %s", e.Op, e.After)
	}
	return fmt.Sprintf("socket: %s timed out", e.Op)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Timeout implements net.Error.
func (e *TimeoutError) Timeout() bool { return true }

// Temporary implements net.Error.
func (e *TimeoutError) Temporary() bool { return true }

func argError(arg string, value any, reason string) error {
	return &ArgumentError{Arg: arg, Value: value, Reason: reason}
}
