package openwire

import (
	"context"
	"errors"
	"fmt"

	"github.com/pior/openwire/commands"
	"github.com/pior/openwire/socket"
	"github.com/pior/openwire/wire"
)

var (
	// ErrClosed is returned by operations on a closed transport, pool or client.
	ErrClosed = errors.New("openwire: closed")

	// ErrTimeout is returned when a request's response does not arrive in time.
	ErrTimeout = errors.New("openwire: request timed out")

	// ErrUnsupported is returned by transports that cannot perform an
	// operation, such as Request on a transport without correlation. Callers
	// may fall back to Oneway.
	ErrUnsupported = errors.New("openwire: operation not supported by transport")

	ErrNoBrokers = errors.New("openwire: no brokers available")

	// ErrNotOpen is returned by Send on a connection without a producer.
	ErrNotOpen = errors.New("openwire: connection has no producer")

	// ErrBrokerShutdown is recorded when the broker announces a shutdown.
	ErrBrokerShutdown = errors.New("openwire: broker shut down")
)

// SendError reports a command that could not be delivered.
//
// Connection handling: CLOSE unless the cause says otherwise.
type SendError struct {
	Op  string
	Err error
}

func (e *SendError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("openwire: %s failed", e.Op)
	}
	return fmt.Sprintf("openwire: %s failed: %v", e.Op, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

func (e *SendError) ShouldCloseConnection() bool {
	if e.Err == nil {
		return true
	}
	return ShouldCloseConnection(e.Err)
}

// ShouldCloseConnection reports whether err leaves a connection unusable.
// Timeouts, broker-side exceptions and context cancellation keep it; codec
// and I/O failures do not.
func ShouldCloseConnection(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrUnsupported), errors.Is(err, ErrNotOpen):
		return false
	case isBrokerError(err), isContextError(err), isEncodingError(err):
		return false
	}

	var state wire.ErrorWithConnectionState
	if errors.As(err, &state) {
		return state.ShouldCloseConnection()
	}
	var argErr *socket.ArgumentError
	if errors.As(err, &argErr) {
		return false
	}
	return true
}

func isBrokerError(err error) bool {
	var be *commands.BrokerError
	return errors.As(err, &be)
}

// isEncodingError reports errors raised before anything was written.
func isEncodingError(err error) bool {
	return errors.Is(err, wire.ErrFrameTooLarge) || errors.Is(err, wire.ErrNilCommand) || errors.Is(err, wire.ErrUnknownType)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ResponseError returns the broker exception carried by resp, or nil.
func ResponseError(resp commands.ResponseCommand) error {
	if er, ok := resp.(*commands.ExceptionResponse); ok {
		if er.Exception != nil {
			return er.Exception
		}
		return &commands.BrokerError{Message: "exception response without exception"}
	}
	return nil
}
