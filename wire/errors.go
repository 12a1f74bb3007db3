package wire

import (
	"errors"
	"fmt"
)

// Error types for codec operations.
// Each tells the transport whether the byte stream is still usable.

// MalformedFrameError reports a frame whose content cannot be decoded:
// an unknown type id, an invalid cache back-reference, an oversized frame or
// trailing bytes after the payload.
//
// Connection handling: CLOSE unless Recoverable. A frame is recoverable only
// when it was size-prefixed and fully consumed, so the next frame boundary is
// known.
type MalformedFrameError struct {
	Reason      string
	Recoverable bool
}

func (e *MalformedFrameError) Error() string {
	return "wire: malformed frame: " + e.Reason
}

func (e *MalformedFrameError) ShouldCloseConnection() bool {
	return !e.Recoverable
}

// TruncatedFrameError reports a stream that ended inside a frame.
//
// Connection handling: CLOSE
type TruncatedFrameError struct {
	Err error
}

func (e *TruncatedFrameError) Error() string {
	if e.Err != nil {
		return "wire: truncated frame: " + e.Err.Error()
	}
	return "wire: truncated frame"
}

func (e *TruncatedFrameError) Unwrap() error {
	return e.Err
}

func (e *TruncatedFrameError) ShouldCloseConnection() bool {
	return true
}

// ProtocolViolationError reports flag bits that disagree with the payload,
// such as reading past the written flags or leaving flags unread.
//
// Connection handling: CLOSE
type ProtocolViolationError struct {
	Reason string
}

func (e *ProtocolViolationError) Error() string {
	return "wire: protocol violation: " + e.Reason
}

func (e *ProtocolViolationError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by all codec errors.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err leaves the stream unusable.
// Unknown errors are treated as fatal.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}

func malformed(format string, args ...any) error {
	return &MalformedFrameError{Reason: fmt.Sprintf(format, args...)}
}

func violation(format string, args ...any) error {
	return &ProtocolViolationError{Reason: fmt.Sprintf(format, args...)}
}

// ErrUnknownType is wrapped by errors about type ids missing from the registry.
var ErrUnknownType = errors.New("wire: unknown data structure type")
