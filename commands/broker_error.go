package commands

import (
	"fmt"
	"strings"
)

// StackTraceElement is one frame of a broker-side stack trace.
type StackTraceElement struct {
	ClassName  string
	MethodName string
	FileName   string
	LineNumber int32
}

// BrokerError is the exception carried by an ExceptionResponse.
// StackTrace and Cause are only transmitted when stack traces are negotiated.
type BrokerError struct {
	ExceptionClass string
	Message        string
	StackTrace     []StackTraceElement
	Cause          *BrokerError
}

func (e *BrokerError) Error() string {
	if e.ExceptionClass == "" {
		return e.Message
	}
	return e.ExceptionClass + ": " + e.Message
}

// Clone deep-copies the error and its cause chain. Nil-safe.
func (e *BrokerError) Clone() *BrokerError {
	if e == nil {
		return nil
	}
	cp := *e
	if e.StackTrace != nil {
		cp.StackTrace = append([]StackTraceElement(nil), e.StackTrace...)
	}
	cp.Cause = e.Cause.Clone()
	return &cp
}

// Equal compares two errors including stack trace and cause. Nil-safe.
func (e *BrokerError) Equal(o *BrokerError) bool {
	if e == nil || o == nil {
		return e == nil && o == nil
	}
	if e.ExceptionClass != o.ExceptionClass || e.Message != o.Message || len(e.StackTrace) != len(o.StackTrace) {
		return false
	}
	for i := range e.StackTrace {
		if e.StackTrace[i] != o.StackTrace[i] {
			return false
		}
	}
	return e.Cause.Equal(o.Cause)
}

func (e *BrokerError) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "BrokerError{exceptionClass=%q, message=%q", e.ExceptionClass, e.Message)
	if len(e.StackTrace) > 0 {
		fmt.Fprintf(&b, ", stackTrace=[%d frames]", len(e.StackTrace))
	}
	if e.Cause != nil {
		b.WriteString(", cause=")
		b.WriteString(e.Cause.String())
	}
	b.WriteByte('}')
	return b.String()
}
