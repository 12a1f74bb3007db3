package socket

import (
	"fmt"
	"time"
)

// Option names a socket option. Values are ints: sizes in bytes, booleans as
// 0 or 1, linger in seconds (-1 when off) and the read timeout in
// milliseconds (0 for none).
type Option int

const (
	OptReceiveBufferSize Option = iota + 1
	OptSendBufferSize
	OptLinger
	OptKeepAlive
	OptReuseAddress
	OptNoDelay
	OptTrafficClass
	OptOOBInline
	OptTimeout
)

func (o Option) String() string {
	switch o {
	case OptReceiveBufferSize:
		return "receive buffer size"
	case OptSendBufferSize:
		return "send buffer size"
	case OptLinger:
		return "linger"
	case OptKeepAlive:
		return "keep-alive"
	case OptReuseAddress:
		return "reuse address"
	case OptNoDelay:
		return "no delay"
	case OptTrafficClass:
		return "traffic class"
	case OptOOBInline:
		return "oob inline"
	case OptTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("option(%d)", int(o))
	}
}

const maxLinger = 65535

// validate checks a value and returns the form handed to the Impl.
func validate(opt Option, value int) (int, error) {
	switch opt {
	case OptReceiveBufferSize, OptSendBufferSize:
		if value <= 0 {
			return 0, argError(opt.String(), value, "must be positive")
		}
	case OptLinger:
		if value < 0 {
			return -1, nil
		}
		return min(value, maxLinger), nil
	case OptKeepAlive, OptReuseAddress, OptNoDelay, OptOOBInline:
		if value != 0 {
			return 1, nil
		}
	case OptTrafficClass:
		if value < 0 || value > 255 {
			return 0, argError(opt.String(), value, "must be within 0-255")
		}
	case OptTimeout:
		if value < 0 {
			return 0, argError(opt.String(), value, "must not be negative")
		}
	default:
		return 0, argError("option", opt, "unknown")
	}
	return value, nil
}

func boolValue(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Options is a set of option values applied together with Socket.Apply.
// Zero numeric fields leave the current value untouched.
type Options struct {
	ReceiveBufferSize int
	SendBufferSize    int
	TrafficClass      int

	// Linger enables SO_LINGER with the given duration, rounded down to
	// seconds.
	Linger time.Duration

	// ReadTimeout bounds every Read.
	ReadTimeout time.Duration

	KeepAlive    bool
	ReuseAddress bool
	NoDelay      bool
	OOBInline    bool
}

// DefaultOptions returns the options used by clients: no Nagle delay and
// TCP keep-alive probes.
func DefaultOptions() Options {
	return Options{NoDelay: true, KeepAlive: true}
}
