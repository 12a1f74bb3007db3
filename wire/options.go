package wire

import (
	"fmt"
	"time"
)

// Supported protocol versions.
const (
	MinVersion     int32 = 1
	MaxVersion     int32 = 3
	DefaultVersion int32 = 2
)

const (
	// DefaultMaxFrameSize bounds incoming frames.
	DefaultMaxFrameSize = 100 << 20

	// DefaultCacheSize is the number of identity cache slots per frame.
	DefaultCacheSize = 1024

	// maxCacheIndex is the largest back-reference index accepted on the wire.
	maxCacheIndex = 16383
)

// Options configures a Format.
type Options struct {
	Version       int32
	TightEncoding bool
	SizePrefix    bool
	CacheEnabled  bool
	CacheSize     int
	StackTrace    bool
	TCPNoDelay    bool

	MaxInactivityDuration     time.Duration
	MaxInactivityInitialDelay time.Duration

	// MaxFrameSize bounds the size of a single frame in bytes.
	// Zero means DefaultMaxFrameSize.
	MaxFrameSize int
}

// DefaultOptions returns the options a client advertises during negotiation.
func DefaultOptions() Options {
	return Options{
		Version:                   DefaultVersion,
		TightEncoding:             true,
		SizePrefix:                true,
		CacheEnabled:              true,
		CacheSize:                 DefaultCacheSize,
		StackTrace:                true,
		TCPNoDelay:                true,
		MaxInactivityDuration:     30 * time.Second,
		MaxInactivityInitialDelay: 10 * time.Second,
		MaxFrameSize:              DefaultMaxFrameSize,
	}
}

// Baseline returns the encoding used before negotiation completes: loose,
// size-prefixed, no cache and no stack traces.
func (o Options) Baseline() Options {
	o.TightEncoding = false
	o.SizePrefix = true
	o.CacheEnabled = false
	o.StackTrace = false
	return o
}

func (o Options) validate() error {
	if o.Version < MinVersion || o.Version > MaxVersion {
		return fmt.Errorf("wire: unsupported protocol version %d", o.Version)
	}
	if o.CacheSize < 0 {
		return fmt.Errorf("wire: negative cache size %d", o.CacheSize)
	}
	if o.MaxFrameSize < 0 {
		return fmt.Errorf("wire: negative max frame size %d", o.MaxFrameSize)
	}
	return nil
}

func (o Options) maxFrameSize() int {
	if o.MaxFrameSize == 0 {
		return DefaultMaxFrameSize
	}
	return o.MaxFrameSize
}

func (o Options) cacheSlots() int {
	if !o.TightEncoding || !o.CacheEnabled {
		return 0
	}
	return min(o.CacheSize, maxCacheIndex+1)
}
