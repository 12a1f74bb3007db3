package wire

import (
	"errors"
	"fmt"
	"time"

	"github.com/pior/openwire/commands"
)

var ErrBadMagic = errors.New("wire: peer did not send the ActiveMQ magic")

// LocalInfo builds the WireFormatInfo advertising opts.
func LocalInfo(opts Options) *commands.WireFormatInfo {
	info := commands.NewWireFormatInfo(opts.Version)
	info.Set(commands.PropTightEncodingEnabled, opts.TightEncoding)
	info.Set(commands.PropSizePrefixDisabled, !opts.SizePrefix)
	info.Set(commands.PropCacheEnabled, opts.CacheEnabled)
	info.Set(commands.PropCacheSize, int32(opts.CacheSize))
	info.Set(commands.PropStackTraceEnabled, opts.StackTrace)
	info.Set(commands.PropTCPNoDelayEnabled, opts.TCPNoDelay)
	info.Set(commands.PropMaxInactivityDuration, opts.MaxInactivityDuration.Milliseconds())
	info.Set(commands.PropMaxInactivityInitialDelay, opts.MaxInactivityInitialDelay.Milliseconds())
	info.Set(commands.PropMaxFrameSize, int64(opts.maxFrameSize()))
	return info
}

// Negotiate combines the local preferences with the peer's advertisement:
// the lower version, features enabled on both sides, and the smaller limits.
// Properties the peer omits count as disabled.
func Negotiate(local Options, remote *commands.WireFormatInfo) (Options, error) {
	if remote == nil || !remote.Valid() {
		return Options{}, ErrBadMagic
	}
	if remote.Version < MinVersion {
		return Options{}, fmt.Errorf("wire: peer protocol version %d not supported", remote.Version)
	}

	out := local
	out.Version = min(local.Version, remote.Version, MaxVersion)
	out.TightEncoding = local.TightEncoding && remoteBool(remote, commands.PropTightEncodingEnabled)
	out.CacheEnabled = local.CacheEnabled && remoteBool(remote, commands.PropCacheEnabled)
	out.StackTrace = local.StackTrace && remoteBool(remote, commands.PropStackTraceEnabled)
	out.TCPNoDelay = local.TCPNoDelay && remoteBool(remote, commands.PropTCPNoDelayEnabled)
	out.SizePrefix = local.SizePrefix || !remoteBool(remote, commands.PropSizePrefixDisabled)

	if n, ok := remote.Int(commands.PropCacheSize); ok && int(n) < out.CacheSize {
		out.CacheSize = max(int(n), 0)
	}
	if n, ok := remote.Int(commands.PropMaxInactivityDuration); ok {
		out.MaxInactivityDuration = minDuration(local.MaxInactivityDuration, time.Duration(n)*time.Millisecond)
	}
	if n, ok := remote.Int(commands.PropMaxInactivityInitialDelay); ok {
		out.MaxInactivityInitialDelay = minDuration(local.MaxInactivityInitialDelay, time.Duration(n)*time.Millisecond)
	}
	if n, ok := remote.Int(commands.PropMaxFrameSize); ok && n > 0 && n < int64(local.maxFrameSize()) {
		out.MaxFrameSize = int(n)
	}
	return out, out.validate()
}

func remoteBool(info *commands.WireFormatInfo, key string) bool {
	v, _ := info.Bool(key)
	return v
}

// minDuration treats zero as "no limit".
func minDuration(a, b time.Duration) time.Duration {
	switch {
	case a <= 0:
		return max(b, 0)
	case b <= 0:
		return a
	default:
		return min(a, b)
	}
}
