//go:build linux || darwin || freebsd || netbsd || openbsd

package socket

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

func controlOptions(c syscall.RawConn, network string, opts map[Option]int) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		for opt, v := range opts {
			if serr = setsockopt(int(fd), network, opt, v); serr != nil {
				serr = fmt.Errorf("socket: set %s: %w", opt, serr)
				return
			}
		}
	})
	if err != nil {
		return err
	}
	return serr
}

func setsockopt(fd int, network string, opt Option, v int) error {
	switch opt {
	case OptReceiveBufferSize:
		return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, v)
	case OptSendBufferSize:
		return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, v)
	case OptKeepAlive:
		return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, v)
	case OptReuseAddress:
		return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, v)
	case OptOOBInline:
		return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_OOBINLINE, v)
	case OptNoDelay:
		return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v)
	case OptTrafficClass:
		if network == "tcp6" {
			return unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_TCLASS, v)
		}
		return unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_TOS, v)
	case OptLinger:
		l := unix.Linger{}
		if v >= 0 {
			l.Onoff = 1
			l.Linger = int32(v)
		}
		return unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &l)
	}
	// OptTimeout is enforced with read deadlines.
	return nil
}

func sendUrgent(conn net.Conn, b byte) error {
	rc, ok := rawConn(conn)
	if !ok {
		return fmt.Errorf("socket: urgent data: %w", errors.ErrUnsupported)
	}
	var serr error
	err := rc.Write(func(fd uintptr) bool {
		serr = unix.Sendto(int(fd), []byte{b}, unix.MSG_OOB, nil)
		return serr != unix.EAGAIN
	})
	if err != nil {
		return err
	}
	return serr
}
