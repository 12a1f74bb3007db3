//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package socket

import (
	"errors"
	"net"
	"syscall"
)

// Options stay staged on platforms without setsockopt support here.
func controlOptions(syscall.RawConn, string, map[Option]int) error {
	return nil
}

func sendUrgent(net.Conn, byte) error {
	return errors.ErrUnsupported
}
