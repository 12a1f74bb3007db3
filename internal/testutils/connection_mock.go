package testutils

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"
)

// ConnectionMock is a net.Conn reading from a fixed buffer and recording
// writes. Reads block after the buffer is drained, until Close.
type ConnectionMock struct {
	mu       sync.Mutex
	readBuf  *bytes.Buffer
	writeBuf bytes.Buffer
	closed   chan struct{}
	once     sync.Once

	// WriteErr, when set, fails every write.
	WriteErr error
}

// NewConnectionMock creates a mock connection serving the given frames.
func NewConnectionMock(frames ...[]byte) *ConnectionMock {
	return &ConnectionMock{
		readBuf: bytes.NewBuffer(bytes.Join(frames, nil)),
		closed:  make(chan struct{}),
	}
}

func (m *ConnectionMock) Read(b []byte) (int, error) {
	m.mu.Lock()
	if m.readBuf.Len() > 0 {
		defer m.mu.Unlock()
		return m.readBuf.Read(b)
	}
	m.mu.Unlock()

	<-m.closed
	return 0, io.EOF
}

func (m *ConnectionMock) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

// Closed reports whether Close was called.
func (m *ConnectionMock) Closed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 61616}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error      { return nil }
func (m *ConnectionMock) SetReadDeadline(t time.Time) error  { return nil }
func (m *ConnectionMock) SetWriteDeadline(t time.Time) error { return nil }

// Written returns the bytes written so far.
func (m *ConnectionMock) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.writeBuf.Bytes())
}
