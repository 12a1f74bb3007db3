package openwire

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/pior/openwire/commands"
	"github.com/pior/openwire/internal/testutils"
	"github.com/pior/openwire/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeNegotiator(t *testing.T, local wire.Options, timeout time.Duration) (*Negotiator, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { _ = server.Close() })

	iot := NewIOTransport(client, newTestFormat(t, local.Baseline()), nil)
	n := NewNegotiator(iot, local, timeout, nil)
	t.Cleanup(func() { _ = n.Close() })
	return n, server
}

func TestNegotiatorAppliesPeerOptions(t *testing.T) {
	local := wire.DefaultOptions()
	n, server := newPipeNegotiator(t, local, time.Second)

	remote := wire.DefaultOptions()
	remote.Version = 3
	remote.CacheEnabled = false
	broker := testutils.NewBroker(remote)
	go func() { _ = broker.Serve(server) }()

	require.NoError(t, n.Start(context.Background()))
	require.NoError(t, n.Ready(context.Background()))

	opts := n.next.Format().Options()
	assert.EqualValues(t, 2, opts.Version)
	assert.True(t, opts.TightEncoding)
	assert.False(t, opts.CacheEnabled)

	require.NotNil(t, n.Peer())
	assert.EqualValues(t, 3, n.Peer().Version)

	require.NoError(t, n.Oneway(context.Background(), &commands.ShutdownInfo{}))
	assert.Eventually(t, func() bool { return len(broker.Received()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestNegotiatorForwardsPeerInfo(t *testing.T) {
	n, server := newPipeNegotiator(t, wire.DefaultOptions(), time.Second)
	rec := newRecorder()
	n.SetListener(rec)
	go func() { _ = testutils.NewBroker(wire.DefaultOptions()).Serve(server) }()

	require.NoError(t, n.Start(context.Background()))
	rec.wait(t, 1)
	assert.True(t, rec.Commands()[0].IsWireFormatInfo())
}

func TestNegotiatorTimeout(t *testing.T) {
	n, server := newPipeNegotiator(t, wire.DefaultOptions(), 50*time.Millisecond)
	go func() { _, _ = io.Copy(io.Discard, server) }()

	require.NoError(t, n.Start(context.Background()))
	assert.Nil(t, n.Peer())

	err := n.Ready(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)

	err = n.Oneway(context.Background(), &commands.KeepAliveInfo{})
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestNegotiatorRejectsBadMagic(t *testing.T) {
	n, server := newPipeNegotiator(t, wire.DefaultOptions(), time.Second)
	rec := newRecorder()
	n.SetListener(rec)

	go func() {
		f, err := wire.NewFormat(wire.DefaultOptions().Baseline())
		if err != nil {
			return
		}
		info := wire.LocalInfo(wire.DefaultOptions())
		info.Magic = []byte("NotAMQ!!")
		_ = f.Marshal(info, server)
		_, _ = io.Copy(io.Discard, server)
	}()

	// The transport may fail before the local info is written.
	_ = n.Start(context.Background())
	err := n.Ready(context.Background())
	assert.ErrorIs(t, err, wire.ErrBadMagic)

	rec.wait(t, 1)
	require.Len(t, rec.Errors(), 1)
	assert.ErrorIs(t, rec.Errors()[0], wire.ErrBadMagic)
}

func TestNegotiatorClose(t *testing.T) {
	n, server := newPipeNegotiator(t, wire.DefaultOptions(), time.Second)
	go func() { _, _ = io.Copy(io.Discard, server) }()
	require.NoError(t, n.Start(context.Background()))

	require.NoError(t, n.Close())
	assert.ErrorIs(t, n.Ready(context.Background()), ErrClosed)

	_, err := n.Request(context.Background(), &commands.KeepAliveInfo{})
	assert.ErrorIs(t, err, ErrUnsupported)
}
