package openwire_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pior/openwire"
	"github.com/pior/openwire/commands"
	"github.com/pior/openwire/mock"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDialer opens connections over mock transports.
type mockDialer struct {
	builder mock.ResponseBuilder
	setup   func(*mock.Transport)

	mu         sync.Mutex
	addresses  []string
	transports []*mock.Transport
	err        error
}

func newMockDialer() *mockDialer {
	return &mockDialer{builder: mock.Acknowledge}
}

func (d *mockDialer) Dial(ctx context.Context, address string, cfg openwire.Config) (*openwire.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}

	tr := mock.New(d.builder)
	conn := openwire.NewConn(tr, address)
	if err := conn.Start(ctx); err != nil {
		return nil, err
	}
	if err := conn.Handshake(ctx, cfg.ClientID, cfg.UserName, cfg.Password); err != nil {
		return nil, err
	}
	if d.setup != nil {
		d.setup(tr)
	}

	d.addresses = append(d.addresses, address)
	d.transports = append(d.transports, tr)
	return conn, nil
}

func (d *mockDialer) Transports() []*mock.Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*mock.Transport(nil), d.transports...)
}

func (d *mockDialer) Addresses() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.addresses...)
}

func newTestClient(t *testing.T, d *mockDialer, config openwire.ClientConfig, brokers ...string) *openwire.Client {
	t.Helper()
	if len(brokers) == 0 {
		brokers = []string{"tcp://broker-1:61616"}
	}
	config.Dial = d.Dial
	client, err := openwire.NewClient(openwire.NewStaticBrokers(brokers...), config)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func textMessage(t *testing.T, text string, persistent bool) *commands.ActiveMQTextMessage {
	t.Helper()
	msg := &commands.ActiveMQTextMessage{}
	require.NoError(t, msg.SetText(text, false))
	msg.Persistent = persistent
	return msg
}

func mustDestination(t *testing.T, uri string) commands.Destination {
	t.Helper()
	dest, err := commands.NewDestination(uri)
	require.NoError(t, err)
	return dest
}

func TestNewClientNoBrokers(t *testing.T) {
	_, err := openwire.NewClient(openwire.NewStaticBrokers(), openwire.ClientConfig{})
	assert.ErrorIs(t, err, openwire.ErrNoBrokers)

	_, err = openwire.NewClient(nil, openwire.ClientConfig{})
	assert.ErrorIs(t, err, openwire.ErrNoBrokers)
}

func TestClientSend(t *testing.T) {
	for name, factory := range map[string]openwire.PoolFactory{
		"channel": openwire.NewChannelPool,
		"puddle":  openwire.NewPuddlePool,
	} {
		t.Run(name, func(t *testing.T) {
			d := newMockDialer()
			client := newTestClient(t, d, openwire.ClientConfig{Pool: factory})
			ctx := context.Background()
			orders := mustDestination(t, "queue://orders")

			require.NoError(t, client.Send(ctx, orders, textMessage(t, "one", true)))
			require.NoError(t, client.Send(ctx, orders, textMessage(t, "two", false)))

			transports := d.Transports()
			require.Len(t, transports, 1)
			assert.Equal(t, 2, transports[0].MessagesSent())

			stats := client.Stats()
			assert.EqualValues(t, 2, stats.Messages)
			assert.Zero(t, stats.Errors)

			pools := client.AllPoolStats()
			require.Len(t, pools, 1)
			assert.Equal(t, "tcp://broker-1:61616", pools[0].Address)
			assert.EqualValues(t, 1, pools[0].PoolStats.CreatedConns)
			assert.EqualValues(t, 1, pools[0].PoolStats.IdleConns)
		})
	}
}

func TestClientSendWithoutDestination(t *testing.T) {
	client := newTestClient(t, newMockDialer(), openwire.ClientConfig{})
	err := client.Send(context.Background(), nil, textMessage(t, "lost", false))
	assert.Error(t, err)
	assert.EqualValues(t, 1, client.Stats().Errors)
}

func TestClientOnewayAndRequest(t *testing.T) {
	d := newMockDialer()
	client := newTestClient(t, d, openwire.ClientConfig{})
	ctx := context.Background()

	require.NoError(t, client.Oneway(ctx, "orders", &commands.KeepAliveInfo{}))

	resp, err := client.Request(ctx, "orders", &commands.SessionInfo{})
	require.NoError(t, err)
	assert.NotZero(t, resp.Correlation())

	stats := client.Stats()
	assert.EqualValues(t, 1, stats.Oneways)
	assert.EqualValues(t, 1, stats.Requests)
}

func TestClientRequestBrokerException(t *testing.T) {
	d := newMockDialer()
	d.builder = mock.ResponseBuilderFunc(func(cmd commands.Command) commands.ResponseCommand {
		if _, ok := cmd.(*commands.RemoveInfo); ok {
			return &commands.ExceptionResponse{
				Response:  commands.Response{CorrelationID: cmd.CommandID()},
				Exception: &commands.BrokerError{ExceptionClass: "javax.jms.InvalidDestinationException", Message: "no such queue"},
			}
		}
		return mock.Acknowledge(cmd)
	})
	client := newTestClient(t, d, openwire.ClientConfig{})

	resp, err := client.Request(context.Background(), "orders", &commands.RemoveInfo{})
	require.NotNil(t, resp)
	var be *commands.BrokerError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "no such queue", be.Message)

	stats := client.Stats()
	assert.EqualValues(t, 1, stats.BrokerExceptions)
	assert.EqualValues(t, 1, stats.Errors)

	pools := client.AllPoolStats()
	require.Len(t, pools, 1)
	assert.Zero(t, pools[0].PoolStats.DestroyedConns, "a broker exception keeps the connection")
}

func TestClientSendFailureDestroysConn(t *testing.T) {
	d := newMockDialer()
	d.setup = func(tr *mock.Transport) { tr.FailOnSendMessage(0) }
	client := newTestClient(t, d, openwire.ClientConfig{})

	err := client.Send(context.Background(), mustDestination(t, "orders"), textMessage(t, "x", false))
	assert.ErrorIs(t, err, mock.ErrSendFailed)
	assert.True(t, openwire.ShouldCloseConnection(err))

	pools := client.AllPoolStats()
	require.Len(t, pools, 1)
	assert.EqualValues(t, 1, pools[0].PoolStats.DestroyedConns)
	assert.EqualValues(t, 0, pools[0].PoolStats.TotalConns)
}

func TestClientSkipsFailedConn(t *testing.T) {
	d := newMockDialer()
	d.setup = func(tr *mock.Transport) { tr.FailOnReceiveMessage(0) }
	client := newTestClient(t, d, openwire.ClientConfig{})
	ctx := context.Background()
	orders := mustDestination(t, "orders")

	require.NoError(t, client.Send(ctx, orders, textMessage(t, "a", false)))

	// An inbound message breaks the idle connection.
	d.Transports()[0].Fire(&commands.ActiveMQMessage{})

	require.NoError(t, client.Send(ctx, orders, textMessage(t, "b", false)))
	assert.Len(t, d.Transports(), 2)

	stats := client.AllPoolStats()[0].PoolStats
	assert.EqualValues(t, 2, stats.CreatedConns)
	assert.EqualValues(t, 1, stats.DestroyedConns)
}

func TestClientDialError(t *testing.T) {
	d := newMockDialer()
	d.err = errors.New("connection refused")
	client := newTestClient(t, d, openwire.ClientConfig{})

	err := client.Oneway(context.Background(), "orders", &commands.KeepAliveInfo{})
	assert.ErrorContains(t, err, "connection refused")
	assert.EqualValues(t, 1, client.AllPoolStats()[0].PoolStats.AcquireErrors)
}

func TestClientCircuitBreaker(t *testing.T) {
	d := newMockDialer()
	d.setup = func(tr *mock.Transport) { tr.FailOnSendMessage(0) }
	client := newTestClient(t, d, openwire.ClientConfig{
		NewCircuitBreaker: openwire.NewCircuitBreakerConfig(1, time.Minute, time.Minute),
	})
	ctx := context.Background()
	orders := mustDestination(t, "orders")

	for range 3 {
		err := client.Send(ctx, orders, textMessage(t, "x", false))
		assert.ErrorIs(t, err, mock.ErrSendFailed)
	}

	err := client.Send(ctx, orders, textMessage(t, "x", false))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Len(t, d.Transports(), 3, "an open breaker does not dial")

	pools := client.AllPoolStats()
	require.Len(t, pools, 1)
	assert.Equal(t, gobreaker.StateOpen, pools[0].BreakerState)
	assert.EqualValues(t, 4, client.Stats().Errors)
}

func TestClientCircuitBreakerIgnoresBrokerExceptions(t *testing.T) {
	d := newMockDialer()
	d.builder = mock.ResponseBuilderFunc(func(cmd commands.Command) commands.ResponseCommand {
		if cmd.IsMessage() {
			return &commands.ExceptionResponse{
				Response:  commands.Response{CorrelationID: cmd.CommandID()},
				Exception: &commands.BrokerError{Message: "quota exceeded"},
			}
		}
		return mock.Acknowledge(cmd)
	})
	client := newTestClient(t, d, openwire.ClientConfig{
		NewCircuitBreaker: openwire.NewCircuitBreakerConfig(1, time.Minute, time.Minute),
	})
	orders := mustDestination(t, "orders")

	for range 5 {
		err := client.Send(context.Background(), orders, textMessage(t, "x", true))
		assert.ErrorContains(t, err, "quota exceeded")
	}
	assert.Equal(t, gobreaker.StateClosed, client.AllPoolStats()[0].BreakerState)
	assert.Len(t, d.Transports(), 1)
}

func TestClientSelectsBrokerByDestination(t *testing.T) {
	brokers := []string{"tcp://a:61616", "tcp://b:61616", "tcp://c:61616"}
	d := newMockDialer()
	client := newTestClient(t, d, openwire.ClientConfig{}, brokers...)

	names := []string{"queue://orders", "queue://invoices", "topic://events", "queue://audit"}
	want := map[string]bool{}
	for _, name := range names {
		require.NoError(t, client.Send(context.Background(), mustDestination(t, name), textMessage(t, name, false)))
		address, err := openwire.DefaultSelectBroker(name, brokers)
		require.NoError(t, err)
		want[address] = true
	}

	got := map[string]bool{}
	for _, address := range d.Addresses() {
		got[address] = true
	}
	assert.Equal(t, want, got)
	assert.Len(t, client.AllPoolStats(), len(want))
}

func TestClientConcurrentSends(t *testing.T) {
	d := newMockDialer()
	client := newTestClient(t, d, openwire.ClientConfig{MaxSize: 2})
	orders := mustDestination(t, "orders")

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg := &commands.ActiveMQTextMessage{}
			if err := msg.SetText("x", false); err != nil {
				t.Error(err)
				return
			}
			if err := client.Send(context.Background(), orders, msg); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 20, client.Stats().Messages)
	assert.LessOrEqual(t, len(d.Transports()), 2)
}

func TestClientHealthCheckDestroysFailedConn(t *testing.T) {
	d := newMockDialer()
	d.setup = func(tr *mock.Transport) { tr.FailOnReceiveMessage(0) }
	client := newTestClient(t, d, openwire.ClientConfig{HealthCheckInterval: 10 * time.Millisecond})

	require.NoError(t, client.Send(context.Background(), mustDestination(t, "orders"), textMessage(t, "x", false)))
	d.Transports()[0].Fire(&commands.ActiveMQMessage{})

	assert.Eventually(t, func() bool {
		stats := client.AllPoolStats()[0].PoolStats
		return stats.DestroyedConns == 1 && stats.TotalConns == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestClientHealthCheckMaxLifetime(t *testing.T) {
	d := newMockDialer()
	client := newTestClient(t, d, openwire.ClientConfig{
		HealthCheckInterval: 10 * time.Millisecond,
		MaxConnLifetime:     time.Millisecond,
	})

	require.NoError(t, client.Send(context.Background(), mustDestination(t, "orders"), textMessage(t, "x", false)))

	assert.Eventually(t, func() bool {
		return client.AllPoolStats()[0].PoolStats.DestroyedConns == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestClientHealthCheckKeepsHealthyConn(t *testing.T) {
	d := newMockDialer()
	client := newTestClient(t, d, openwire.ClientConfig{HealthCheckInterval: 5 * time.Millisecond})

	require.NoError(t, client.Send(context.Background(), mustDestination(t, "orders"), textMessage(t, "x", false)))
	time.Sleep(50 * time.Millisecond)

	stats := client.AllPoolStats()[0].PoolStats
	assert.Zero(t, stats.DestroyedConns)
	assert.EqualValues(t, 1, stats.TotalConns)
}

func TestClientClose(t *testing.T) {
	d := newMockDialer()
	var mu sync.Mutex
	var outgoing []commands.Command
	d.setup = func(tr *mock.Transport) {
		tr.SetOutgoingListener(openwire.ListenerFuncs{Command: func(cmd commands.Command) {
			mu.Lock()
			outgoing = append(outgoing, cmd)
			mu.Unlock()
		}})
	}
	client := newTestClient(t, d, openwire.ClientConfig{HealthCheckInterval: time.Hour})
	orders := mustDestination(t, "orders")

	require.NoError(t, client.Send(context.Background(), orders, textMessage(t, "x", false)))
	client.Close()
	client.Close()

	mu.Lock()
	require.Len(t, outgoing, 3)
	assert.IsType(t, &commands.RemoveInfo{}, outgoing[1])
	assert.True(t, outgoing[2].IsShutdownInfo())
	mu.Unlock()

	err := client.Send(context.Background(), orders, textMessage(t, "y", false))
	assert.ErrorIs(t, err, openwire.ErrClosed)
}
