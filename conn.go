package openwire

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pior/openwire/commands"
)

const closeGrace = time.Second

// Conn is a negotiated connection to one broker. It embeds the top of its
// transport chain and tracks whether that chain has failed.
type Conn struct {
	Transport

	address        string
	createdAt      time.Time
	requestTimeout time.Duration
	negotiator     *Negotiator

	listener listenerSlot
	failure  atomic.Pointer[error]

	mu         sync.Mutex
	connection *commands.ConnectionInfo
	producer   *commands.ProducerID
	sequence   atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps a started or unstarted transport. Dial and Open use it; it
// is exported for transports built by hand, such as mocks.
func NewConn(t Transport, address string) *Conn {
	c := &Conn{
		Transport:      t,
		address:        address,
		createdAt:      time.Now(),
		requestTimeout: DefaultRequestTimeout,
	}
	t.SetListener(c)
	return c
}

func (c *Conn) Address() string      { return c.address }
func (c *Conn) CreatedAt() time.Time { return c.createdAt }

// Err returns the failure that made the connection unusable, or nil.
func (c *Conn) Err() error {
	if p := c.failure.Load(); p != nil {
		return *p
	}
	return nil
}

// WireFormat returns the broker's WireFormatInfo, or nil if the connection
// was not negotiated by Open.
func (c *Conn) WireFormat() *commands.WireFormatInfo {
	if c.negotiator == nil {
		return nil
	}
	return c.negotiator.Peer()
}

// ConnectionID returns the id registered by Handshake, or nil.
func (c *Conn) ConnectionID() *commands.ConnectionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connection == nil {
		return nil
	}
	return c.connection.ConnectionID
}

func (c *Conn) SetListener(l Listener) {
	c.listener.set(l)
}

func (c *Conn) OnCommand(cmd commands.Command) {
	if cmd.IsShutdownInfo() {
		c.failure.CompareAndSwap(nil, &ErrBrokerShutdown)
	}
	c.listener.get().OnCommand(cmd)
}

func (c *Conn) OnException(err error) {
	c.failure.CompareAndSwap(nil, &err)
	c.listener.get().OnException(err)
}

// Handshake registers a connection, a session and an anonymous producer
// with the broker.
func (c *Conn) Handshake(ctx context.Context, clientID, userName, password string) error {
	connID := commands.NewConnectionID()
	if clientID == "" {
		clientID = connID.Value
	}
	info := &commands.ConnectionInfo{
		ConnectionID: connID,
		ClientID:     clientID,
		UserName:     userName,
		Password:     password,
	}
	if err := c.request(ctx, info); err != nil {
		return err
	}

	sessionID := connID.NewSessionID(1)
	if err := c.request(ctx, &commands.SessionInfo{SessionID: sessionID}); err != nil {
		return err
	}

	producerID := sessionID.NewProducerID(1)
	if err := c.request(ctx, &commands.ProducerInfo{ProducerID: producerID}); err != nil {
		return err
	}

	c.mu.Lock()
	c.connection = info
	c.producer = producerID
	c.mu.Unlock()
	return nil
}

// request sends cmd and turns an exception response into an error.
func (c *Conn) request(ctx context.Context, cmd commands.Command) error {
	resp, err := c.RequestTimeout(ctx, cmd, c.requestTimeout)
	if err != nil {
		return err
	}
	return ResponseError(resp)
}

// Send publishes msg to dest through the connection's producer. Persistent
// messages wait for the broker's acknowledgement; others are sent oneway.
func (c *Conn) Send(ctx context.Context, dest commands.Destination, msg commands.MessageCommand) error {
	c.mu.Lock()
	producer := c.producer
	c.mu.Unlock()
	if producer == nil {
		return ErrNotOpen
	}

	m := msg.BaseMessage()
	m.ProducerID = producer
	m.Destination = dest
	m.MessageID = producer.NewMessageID(c.sequence.Add(1))
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UnixMilli()
	}

	if m.Persistent {
		return c.request(ctx, msg)
	}
	return c.Oneway(ctx, msg)
}

// Ping checks that the connection can still carry a command.
func (c *Conn) Ping(ctx context.Context) error {
	if err := c.Err(); err != nil {
		return err
	}
	return c.Oneway(ctx, &commands.KeepAliveInfo{})
}

// Close removes the broker connection, announces the shutdown and closes
// the transport. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if c.Err() == nil {
			c.goodbye()
		}
		c.closeErr = c.Transport.Close()
	})
	return c.closeErr
}

func (c *Conn) goodbye() {
	ctx, cancel := context.WithTimeout(context.Background(), closeGrace)
	defer cancel()

	if id := c.ConnectionID(); id != nil {
		_ = c.Oneway(ctx, &commands.RemoveInfo{ObjectID: id})
	}
	_ = c.Oneway(ctx, &commands.ShutdownInfo{})
}
