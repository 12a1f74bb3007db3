package openwire

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pior/openwire/socket"
	"github.com/pior/openwire/wire"
)

const (
	// DefaultPort is the broker's OpenWire port.
	DefaultPort = 61616

	DefaultConnectTimeout = 30 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// Config configures Dial.
type Config struct {
	// Wire holds the wire format preferences advertised to the broker.
	// The zero value means wire.DefaultOptions().
	Wire wire.Options

	// Socket holds the TCP options. Nil means socket.DefaultOptions().
	Socket *socket.Options

	// ImplFactory creates the socket implementation. If nil, plain TCP is
	// used, or TLS with TLSConfig for ssl:// addresses.
	ImplFactory socket.ImplFactory
	TLSConfig   *tls.Config

	// ConnectTimeout bounds the TCP connect. Zero means
	// DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// NegotiationTimeout bounds the wire format exchange. Zero means
	// DefaultNegotiationTimeout.
	NegotiationTimeout time.Duration

	// RequestTimeout bounds the handshake requests and synchronous sends.
	// Zero means DefaultRequestTimeout.
	RequestTimeout time.Duration

	// ClientID, UserName and Password go into the ConnectionInfo. An empty
	// ClientID uses the generated connection id.
	ClientID string
	UserName string
	Password string

	// SkipHandshake leaves the connection negotiated but without a broker
	// connection, session or producer. Send is not available.
	SkipHandshake bool

	// CircuitBreaker, when set, guards every send of the connection.
	CircuitBreaker *CircuitBreaker

	// Logger receives transport logs. Nil discards them.
	Logger *slog.Logger

	// LogTraffic logs every command at debug level.
	LogTraffic bool
}

func (c Config) withDefaults() Config {
	if c.Wire == (wire.Options{}) {
		c.Wire = wire.DefaultOptions()
	}
	if c.Socket == nil {
		opts := socket.DefaultOptions()
		c.Socket = &opts
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Endpoint is a parsed broker address.
type Endpoint struct {
	Host  string
	Port  int
	TLS   bool
	Query url.Values
}

func (e Endpoint) String() string {
	scheme := "tcp"
	if e.TLS {
		scheme = "ssl"
	}
	return scheme + "://" + net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ParseAddress parses "tcp://host:port", "ssl://host:port" or "host:port".
// The port defaults to DefaultPort. Query parameters carry overrides such as
// "wireFormat.tightEncodingEnabled=false".
func ParseAddress(address string) (Endpoint, error) {
	if !strings.Contains(address, "://") {
		address = "tcp://" + address
	}
	u, err := url.Parse(address)
	if err != nil {
		return Endpoint{}, fmt.Errorf("openwire: invalid address %q: %w", address, err)
	}

	ep := Endpoint{Host: u.Hostname(), Port: DefaultPort, Query: u.Query()}
	switch u.Scheme {
	case "tcp", "nio":
	case "ssl", "tls":
		ep.TLS = true
	default:
		return Endpoint{}, fmt.Errorf("openwire: unsupported scheme %q in %q", u.Scheme, address)
	}
	if ep.Host == "" {
		return Endpoint{}, fmt.Errorf("openwire: missing host in %q", address)
	}
	if p := u.Port(); p != "" {
		ep.Port, err = strconv.Atoi(p)
		if err != nil || ep.Port <= 0 || ep.Port > 65535 {
			return Endpoint{}, fmt.Errorf("openwire: invalid port in %q", address)
		}
	}
	return ep, nil
}

// apply copies the query overrides into cfg.
func (e Endpoint) apply(cfg *Config) error {
	for key, values := range e.Query {
		if len(values) == 0 {
			continue
		}
		if err := applyParam(cfg, key, values[len(values)-1]); err != nil {
			return fmt.Errorf("openwire: parameter %s: %w", key, err)
		}
	}
	return nil
}

func applyParam(cfg *Config, key, value string) error {
	var err error
	switch key {
	case "wireFormat.version":
		var v int64
		v, err = strconv.ParseInt(value, 10, 32)
		cfg.Wire.Version = int32(v)
	case "wireFormat.tightEncodingEnabled":
		cfg.Wire.TightEncoding, err = strconv.ParseBool(value)
	case "wireFormat.cacheEnabled":
		cfg.Wire.CacheEnabled, err = strconv.ParseBool(value)
	case "wireFormat.cacheSize":
		cfg.Wire.CacheSize, err = strconv.Atoi(value)
	case "wireFormat.stackTraceEnabled":
		cfg.Wire.StackTrace, err = strconv.ParseBool(value)
	case "wireFormat.sizePrefixDisabled":
		var disabled bool
		disabled, err = strconv.ParseBool(value)
		cfg.Wire.SizePrefix = !disabled
	case "wireFormat.maxInactivityDuration":
		cfg.Wire.MaxInactivityDuration, err = parseMillis(value)
	case "wireFormat.maxInactivityDurationInitalDelay", "wireFormat.maxInactivityDurationInitialDelay":
		cfg.Wire.MaxInactivityInitialDelay, err = parseMillis(value)
	case "wireFormat.maxFrameSize":
		cfg.Wire.MaxFrameSize, err = strconv.Atoi(value)
	case "connectionTimeout":
		cfg.ConnectTimeout, err = parseMillis(value)
	case "soTimeout":
		cfg.Socket.ReadTimeout, err = parseMillis(value)
	case "tcpNoDelay":
		cfg.Socket.NoDelay, err = strconv.ParseBool(value)
		cfg.Wire.TCPNoDelay = cfg.Socket.NoDelay
	case "keepAlive":
		cfg.Socket.KeepAlive, err = strconv.ParseBool(value)
	case "socketBufferSize":
		var n int
		n, err = strconv.Atoi(value)
		cfg.Socket.ReceiveBufferSize, cfg.Socket.SendBufferSize = n, n
	case "soLinger":
		cfg.Socket.Linger, err = parseSeconds(value)
	case "trafficClass":
		cfg.Socket.TrafficClass, err = strconv.Atoi(value)
	default:
		return fmt.Errorf("unknown parameter")
	}
	return err
}

func parseMillis(value string) (time.Duration, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	return time.Duration(n) * time.Millisecond, err
}

func parseSeconds(value string) (time.Duration, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	return time.Duration(n) * time.Second, err
}

// Dial connects to the broker at address, negotiates the wire format and,
// unless cfg.SkipHandshake is set, opens a connection, a session and an
// anonymous producer.
func Dial(ctx context.Context, address string, cfg Config) (*Conn, error) {
	ep, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	sockOpts := *cfg.Socket
	cfg.Socket = &sockOpts
	if err := ep.apply(&cfg); err != nil {
		return nil, err
	}

	factory := cfg.ImplFactory
	if factory == nil {
		if ep.TLS {
			factory = socket.TLSFactory(cfg.TLSConfig)
		} else {
			factory = socket.TCPFactory()
		}
	}

	sock := socket.New(factory, cfg.Logger)
	if err := sock.Apply(*cfg.Socket); err != nil {
		_ = sock.Close()
		return nil, err
	}
	if err := sock.ConnectTimeout(ctx, ep.Host, ep.Port, cfg.ConnectTimeout); err != nil {
		return nil, fmt.Errorf("openwire: connecting to %s: %w", ep, err)
	}

	return Open(ctx, sock, ep.String(), cfg)
}

// Open runs the protocol over an established stream: it builds the
// transport chain, negotiates the wire format and performs the handshake.
// The stream is closed if Open fails.
func Open(ctx context.Context, stream io.ReadWriteCloser, address string, cfg Config) (*Conn, error) {
	cfg = cfg.withDefaults()

	format, err := wire.NewFormat(cfg.Wire.Baseline())
	if err != nil {
		_ = stream.Close()
		return nil, err
	}

	iot := NewIOTransport(stream, format, cfg.Logger)
	neg := NewNegotiator(iot, cfg.Wire, cfg.NegotiationTimeout, cfg.Logger)
	var top Transport = NewCorrelator(neg, cfg.Logger)
	if cfg.LogTraffic {
		top = NewLoggingTransport(top, cfg.Logger)
	}
	if cfg.CircuitBreaker != nil {
		top = NewBreakerTransport(top, cfg.CircuitBreaker)
	}

	conn := NewConn(top, address)
	conn.negotiator = neg
	conn.requestTimeout = cfg.RequestTimeout

	if err := conn.Start(ctx); err != nil {
		_ = top.Close()
		return nil, err
	}
	if err := neg.Ready(ctx); err != nil {
		_ = top.Close()
		return nil, err
	}

	if !cfg.SkipHandshake {
		if err := conn.Handshake(ctx, cfg.ClientID, cfg.UserName, cfg.Password); err != nil {
			_ = top.Close()
			return nil, fmt.Errorf("openwire: handshake with %s: %w", address, err)
		}
	}
	return conn, nil
}
