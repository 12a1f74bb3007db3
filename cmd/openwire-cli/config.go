package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/pior/openwire"
	"github.com/pior/openwire/wire"
)

// config is the CLI configuration. It is read from an optional YAML file;
// flags set on the command line override it.
type config struct {
	Brokers    []string      `yaml:"brokers"`
	ClientID   string        `yaml:"client_id"`
	User       string        `yaml:"user"`
	Password   string        `yaml:"password"`
	Timeout    time.Duration `yaml:"timeout"`
	LogLevel   string        `yaml:"log_level"`
	LogTraffic bool          `yaml:"log_traffic"`

	Pool     string `yaml:"pool"`
	MaxConns int32  `yaml:"max_conns"`

	Wire wireConfig `yaml:"wire"`
}

type wireConfig struct {
	Version       int32 `yaml:"version"`
	TightEncoding *bool `yaml:"tight_encoding"`
	CacheEnabled  *bool `yaml:"cache_enabled"`
	CacheSize     int   `yaml:"cache_size"`
	MaxFrameSize  int   `yaml:"max_frame_size"`
}

func defaultConfig() config {
	return config{
		Brokers:  []string{"tcp://localhost:61616"},
		Timeout:  10 * time.Second,
		LogLevel: "warn",
		Pool:     "channel",
		MaxConns: openwire.DefaultMaxSize,
	}
}

// flags holds the values bound to the command line.
type flags struct {
	configPath string
	brokers    []string
	clientID   string
	user       string
	password   string
	timeout    time.Duration
	logLevel   string
	logTraffic bool
	pool       string
	maxConns   int32

	wireVersion int32
	tight       bool
	cache       bool

	count      int
	persistent bool
}

func (f *flags) register(fs *pflag.FlagSet) {
	defaults := defaultConfig()
	fs.StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")
	fs.StringSliceVarP(&f.brokers, "broker", "b", defaults.Brokers, "broker address, repeatable")
	fs.StringVar(&f.clientID, "client-id", "", "JMS client id")
	fs.StringVar(&f.user, "user", "", "user name")
	fs.StringVar(&f.password, "password", "", "password")
	fs.DurationVar(&f.timeout, "timeout", defaults.Timeout, "overall timeout")
	fs.StringVar(&f.logLevel, "log-level", defaults.LogLevel, "debug, info, warn or error")
	fs.BoolVar(&f.logTraffic, "log-traffic", false, "log every command at debug level")
	fs.StringVar(&f.pool, "pool", defaults.Pool, "connection pool: channel or puddle")
	fs.Int32Var(&f.maxConns, "max-conns", defaults.MaxConns, "connections per broker")
	fs.Int32Var(&f.wireVersion, "wire-version", wire.DefaultVersion, "OpenWire version to advertise")
	fs.BoolVar(&f.tight, "tight", true, "use tight encoding")
	fs.BoolVar(&f.cache, "cache", true, "use the marshalling cache")
	fs.IntVarP(&f.count, "count", "n", 1, "messages to send")
	fs.BoolVar(&f.persistent, "persistent", false, "send persistent messages and wait for the broker")
}

// loadConfig reads path, or returns the defaults when path is empty.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// override copies the flags explicitly set on the command line.
func (c *config) override(fs *pflag.FlagSet, f *flags) {
	if fs.Changed("broker") {
		c.Brokers = f.brokers
	}
	if fs.Changed("client-id") {
		c.ClientID = f.clientID
	}
	if fs.Changed("user") {
		c.User = f.user
	}
	if fs.Changed("password") {
		c.Password = f.password
	}
	if fs.Changed("timeout") {
		c.Timeout = f.timeout
	}
	if fs.Changed("log-level") {
		c.LogLevel = f.logLevel
	}
	if fs.Changed("log-traffic") {
		c.LogTraffic = f.logTraffic
	}
	if fs.Changed("pool") {
		c.Pool = f.pool
	}
	if fs.Changed("max-conns") {
		c.MaxConns = f.maxConns
	}
	if fs.Changed("wire-version") {
		c.Wire.Version = f.wireVersion
	}
	if fs.Changed("tight") {
		c.Wire.TightEncoding = &f.tight
	}
	if fs.Changed("cache") {
		c.Wire.CacheEnabled = &f.cache
	}
}

func (c *config) wireOptions() wire.Options {
	opts := wire.DefaultOptions()
	if c.Wire.Version != 0 {
		opts.Version = c.Wire.Version
	}
	if c.Wire.TightEncoding != nil {
		opts.TightEncoding = *c.Wire.TightEncoding
	}
	if c.Wire.CacheEnabled != nil {
		opts.CacheEnabled = *c.Wire.CacheEnabled
	}
	if c.Wire.CacheSize > 0 {
		opts.CacheSize = c.Wire.CacheSize
	}
	if c.Wire.MaxFrameSize > 0 {
		opts.MaxFrameSize = c.Wire.MaxFrameSize
	}
	return opts
}

func (c *config) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

func (c *config) connConfig(logger *slog.Logger) openwire.Config {
	return openwire.Config{
		Wire:           c.wireOptions(),
		ConnectTimeout: c.Timeout,
		RequestTimeout: c.Timeout,
		ClientID:       c.ClientID,
		UserName:       c.User,
		Password:       c.Password,
		Logger:         logger,
		LogTraffic:     c.LogTraffic,
	}
}

func (c *config) clientConfig(logger *slog.Logger) (openwire.ClientConfig, error) {
	cc := openwire.ClientConfig{
		MaxSize: c.MaxConns,
		Conn:    c.connConfig(logger),
		Logger:  logger,
	}
	switch strings.ToLower(c.Pool) {
	case "", "channel":
		cc.Pool = openwire.NewChannelPool
	case "puddle":
		cc.Pool = openwire.NewPuddlePool
	default:
		return cc, fmt.Errorf("unknown pool %q", c.Pool)
	}
	return cc, nil
}
