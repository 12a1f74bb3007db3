package main

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pior/openwire/commands"
	"github.com/pior/openwire/internal/testutils"
	"github.com/pior/openwire/wire"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "openwire.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
brokers:
  - tcp://a:61616
  - ssl://b:61617
client_id: cli
timeout: 5s
pool: puddle
wire:
  version: 3
  tight_encoding: false
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"tcp://a:61616", "ssl://b:61617"}, cfg.Brokers)
	assert.Equal(t, "cli", cfg.ClientID)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "warn", cfg.LogLevel)

	opts := cfg.wireOptions()
	assert.EqualValues(t, 3, opts.Version)
	assert.False(t, opts.TightEncoding)
	assert.True(t, opts.CacheEnabled)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, "brokers: [unclosed"))
	assert.Error(t, err)
}

func TestFlagsOverrideConfig(t *testing.T) {
	path := writeConfig(t, "brokers: [tcp://a:61616]\nclient_id: from-file\nmax_conns: 8\n")

	var f flags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.register(fs)
	require.NoError(t, fs.Parse([]string{"-c", path, "-b", "tcp://x:1", "-b", "tcp://y:2", "--cache=false", "ping"}))

	cfg, err := loadConfig(f.configPath)
	require.NoError(t, err)
	cfg.override(fs, &f)

	assert.Equal(t, []string{"tcp://x:1", "tcp://y:2"}, cfg.Brokers)
	assert.Equal(t, "from-file", cfg.ClientID)
	assert.EqualValues(t, 8, cfg.MaxConns)
	assert.False(t, cfg.wireOptions().CacheEnabled)
	assert.Equal(t, []string{"ping"}, fs.Args())

	cc, err := cfg.clientConfig(nil)
	require.NoError(t, err)
	assert.EqualValues(t, 8, cc.MaxSize)
	assert.Equal(t, "from-file", cc.Conn.ClientID)

	cfg.Pool = "bogus"
	_, err = cfg.clientConfig(nil)
	assert.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	var encoded bytes.Buffer
	require.NoError(t, run([]string{"encode", "topic://prices", "hello world"}, nil, &encoded))
	assert.Contains(t, encoded.String(), "00000000  ")

	var decoded bytes.Buffer
	require.NoError(t, run([]string{"decode"}, &encoded, &decoded))
	assert.Contains(t, decoded.String(), "ActiveMQTextMessage")
	assert.Contains(t, decoded.String(), `text: "hello world"`)
}

func TestDecodeLooseFrames(t *testing.T) {
	opts := wire.DefaultOptions()
	opts.TightEncoding = false
	format, err := wire.NewFormat(opts)
	require.NoError(t, err)

	var frames bytes.Buffer
	require.NoError(t, format.Marshal(&commands.KeepAliveInfo{}, &frames))
	require.NoError(t, format.Marshal(&commands.ShutdownInfo{}, &frames))

	in := strings.NewReader(strings.ToUpper(hex.EncodeToString(frames.Bytes())))
	var out bytes.Buffer
	require.NoError(t, run([]string{"--tight=false", "decode"}, in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "KeepAliveInfo")
	assert.Contains(t, lines[1], "ShutdownInfo")
}

func TestPingAndSend(t *testing.T) {
	broker := testutils.StartBroker(t, wire.DefaultOptions())

	var out bytes.Buffer
	require.NoError(t, run([]string{"-b", "tcp://" + broker.Addr(), "ping"}, nil, &out))
	assert.Contains(t, out.String(), "ok in")
	assert.Contains(t, out.String(), "broker wire version 2")

	out.Reset()
	require.NoError(t, run([]string{"-b", broker.Addr(), "-n", "3", "--persistent", "--pool", "puddle", "send", "queue://orders", "hi"}, nil, &out))
	assert.Contains(t, out.String(), "sent 3 messages to queue://orders")

	assert.Eventually(t, func() bool {
		var messages int
		for _, cmd := range broker.Received() {
			if cmd.IsMessage() {
				messages++
			}
		}
		return messages == 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPingUnreachable(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"-b", "127.0.0.1:1", "--timeout", "1s", "ping"}, nil, &out)
	assert.ErrorContains(t, err, "1 of 1 brokers unreachable")
	assert.Contains(t, out.String(), "127.0.0.1:1")
}

func TestRunErrors(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorContains(t, run([]string{}, nil, &out), "missing command")
	assert.ErrorContains(t, run([]string{"bogus"}, nil, &out), "unknown command")
	assert.Error(t, run([]string{"send", "queue://orders"}, nil, &out))
	assert.Error(t, run([]string{"--log-level", "loud", "ping"}, nil, &out))
	assert.Error(t, run([]string{"--unknown-flag"}, nil, &out))
}
