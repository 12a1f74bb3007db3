// openwire-cli talks to ActiveMQ brokers over OpenWire.
//
//	openwire-cli [flags] ping
//	openwire-cli [flags] send <destination> <text>
//	openwire-cli [flags] encode <destination> <text>
//	openwire-cli [flags] decode < frames.hex
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var f flags
	fs := pflag.NewFlagSet("openwire-cli", pflag.ContinueOnError)
	f.register(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: openwire-cli [flags] ping | send <dest> <text> | encode <dest> <text> | decode\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	cfg.override(fs, &f)

	logger, err := cfg.logger(os.Stderr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	switch cmd, params := rest[0], rest[1:]; cmd {
	case "ping":
		return runPing(ctx, &cfg, logger, stdout)
	case "send":
		if len(params) != 2 {
			return errors.New("usage: send <destination> <text>")
		}
		return runSend(ctx, &cfg, logger, stdout, params[0], params[1], f.count, f.persistent)
	case "encode":
		if len(params) != 2 {
			return errors.New("usage: encode <destination> <text>")
		}
		return runEncode(&cfg, stdout, params[0], params[1], f.persistent)
	case "decode":
		return runDecode(&cfg, stdin, stdout)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
