package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fzft/go-coro-httpd/fdio"
	"github.com/fzft/go-coro-httpd/httpd"
	"github.com/fzft/go-coro-httpd/log"
	"github.com/fzft/go-coro-httpd/node"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cfg == nil {
		return
	}

	if err := log.InitLogger(log.Options{Level: cfg.LogLevel, Development: cfg.Development}); err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	s := node.NewServer(*cfg)
	if err := s.Run(); err != nil {
		log.Logger.Error("server exited", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

// parseFlags returns nil, nil when only the version was requested.
func parseFlags(args []string) (*node.Config, error) {
	cfg := node.DefaultConfig()
	fs := flag.NewFlagSet("go-coro-httpd", flag.ContinueOnError)

	var (
		mode, poller, version string
		showVersion           bool
	)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&mode, "mode", string(cfg.Mode), "reactor or threaded")
	fs.StringVar(&poller, "poller", string(cfg.Poller), "auto, epoll, poll or select")
	fs.IntVar(&cfg.ReadSize, "read-size", cfg.ReadSize, "bytes received per readable event")
	fs.IntVar(&cfg.WriteSize, "write-size", cfg.WriteSize, "bytes per send call")
	fs.DurationVar(&cfg.PollTimeout, "poll-timeout", cfg.PollTimeout, "poll timeout, negative blocks")
	fs.StringVar(&cfg.ContentType, "content-type", cfg.ContentType, "default Content-Type")
	fs.StringVar(&version, "http-version", cfg.ServerVersion.String(), "highest protocol version served")
	fs.BoolVar(&cfg.CloseOnResponse, "close-on-response", cfg.CloseOnResponse, "close the connection after a response that asks for it")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.BoolVar(&cfg.Development, "dev", cfg.Development, "development logging")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if showVersion {
		fmt.Println(versionString())
		return nil, nil
	}

	cfg.Mode = node.Mode(mode)
	kind, err := fdio.ParseKind(poller)
	if err != nil {
		return nil, err
	}
	cfg.Poller = kind
	if cfg.ServerVersion, err = httpd.ParseVersion(version); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
