package node

import (
	"fmt"
	"time"

	"github.com/fzft/go-coro-httpd/fdio"
	"github.com/fzft/go-coro-httpd/httpd"
)

// Mode selects how connections are driven.
type Mode string

const (
	// ModeReactor drives every connection from one poll loop.
	ModeReactor Mode = "reactor"
	// ModeThreaded drives each connection from its own goroutine with blocking I/O.
	ModeThreaded Mode = "threaded"
)

const (
	DefaultAddr      = ":8080"
	DefaultReadSize  = 0x10000
	DefaultWriteSize = 0x10000
)

type Config struct {
	Addr   string
	Mode   Mode
	Poller fdio.Kind

	ReadSize    int           // bytes received per readable notification
	WriteSize   int           // bytes per send call
	PollTimeout time.Duration // fdio.Forever blocks until an event arrives

	ContentType     string
	ServerVersion   httpd.Version
	CloseOnResponse bool

	LogLevel    string
	Development bool
}

func DefaultConfig() Config {
	return Config{
		Addr:          DefaultAddr,
		Mode:          ModeReactor,
		Poller:        fdio.KindAuto,
		ReadSize:      DefaultReadSize,
		WriteSize:     DefaultWriteSize,
		PollTimeout:   fdio.Forever,
		ContentType:   httpd.DefaultContentType,
		ServerVersion: httpd.HTTP11,
		LogLevel:      "info",
	}
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeReactor, ModeThreaded:
	default:
		return fmt.Errorf("invalid mode %q", c.Mode)
	}
	if _, err := fdio.ParseKind(string(c.Poller)); err != nil {
		return err
	}
	if c.Addr == "" {
		return fmt.Errorf("empty listen address")
	}
	if c.ReadSize <= 0 {
		return fmt.Errorf("read size must be positive, got %d", c.ReadSize)
	}
	if c.WriteSize <= 0 {
		return fmt.Errorf("write size must be positive, got %d", c.WriteSize)
	}
	if !c.ServerVersion.AtLeast(httpd.HTTP10) || !c.ServerVersion.Less(httpd.HTTP20) {
		return fmt.Errorf("unsupported server version %s", c.ServerVersion)
	}
	return nil
}

// engineFactory builds one protocol engine per connection.
type engineFactory struct {
	handler httpd.Handler
	opts    []httpd.Option
}

func newEngineFactory(cfg Config, handler httpd.Handler) (*engineFactory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		handler = EchoHandler{}
	}
	parser, err := httpd.NewRequestParser(cfg.ServerVersion, httpd.DefaultMaxLine, httpd.DefaultMaxHeaders)
	if err != nil {
		return nil, err
	}
	return &engineFactory{
		handler: handler,
		opts: []httpd.Option{
			httpd.WithParser(parser),
			httpd.WithDefaultContentType(cfg.ContentType),
			httpd.WithCloseOnResponse(cfg.CloseOnResponse),
		},
	}, nil
}

func (f *engineFactory) newEngine(clientAddr string) *httpd.Server {
	return httpd.NewServer(clientAddr, f.handler, f.opts...)
}
