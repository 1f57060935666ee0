package node

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fzft/go-coro-httpd/fdio"
	"github.com/fzft/go-coro-httpd/httpd"
	"github.com/fzft/go-coro-httpd/log"
)

// Server runs the configured Mode until SIGINT, SIGTERM or SIGQUIT.
type Server struct {
	cfg     Config
	handler httpd.Handler
}

func NewServer(cfg Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) SetHandler(handler httpd.Handler) {
	s.handler = handler
}

func (s *Server) Run() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	r, err := s.newRunner()
	if err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(signals)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-signals:
			log.Logger.Info("signal received", zap.Stringer("signal", sig))
			if err := r.Stop(); err != nil {
				log.Logger.Warn("stop failed", zap.Error(err))
			}
		case <-done:
		}
	}()

	// blocking
	err = r.Run()
	log.Logger.Info("shutting down server")
	if stopErr := r.Stop(); stopErr != nil && !errors.Is(stopErr, fdio.ErrClosed) {
		err = multierr.Append(err, stopErr)
	}
	return err
}

func (s *Server) newRunner() (runner, error) {
	if s.cfg.Mode == ModeThreaded {
		return NewThreadedServer(s.cfg, s.handler)
	}
	return NewReactor(s.cfg, s.handler)
}
