//go:build linux
// +build linux

package node

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fzft/go-coro-httpd/fdio"
	"github.com/fzft/go-coro-httpd/httpd"
	"github.com/fzft/go-coro-httpd/log"
)

// Reactor serves HTTP from a single goroutine: one Manager, one listening
// socket, one eventfd for shutdown, and a Conn per accepted connection.
type Reactor struct {
	cfg      Config
	engines  *engineFactory
	manager  *fdio.Manager
	listener *Listener
	waker    *Waker
	closed   bool
}

func NewReactor(cfg Config, handler httpd.Handler) (*Reactor, error) {
	engines, err := newEngineFactory(cfg, handler)
	if err != nil {
		return nil, err
	}

	poller, err := fdio.NewPoller(cfg.Poller)
	if err != nil {
		log.Logger.Error("Failed to create poller", zap.Error(err))
		return nil, err
	}

	r := &Reactor{
		cfg:     cfg,
		engines: engines,
		manager: fdio.NewManager(poller),
	}

	r.waker, err = NewWaker()
	if err != nil {
		log.Logger.Error("Failed to create eventfd", zap.Error(err))
		return nil, multierr.Append(err, poller.Close())
	}

	r.listener, err = Listen(cfg.Addr, r.manager, r.newConn)
	if err != nil {
		log.Logger.Error("Failed to listen", zap.String("addr", cfg.Addr), zap.Error(err))
		return nil, multierr.Combine(err, r.waker.Close(), poller.Close())
	}

	r.manager.Register(r.waker, r.listener)
	return r, nil
}

// Addr returns the bound listening address.
func (r *Reactor) Addr() string {
	return r.listener.Addr()
}

func (r *Reactor) newConn(fd int, addr string) (fdio.Handler, error) {
	return NewConn(fd, addr, r.engines.newEngine(addr), r.cfg.ReadSize, r.cfg.WriteSize)
}

// Run polls until Stop is called or the poller fails, then closes every
// handler. It must be called from one goroutine only.
func (r *Reactor) Run() error {
	if r.closed {
		return ErrServerClosed
	}
	defer r.closeGracefully()

	log.Logger.Info("listening", zap.String("addr", r.Addr()), zap.String("mode", string(ModeReactor)))
	for !r.waker.Stopped() {
		res, err := r.manager.Poll(r.cfg.PollTimeout)
		if err != nil {
			log.Logger.Error("poll error", zap.Error(err))
			return fmt.Errorf("reactor: %w", err)
		}
		if res.Err != nil {
			continue
		}
		if r.listener.Closed() {
			return errors.New("reactor: listener closed")
		}
	}
	log.Logger.Info("Received stop signal. Exiting event loop.")
	return nil
}

// Stop wakes the poll loop and makes Run return. Safe from any goroutine.
func (r *Reactor) Stop() error {
	return r.waker.Signal(SignalStop)
}

// closeGracefully closes the listener first so no connection is accepted
// while the rest shut down.
func (r *Reactor) closeGracefully() {
	r.closed = true
	if err := r.listener.Close(); err != nil {
		log.Logger.Debug("Failed to close listener", zap.Error(err))
	}
	if err := r.manager.CloseAll(); err != nil {
		log.Logger.Info("Failed to close connections", zap.Error(err))
	}
}
