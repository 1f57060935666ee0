package node

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fzft/go-coro-httpd/httpd"
	"github.com/fzft/go-coro-httpd/log"
)

var ErrServerClosed = errors.New("node: server closed")

// ThreadedServer runs one goroutine per connection, each driving its own
// engine with blocking I/O.
type ThreadedServer struct {
	cfg     Config
	engines *engineFactory
	ln      net.Listener

	conns   *xsync.MapOf[net.Conn, struct{}]
	wg      sync.WaitGroup
	started atomic.Bool
	closed  atomic.Bool
	done    chan struct{}
}

func NewThreadedServer(cfg Config, handler httpd.Handler) (*ThreadedServer, error) {
	engines, err := newEngineFactory(cfg, handler)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		log.Logger.Error("listen error", zap.String("addr", cfg.Addr), zap.Error(err))
		return nil, err
	}
	return &ThreadedServer{
		cfg:     cfg,
		engines: engines,
		ln:      ln,
		conns:   xsync.NewMapOf[net.Conn, struct{}](),
		done:    make(chan struct{}),
	}, nil
}

func (s *ThreadedServer) Addr() string {
	return s.ln.Addr().String()
}

// Active returns the number of open connections.
func (s *ThreadedServer) Active() int {
	return s.conns.Size()
}

// Run accepts until Stop. It returns nil after a Stop, once every
// connection goroutine has exited. A server runs at most once.
func (s *ThreadedServer) Run() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrServerClosed
	}
	defer close(s.done)
	if s.closed.Load() {
		return ErrServerClosed
	}
	log.Logger.Info("listening", zap.String("addr", s.Addr()), zap.String("mode", string(ModeThreaded)))
	for {
		c, err := s.ln.Accept()
		if err != nil {
			if s.closed.Load() {
				s.wg.Wait()
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			log.Logger.Error("accept error", zap.Error(err))
			return err
		}

		s.wg.Add(1)
		s.conns.Store(c, struct{}{})
		if s.closed.Load() {
			// raced with Stop after its sweep
			_ = c.Close()
		}
		go s.serve(c)
	}
}

func (s *ThreadedServer) serve(c net.Conn) {
	defer s.wg.Done()
	defer s.conns.Delete(c)
	defer c.Close()

	addr := c.RemoteAddr().String()
	log.Logger.Debug("new connection", zap.String("client", addr))
	if err := ServeConn(c, s.engines.newEngine(addr), s.cfg.ReadSize); err != nil && !s.closed.Load() {
		log.Logger.Debug("connection ended", zap.String("client", addr), zap.Error(err))
	}
}

// Stop closes the listener and every live connection, then waits for the
// accept loop and the connection goroutines to exit.
func (s *ThreadedServer) Stop() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	errs := s.ln.Close()
	s.conns.Range(func(c net.Conn, _ struct{}) bool {
		if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = multierr.Append(errs, err)
		}
		return true
	})
	// Run is the only caller of wg.Add; once it has returned Wait is safe.
	if s.started.Load() {
		<-s.done
	}
	s.wg.Wait()
	return errs
}
