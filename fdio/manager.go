package fdio

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fzft/go-coro-httpd/log"
)

// Manager owns a Poller and the handlers it dispatches to. Handlers are
// kept in registration order; closed handlers are reaped after each poll.
type Manager struct {
	poller   Poller
	handlers []Handler
	index    map[Handler]struct{}

	// fd each handler was last polled with; Fd() reads -1 after Close
	watched map[Handler]int
	stale   []int
	closed  bool
}

func NewManager(p Poller) *Manager {
	return &Manager{
		poller:  p,
		index:   make(map[Handler]struct{}),
		watched: make(map[Handler]int),
	}
}

func (m *Manager) Poller() Poller { return m.poller }

func (m *Manager) Len() int { return len(m.handlers) }

// Register adds handlers. Registering the same handler twice is a no-op.
// It is safe to call from a handler callback; the new handler is first
// polled on the next cycle.
func (m *Manager) Register(hs ...Handler) {
	for _, h := range hs {
		if _, ok := m.index[h]; ok {
			continue
		}
		m.index[h] = struct{}{}
		m.handlers = append(m.handlers, h)
	}
}

// Unregister removes h without closing it.
func (m *Manager) Unregister(h Handler) bool {
	if _, ok := m.index[h]; !ok {
		return false
	}
	delete(m.index, h)
	if fd, ok := m.watched[h]; ok {
		delete(m.watched, h)
		m.stale = append(m.stale, fd)
	}
	for i, x := range m.handlers {
		if x == h {
			m.handlers = append(m.handlers[:i], m.handlers[i+1:]...)
			break
		}
	}
	return true
}

// Poll runs one cycle: collect interest from the open handlers, reconcile
// the poller, wait, dispatch, then reap closed handlers. A transient poll
// fault is reported through PollResult.Err; the returned error is fatal.
func (m *Manager) Poll(timeout time.Duration) (PollResult, error) {
	if m.closed {
		return PollResult{}, ErrClosed
	}
	if err := m.sweep(); err != nil {
		return PollResult{}, err
	}

	rd := make(map[int]Handler)
	wr := make(map[int]Handler)
	r, w := make(Fds), make(Fds)
	for _, h := range m.handlers {
		if h.Closed() {
			continue
		}
		m.watched[h] = h.Fd()
		if h.Readable() {
			rd[h.Fd()] = h
			r[h.Fd()] = struct{}{}
		}
		if h.Writable() {
			wr[h.Fd()] = h
			w[h.Fd()] = struct{}{}
		}
	}

	if err := m.poller.Update(r, w); err != nil {
		return PollResult{}, fmt.Errorf("update poller: %w", err)
	}

	res, err := m.poller.Poll(timeout)
	if err != nil {
		return res, err
	}
	if res.Err != nil {
		log.Logger.Debug(res.Msg, zap.Error(res.Err))
	}

	for _, fd := range res.R {
		if err := dispatch(rd[fd], Handler.OnReadable); err != nil {
			return res, err
		}
	}
	for _, fd := range res.W {
		if err := dispatch(wr[fd], Handler.OnWritable); err != nil {
			return res, err
		}
	}
	for _, fd := range res.Inv {
		h := rd[fd]
		if h == nil {
			h = wr[fd]
		}
		if h != nil && !h.Closed() {
			h.OnError(fmt.Errorf("%w: %d", ErrInvalidFd, fd))
		}
	}

	return res, m.sweep()
}

// dispatch runs cb on h unless h closed earlier in the same cycle. Only
// ErrNotApplicable escapes; other failures go to OnError.
func dispatch(h Handler, cb func(Handler) error) error {
	if h == nil || h.Closed() {
		return nil
	}
	err := cb(h)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotApplicable) {
		return fmt.Errorf("fd %d: %w", h.Fd(), err)
	}
	h.OnError(err)
	return nil
}

func (m *Manager) reap() {
	kept := m.handlers[:0]
	for _, h := range m.handlers {
		if h.Closed() {
			delete(m.index, h)
			if fd, ok := m.watched[h]; ok {
				delete(m.watched, h)
				m.stale = append(m.stale, fd)
			}
			continue
		}
		kept = append(kept, h)
	}
	for i := len(kept); i < len(m.handlers); i++ {
		m.handlers[i] = nil
	}
	m.handlers = kept
}

// sweep reaps closed handlers and releases their descriptors.
func (m *Manager) sweep() error {
	m.reap()
	if err := m.dropStale(); err != nil {
		return fmt.Errorf("update poller: %w", err)
	}
	return nil
}

// dropStale unregisters descriptors of reaped handlers so that a reused fd
// number is registered afresh with the OS.
func (m *Manager) dropStale() error {
	var errs error
	for _, fd := range m.stale {
		_, err := m.poller.UnregisterReadable(fd)
		errs = multierr.Append(errs, err)
		_, err = m.poller.UnregisterWritable(fd)
		errs = multierr.Append(errs, err)
	}
	m.stale = m.stale[:0]
	return errs
}

// CloseAll closes every handler and then the poller.
func (m *Manager) CloseAll() error {
	if m.closed {
		return nil
	}
	m.closed = true
	var errs error
	for _, h := range m.handlers {
		errs = multierr.Append(errs, h.Close())
	}
	m.handlers = nil
	m.index = make(map[Handler]struct{})
	m.watched = make(map[Handler]int)
	m.stale = nil
	errs = multierr.Append(errs, m.poller.Update(Fds{}, Fds{}))
	return multierr.Append(errs, m.poller.Close())
}
