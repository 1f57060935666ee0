package fdio

import (
	"errors"
)

var (
	// ErrNotApplicable is returned by a callback the handler never asked for.
	// The Manager treats it as a programming error.
	ErrNotApplicable = errors.New("fdio: callback not applicable")

	// ErrInvalidFd is passed to OnError when the poller reports a handler's
	// descriptor as invalid.
	ErrInvalidFd = errors.New("fdio: invalid file descriptor")

	// ErrClosed is returned by a Manager after CloseAll.
	ErrClosed = errors.New("fdio: manager closed")
)

// Handler is an event handler driven by a Manager. Implementations must be
// pointer types: the Manager keys handlers by identity.
type Handler interface {
	// Fd returns the watched descriptor, or -1 once closed.
	Fd() int
	Closed() bool
	Close() error

	// Readable and Writable are asked before every poll.
	Readable() bool
	Writable() bool

	OnReadable() error
	OnWritable() error

	// OnError is called with the error returned by a failed callback.
	OnError(err error)
}

// BaseHandler supplies the defaults: interested in nothing, callbacks not
// applicable, errors ignored. Embed it and override what is needed.
type BaseHandler struct{}

func (BaseHandler) Readable() bool    { return false }
func (BaseHandler) Writable() bool    { return false }
func (BaseHandler) OnReadable() error { return ErrNotApplicable }
func (BaseHandler) OnWritable() error { return ErrNotApplicable }
func (BaseHandler) OnError(error)     {}
