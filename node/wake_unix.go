//go:build linux
// +build linux

package node

import (
	"os"
	"sync"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/fzft/go-coro-httpd/fdio"
	"github.com/fzft/go-coro-httpd/log"
)

type pipeSignal uint64

// SignalStop sits far above any count of unread wake-ups, since eventfd
// adds them up.
const SignalStop pipeSignal = 1 << 32

// Waker is an eventfd registered with the Manager so another goroutine
// can interrupt a blocking poll.
type Waker struct {
	fdio.SocketHandler

	mu      sync.Mutex // guards the fd against Signal racing Close
	stopped bool
}

func NewWaker() (*Waker, error) {
	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("eventfd", err)
	}
	return &Waker{SocketHandler: fdio.NewSocketHandler(efd, "eventfd")}, nil
}

func (w *Waker) Readable() bool {
	return true
}

// OnReadable drains the counter.
func (w *Waker) OnReadable() error {
	var buf uint64
	_, err := unix.Read(w.Fd(), (*(*[8]byte)(unsafe.Pointer(&buf)))[:])
	if err != nil {
		if fdio.IsTemporaryError(err) {
			return nil
		}
		return os.NewSyscallError("read", err)
	}
	if pipeSignal(buf) >= SignalStop {
		w.stopped = true
	}
	return nil
}

func (w *Waker) OnError(err error) {
	log.Logger.Error("Failed to read from event fd", zap.Error(err))
}

// Stopped reports whether SignalStop has been received.
func (w *Waker) Stopped() bool {
	return w.stopped
}

// Signal writes sig to the eventfd. It is safe to call from any goroutine.
func (w *Waker) Signal(sig pipeSignal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Closed() {
		return fdio.ErrClosed
	}
	_, err := unix.Write(w.Fd(), (*(*[8]byte)(unsafe.Pointer(&sig)))[:])
	if err != nil {
		log.Logger.Error("Failed to write to event fd", zap.Error(err))
		return os.NewSyscallError("write", err)
	}
	return nil
}

func (w *Waker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.SocketHandler.Close()
}
