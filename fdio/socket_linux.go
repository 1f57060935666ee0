//go:build linux
// +build linux

package fdio

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// SocketHandler is a Handler base that owns a socket descriptor.
type SocketHandler struct {
	BaseHandler
	addr string
	fd   int
}

func NewSocketHandler(fd int, addr string) SocketHandler {
	return SocketHandler{addr: addr, fd: fd}
}

func (h *SocketHandler) Fd() int      { return h.fd }
func (h *SocketHandler) Addr() string { return h.addr }
func (h *SocketHandler) Closed() bool { return h.fd < 0 }

// Close releases the socket. Closing twice is a no-op.
func (h *SocketHandler) Close() error {
	if h.fd < 0 {
		return nil
	}
	fd := h.fd
	h.fd = -1
	return os.NewSyscallError("close", unix.Close(fd))
}

// IsTemporaryError reports whether err means the operation would block.
func IsTemporaryError(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR)
}

// IsDisconnect reports whether err means the peer went away.
func IsDisconnect(err error) bool {
	return errors.Is(err, unix.ECONNRESET) || errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNABORTED)
}
