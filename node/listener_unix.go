//go:build linux
// +build linux

package node

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/fzft/go-coro-httpd/fdio"
	"github.com/fzft/go-coro-httpd/log"
)

// acceptBatch bounds the accepts done per readable notification so a
// connection storm cannot starve established connections.
const acceptBatch = 64

// Listener accepts connections on a non-blocking listening socket and
// registers a handler for each with the Manager.
type Listener struct {
	fdio.SocketHandler
	manager *fdio.Manager
	newConn func(fd int, addr string) (fdio.Handler, error)
}

// Listen binds addr and returns the listening handler.
func Listen(addr string, manager *fdio.Manager, newConn func(fd int, addr string) (fdio.Handler, error)) (*Listener, error) {
	fd, bound, err := listenFd(addr)
	if err != nil {
		return nil, err
	}
	return &Listener{
		SocketHandler: fdio.NewSocketHandler(fd, bound),
		manager:       manager,
		newConn:       newConn,
	}, nil
}

func (l *Listener) Readable() bool {
	return true
}

func (l *Listener) OnReadable() error {
	for i := 0; i < acceptBatch; i++ {
		connFd, sa, err := unix.Accept4(l.Fd(), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if fdio.IsTemporaryError(err) || fdio.IsDisconnect(err) {
				return nil
			}
			return os.NewSyscallError("accept4", err)
		}

		addr := sockaddrString(sa)
		h, err := l.newConn(connFd, addr)
		if err != nil {
			log.Logger.Warn("Failed to start connection", zap.String("client", addr), zap.Error(err))
			_ = unix.Close(connFd)
			continue
		}
		if h.Closed() {
			continue
		}
		l.manager.Register(h)
		log.Logger.Debug("new connection", zap.Int("fd", connFd), zap.String("client", addr))
	}
	return nil
}

// OnError keeps listening; accept failures such as EMFILE are transient.
func (l *Listener) OnError(err error) {
	log.Logger.Error("accept error", zap.String("addr", l.Addr()), zap.Error(err))
}

func listenFd(addr string) (int, string, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return -1, "", err
	}

	family := unix.AF_INET
	var sa unix.Sockaddr
	if ip4 := tcpAddr.IP.To4(); ip4 != nil || tcpAddr.IP == nil {
		sa4 := &unix.SockaddrInet4{Port: tcpAddr.Port}
		copy(sa4.Addr[:], ip4)
		sa = sa4
	} else {
		family = unix.AF_INET6
		sa6 := &unix.SockaddrInet6{Port: tcpAddr.Port}
		copy(sa6.Addr[:], tcpAddr.IP.To16())
		sa = sa6
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, "", os.NewSyscallError("socket", err)
	}
	fail := func(op string, err error) (int, string, error) {
		_ = unix.Close(fd)
		return -1, "", os.NewSyscallError(op, err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail("setsockopt", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		return fail("bind", err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		return fail("listen", err)
	}
	bound, err := unix.Getsockname(fd)
	if err != nil {
		return fail("getsockname", err)
	}
	return fd, sockaddrString(bound), nil
}

func sockaddrString(sa unix.Sockaddr) string {
	switch addr := sa.(type) {
	case *unix.SockaddrInet4:
		ip := net.IPv4(addr.Addr[0], addr.Addr[1], addr.Addr[2], addr.Addr[3])
		return net.JoinHostPort(ip.String(), strconv.Itoa(addr.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(addr.Addr[:]).String(), strconv.Itoa(addr.Port))
	case *unix.SockaddrUnix:
		return addr.Name
	}
	return fmt.Sprintf("%T", sa)
}
