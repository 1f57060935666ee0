//go:build linux
// +build linux

package node

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/fzft/go-coro-httpd/fdio"
)

func TestWaker(t *testing.T) {
	w, err := NewWaker()
	require.NoError(t, err)

	require.NoError(t, w.OnReadable())
	assert.False(t, w.Stopped())

	require.NoError(t, w.Signal(1))
	require.NoError(t, w.Signal(1))
	require.NoError(t, w.OnReadable())
	assert.False(t, w.Stopped())

	require.NoError(t, w.Signal(1))
	require.NoError(t, w.Signal(SignalStop))
	require.NoError(t, w.OnReadable())
	assert.True(t, w.Stopped())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Signal(SignalStop), fdio.ErrClosed)
}

func TestWakerInterruptsPoll(t *testing.T) {
	w, err := NewWaker()
	require.NoError(t, err)
	p, err := fdio.NewPoller(fdio.KindEpoll)
	require.NoError(t, err)
	m := fdio.NewManager(p)
	defer m.CloseAll()
	m.Register(w)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = w.Signal(SignalStop)
	}()
	_, err = m.Poll(fdio.Forever)
	require.NoError(t, err)
	assert.True(t, w.Stopped())
}

func TestListenerAccepts(t *testing.T) {
	p, err := fdio.NewPoller(fdio.KindPoll)
	require.NoError(t, err)
	m := fdio.NewManager(p)
	defer m.CloseAll()

	var accepted []string
	l, err := Listen("127.0.0.1:0", m, func(fd int, addr string) (fdio.Handler, error) {
		accepted = append(accepted, addr)
		h := fdio.NewSocketHandler(fd, addr)
		return &h, nil
	})
	require.NoError(t, err)
	m.Register(l)
	assert.True(t, strings.HasPrefix(l.Addr(), "127.0.0.1:"))
	assert.NotEqual(t, "127.0.0.1:0", l.Addr())

	c, err := net.Dial("tcp", l.Addr())
	require.NoError(t, err)
	defer c.Close()

	_, err = m.Poll(time.Second)
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, c.LocalAddr().String(), accepted[0])
	assert.Equal(t, 2, m.Len())
}

func TestListenerAddressInUse(t *testing.T) {
	p, err := fdio.NewPoller(fdio.KindSelect)
	require.NoError(t, err)
	m := fdio.NewManager(p)
	defer m.CloseAll()

	l, err := Listen("127.0.0.1:0", m, nil)
	require.NoError(t, err)
	m.Register(l)

	_, err = Listen(l.Addr(), m, nil)
	assert.ErrorIs(t, err, unix.EADDRINUSE)
}

func TestSockaddrString(t *testing.T) {
	assert.Equal(t, "10.0.0.1:80", sockaddrString(&unix.SockaddrInet4{Port: 80, Addr: [4]byte{10, 0, 0, 1}}))
	assert.Equal(t, "[::1]:443", sockaddrString(&unix.SockaddrInet6{Port: 443, Addr: [16]byte{15: 1}}))
	assert.Equal(t, "/tmp/s", sockaddrString(&unix.SockaddrUnix{Name: "/tmp/s"}))
}
