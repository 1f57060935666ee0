//go:build linux
// +build linux

package fdio

import (
	"errors"
	"os"
	"sort"
	"time"

	"golang.org/x/sys/unix"
)

// https://copyconstruct.medium.com/the-method-to-epolls-madness-d9d2d6378642

const (
	readEvents  = unix.EPOLLPRI | unix.EPOLLIN
	writeEvents = unix.EPOLLOUT

	// reported regardless of the registered mask
	hangupEvents = unix.EPOLLHUP | unix.EPOLLERR | unix.EPOLLRDHUP

	defaultEpollEvents = 128
)

// EpollPoller is a level triggered epoll(7) Poller. It keeps track of the
// mask each fd is registered with so a change is a single epoll_ctl call.
type EpollPoller struct {
	*fdSets
	epollFd  int
	epollSet map[int]uint32
	events   []unix.EpollEvent
}

func NewEpollPoller() (*EpollPoller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	p := &EpollPoller{
		epollFd:  epfd,
		epollSet: make(map[int]uint32),
		events:   make([]unix.EpollEvent, defaultEpollEvents),
	}
	p.fdSets = newFdSets(p)
	return p, nil
}

func (p *EpollPoller) registerReadable(fd int) error   { return p.sync(fd) }
func (p *EpollPoller) registerWritable(fd int) error   { return p.sync(fd) }
func (p *EpollPoller) unregisterReadable(fd int) error { return p.sync(fd) }
func (p *EpollPoller) unregisterWritable(fd int) error { return p.sync(fd) }

// sync moves fd to the mask implied by the readable and writable sets.
func (p *EpollPoller) sync(fd int) error {
	var mask uint32
	if p.readable.Has(fd) {
		mask |= readEvents
	}
	if p.writable.Has(fd) {
		mask |= writeEvents
	}

	current, ok := p.epollSet[fd]
	switch {
	case mask == 0 && !ok:
		return nil
	case mask == 0:
		delete(p.epollSet, fd)
		return p.delete(fd)
	case ok && current == mask:
		return nil
	case ok:
		err := p.mod(fd, mask)
		// a closed fd leaves the epoll set on its own and its number may
		// have been reused since
		if errors.Is(err, unix.ENOENT) {
			err = p.add(fd, mask)
		}
		if err != nil {
			return err
		}
	default:
		if err := p.add(fd, mask); err != nil {
			return err
		}
	}
	p.epollSet[fd] = mask
	return nil
}

func (p *EpollPoller) add(fd int, mask uint32) error {
	return os.NewSyscallError("epoll_ctl add",
		unix.EpollCtl(p.epollFd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: mask}))
}

func (p *EpollPoller) mod(fd int, mask uint32) error {
	return os.NewSyscallError("epoll_ctl mod",
		unix.EpollCtl(p.epollFd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: mask}))
}

// delete ignores descriptors that were closed before being unregistered.
func (p *EpollPoller) delete(fd int) error {
	err := unix.EpollCtl(p.epollFd, unix.EPOLL_CTL_DEL, fd, nil)
	if errors.Is(err, unix.EBADF) || errors.Is(err, unix.ENOENT) {
		return nil
	}
	return os.NewSyscallError("epoll_ctl del", err)
}

func (p *EpollPoller) Poll(timeout time.Duration) (PollResult, error) {
	n, err := unix.EpollWait(p.epollFd, p.events, timeoutMillis(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return PollResult{Msg: "EINTR encountered in poll", Err: err}, nil
		}
		return PollResult{}, os.NewSyscallError("epoll_wait", err)
	}

	var res PollResult
	for i := 0; i < n; i++ {
		ev := &p.events[i]
		fd := int(ev.Fd)
		if ev.Events&(readEvents|hangupEvents) != 0 && p.readable.Has(fd) {
			res.R = append(res.R, fd)
		}
		if ev.Events&(writeEvents|unix.EPOLLERR) != 0 && p.writable.Has(fd) {
			res.W = append(res.W, fd)
		}
	}
	sort.Ints(res.R)
	sort.Ints(res.W)

	// grow the event buffer when it was filled
	if n == len(p.events) {
		p.events = make([]unix.EpollEvent, 2*n)
	}
	return res, nil
}

func (p *EpollPoller) Close() error {
	if p.epollFd < 0 {
		return nil
	}
	err := unix.Close(p.epollFd)
	p.epollFd = -1
	return os.NewSyscallError("close", err)
}
