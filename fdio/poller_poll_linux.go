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

const (
	pollRead  = unix.POLLIN | unix.POLLPRI | unix.POLLHUP
	pollWrite = unix.POLLOUT
)

// PollPoller registers one combined event mask per descriptor with poll(2).
type PollPoller struct {
	*fdSets
	masks map[int]int16
}

func NewPollPoller() *PollPoller {
	p := &PollPoller{masks: make(map[int]int16)}
	p.fdSets = newFdSets(p)
	return p
}

func (p *PollPoller) registerReadable(fd int) error   { p.sync(fd); return nil }
func (p *PollPoller) registerWritable(fd int) error   { p.sync(fd); return nil }
func (p *PollPoller) unregisterReadable(fd int) error { p.sync(fd); return nil }
func (p *PollPoller) unregisterWritable(fd int) error { p.sync(fd); return nil }

func (p *PollPoller) sync(fd int) {
	var mask int16
	if p.readable.Has(fd) {
		mask |= pollRead
	}
	if p.writable.Has(fd) {
		mask |= pollWrite
	}
	if mask == 0 {
		delete(p.masks, fd)
		return
	}
	p.masks[fd] = mask
}

func (p *PollPoller) Poll(timeout time.Duration) (PollResult, error) {
	pfds := make([]unix.PollFd, 0, len(p.masks))
	for fd, mask := range p.masks {
		pfds = append(pfds, unix.PollFd{Fd: int32(fd), Events: mask})
	}
	sort.Slice(pfds, func(i, j int) bool { return pfds[i].Fd < pfds[j].Fd })

	if _, err := unix.Poll(pfds, timeoutMillis(timeout)); err != nil {
		if errors.Is(err, unix.EINTR) {
			return PollResult{Msg: "EINTR encountered in poll", Err: err}, nil
		}
		return PollResult{}, os.NewSyscallError("poll", err)
	}

	var res PollResult
	for _, pfd := range pfds {
		fd := int(pfd.Fd)
		ev := pfd.Revents
		if ev == 0 {
			continue
		}
		if ev&unix.POLLNVAL != 0 {
			delete(p.masks, fd)
			p.forget(fd)
			res.Inv = append(res.Inv, fd)
			continue
		}
		if ev&(pollRead|unix.POLLERR) != 0 && p.readable.Has(fd) {
			res.R = append(res.R, fd)
		}
		if ev&(pollWrite|unix.POLLERR) != 0 && p.writable.Has(fd) {
			res.W = append(res.W, fd)
		}
	}
	return res, nil
}

func (p *PollPoller) Close() error {
	return nil
}
