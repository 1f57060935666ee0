//go:build linux
// +build linux

package fdio

import (
	"errors"
	"fmt"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// maxSelectFd is FD_SETSIZE: one bit per descriptor in unix.FdSet.
const maxSelectFd = int(unsafe.Sizeof(unix.FdSet{})) * 8

// SelectPoller is the portable fallback built on select(2).
type SelectPoller struct {
	*fdSets
}

func NewSelectPoller() *SelectPoller {
	return &SelectPoller{fdSets: newFdSets(nil)}
}

func (p *SelectPoller) Poll(timeout time.Duration) (PollResult, error) {
	var rset, wset unix.FdSet
	nfd := 0
	for fd := range p.readable {
		if fd >= maxSelectFd {
			return PollResult{}, fmt.Errorf("select: fd %d exceeds FD_SETSIZE %d", fd, maxSelectFd)
		}
		rset.Set(fd)
		if fd+1 > nfd {
			nfd = fd + 1
		}
	}
	for fd := range p.writable {
		if fd >= maxSelectFd {
			return PollResult{}, fmt.Errorf("select: fd %d exceeds FD_SETSIZE %d", fd, maxSelectFd)
		}
		wset.Set(fd)
		if fd+1 > nfd {
			nfd = fd + 1
		}
	}

	var tv *unix.Timeval
	if timeout >= 0 {
		t := unix.NsecToTimeval(timeout.Nanoseconds())
		tv = &t
	}

	if _, err := unix.Select(nfd, &rset, &wset, nil, tv); err != nil {
		switch {
		case errors.Is(err, unix.EINTR):
			return PollResult{Msg: "EINTR encountered in poll", Err: err}, nil
		case errors.Is(err, unix.EBADF):
			return PollResult{Msg: "EBADF encountered in poll", Err: err}, nil
		}
		return PollResult{}, os.NewSyscallError("select", err)
	}

	var res PollResult
	for _, fd := range p.readable.Sorted() {
		if rset.IsSet(fd) {
			res.R = append(res.R, fd)
		}
	}
	for _, fd := range p.writable.Sorted() {
		if wset.IsSet(fd) {
			res.W = append(res.W, fd)
		}
	}
	return res, nil
}

func (p *SelectPoller) Close() error {
	return nil
}
