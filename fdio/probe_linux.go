//go:build linux
// +build linux

package fdio

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/fzft/go-coro-httpd/log"
)

// NewPoller builds the requested Poller. KindAuto picks the most capable
// primitive the OS supports, in the order epoll, poll, select.
func NewPoller(kind Kind) (Poller, error) {
	switch kind {
	case KindEpoll:
		return NewEpollPoller()
	case KindPoll:
		return NewPollPoller(), nil
	case KindSelect:
		return NewSelectPoller(), nil
	case KindAuto, "":
	default:
		return nil, fmt.Errorf("unknown poller %q", kind)
	}

	p, err := NewEpollPoller()
	if err == nil {
		log.Logger.Debug("Using poller", zap.String("kind", string(KindEpoll)))
		return p, nil
	}
	log.Logger.Debug("epoll unavailable", zap.Error(err))

	if _, err := unix.Poll(nil, 0); err == nil {
		log.Logger.Debug("Using poller", zap.String("kind", string(KindPoll)))
		return NewPollPoller(), nil
	}
	log.Logger.Debug("Using poller", zap.String("kind", string(KindSelect)))
	return NewSelectPoller(), nil
}
