package fdio

import (
	"fmt"
	"strings"
)

// Kind names a Poller implementation.
type Kind string

const (
	KindAuto   Kind = "auto"
	KindEpoll  Kind = "epoll"
	KindPoll   Kind = "poll"
	KindSelect Kind = "select"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindAuto, KindEpoll, KindPoll, KindSelect:
		return k, nil
	}
	return "", fmt.Errorf("unknown poller %q", s)
}
