package fdio

import (
	"sort"
	"time"

	"go.uber.org/multierr"
)

// Forever makes Poll block until something is ready.
const Forever time.Duration = -1

// Fds is a set of file descriptors.
type Fds map[int]struct{}

func NewFds(fds ...int) Fds {
	s := make(Fds, len(fds))
	for _, fd := range fds {
		s[fd] = struct{}{}
	}
	return s
}

func (s Fds) Has(fd int) bool {
	_, ok := s[fd]
	return ok
}

// Sorted returns the members in ascending order.
func (s Fds) Sorted() []int {
	out := make([]int, 0, len(s))
	for fd := range s {
		out = append(out, fd)
	}
	sort.Ints(out)
	return out
}

func (s Fds) clone() Fds {
	c := make(Fds, len(s))
	for fd := range s {
		c[fd] = struct{}{}
	}
	return c
}

// PollResult reports one poll. A non-nil Err is a transient fault (EINTR,
// EBADF) the caller may retry; fatal faults are returned as errors instead.
type PollResult struct {
	R   []int
	W   []int
	Inv []int // descriptors the OS reported invalid; already deregistered

	Msg string
	Err error
}

// Poller watches file descriptors for readiness.
type Poller interface {
	Readable() Fds
	Writable() Fds

	// Register/Unregister calls are idempotent and report whether the set changed.
	RegisterReadable(fd int) (bool, error)
	RegisterWritable(fd int) (bool, error)
	UnregisterReadable(fd int) (bool, error)
	UnregisterWritable(fd int) (bool, error)

	// Update reconciles the watched sets with r and w using the minimal
	// number of register and unregister calls.
	Update(r, w Fds) error

	// Poll blocks for up to timeout, or indefinitely when timeout is Forever.
	Poll(timeout time.Duration) (PollResult, error)

	Close() error
}

// registrationHooks propagate set changes to the OS primitive.
type registrationHooks interface {
	registerReadable(fd int) error
	registerWritable(fd int) error
	unregisterReadable(fd int) error
	unregisterWritable(fd int) error
}

type nopHooks struct{}

func (nopHooks) registerReadable(int) error   { return nil }
func (nopHooks) registerWritable(int) error   { return nil }
func (nopHooks) unregisterReadable(int) error { return nil }
func (nopHooks) unregisterWritable(int) error { return nil }

// fdSets holds the readable and writable sets shared by every Poller.
type fdSets struct {
	readable Fds
	writable Fds
	hooks    registrationHooks
}

func newFdSets(hooks registrationHooks) *fdSets {
	if hooks == nil {
		hooks = nopHooks{}
	}
	return &fdSets{
		readable: make(Fds),
		writable: make(Fds),
		hooks:    hooks,
	}
}

func (s *fdSets) Readable() Fds { return s.readable.clone() }
func (s *fdSets) Writable() Fds { return s.writable.clone() }

func (s *fdSets) RegisterReadable(fd int) (bool, error) {
	return add(s.readable, fd, s.hooks.registerReadable)
}

func (s *fdSets) RegisterWritable(fd int) (bool, error) {
	return add(s.writable, fd, s.hooks.registerWritable)
}

func (s *fdSets) UnregisterReadable(fd int) (bool, error) {
	return remove(s.readable, fd, s.hooks.unregisterReadable)
}

func (s *fdSets) UnregisterWritable(fd int) (bool, error) {
	return remove(s.writable, fd, s.hooks.unregisterWritable)
}

// add inserts fd and runs hook; the set is rolled back if hook fails.
func add(set Fds, fd int, hook func(int) error) (bool, error) {
	if set.Has(fd) {
		return false, nil
	}
	set[fd] = struct{}{}
	if err := hook(fd); err != nil {
		delete(set, fd)
		return false, err
	}
	return true, nil
}

func remove(set Fds, fd int, hook func(int) error) (bool, error) {
	if !set.Has(fd) {
		return false, nil
	}
	delete(set, fd)
	if err := hook(fd); err != nil {
		return true, err
	}
	return true, nil
}

func (s *fdSets) Update(r, w Fds) error {
	var errs error
	for _, fd := range r.Sorted() {
		if !s.readable.Has(fd) {
			_, err := s.RegisterReadable(fd)
			errs = multierr.Append(errs, err)
		}
	}
	for _, fd := range w.Sorted() {
		if !s.writable.Has(fd) {
			_, err := s.RegisterWritable(fd)
			errs = multierr.Append(errs, err)
		}
	}
	for _, fd := range s.readable.Sorted() {
		if !r.Has(fd) {
			_, err := s.UnregisterReadable(fd)
			errs = multierr.Append(errs, err)
		}
	}
	for _, fd := range s.writable.Sorted() {
		if !w.Has(fd) {
			_, err := s.UnregisterWritable(fd)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// forget drops fd from both sets without running hooks.
func (s *fdSets) forget(fd int) {
	delete(s.readable, fd)
	delete(s.writable, fd)
}

// timeoutMillis converts a poll timeout, rounding sub-millisecond waits up so
// a short timeout never turns into a busy loop.
func timeoutMillis(timeout time.Duration) int {
	if timeout < 0 {
		return -1
	}
	ms := int(timeout / time.Millisecond)
	if ms == 0 && timeout > 0 {
		ms = 1
	}
	return ms
}
