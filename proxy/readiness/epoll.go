// Package readiness wraps the OS I/O multiplexer behind the small interface
// the event loop needs: register a file descriptor for read/write
// readiness, modify or drop that registration, and block until something is
// ready. It is the concrete form of golang.org/x/sys/unix's epoll, the same
// primitive Python's selectors.DefaultSelector wraps on Linux.
package readiness

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Interest is a bitmask of the readiness a registration cares about.
type Interest uint8

const (
	Read Interest = 1 << iota
	Write
)

func (i Interest) toEpollEvents() uint32 {
	var events uint32
	if i&Read != 0 {
		events |= unix.EPOLLIN
	}
	if i&Write != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}

// Ready describes one readiness event returned from Select: the tag
// attached at Register/Modify time, and which interests fired.
type Ready struct {
	Tag      any
	Readable bool
	Writable bool
}

// Set is an epoll instance plus the fd -> tag bookkeeping epoll_event
// doesn't carry for us (its data word only has room for one int32 fd).
type Set struct {
	epfd int

	mu   sync.Mutex
	tags map[int32]any
}

// New creates a fresh, empty readiness Set.
func New() (*Set, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("readiness: epoll_create1: %w", err)
	}
	return &Set{epfd: epfd, tags: make(map[int32]any)}, nil
}

// Register starts watching fd for the given interest, attaching tag so
// Select can report it back on readiness.
func (s *Set) Register(fd int, interest Interest, tag any) error {
	s.mu.Lock()
	s.tags[int32(fd)] = tag
	s.mu.Unlock()

	ev := unix.EpollEvent{Events: interest.toEpollEvents(), Fd: int32(fd)}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		s.mu.Lock()
		delete(s.tags, int32(fd))
		s.mu.Unlock()
		return fmt.Errorf("readiness: epoll_ctl(ADD, %d): %w", fd, err)
	}
	return nil
}

// Modify changes the interest (and/or tag) of an already-registered fd.
func (s *Set) Modify(fd int, interest Interest, tag any) error {
	s.mu.Lock()
	s.tags[int32(fd)] = tag
	s.mu.Unlock()

	ev := unix.EpollEvent{Events: interest.toEpollEvents(), Fd: int32(fd)}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("readiness: epoll_ctl(MOD, %d): %w", fd, err)
	}
	return nil
}

// Unregister stops watching fd entirely.
func (s *Set) Unregister(fd int) error {
	s.mu.Lock()
	delete(s.tags, int32(fd))
	s.mu.Unlock()

	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("readiness: epoll_ctl(DEL, %d): %w", fd, err)
	}
	return nil
}

// maxEvents bounds how many readiness events Select retrieves per call; the
// event loop drains all of them before blocking again.
const maxEvents = 256

// Select blocks until at least one registered fd is ready, then returns the
// ready set. It blocks indefinitely (no timeout), matching
// selectors.BaseSelector.select() with no timeout argument.
func (s *Set) Select() ([]Ready, error) {
	raw := make([]unix.EpollEvent, maxEvents)
	n, err := unix.EpollWait(s.epfd, raw, -1)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("readiness: epoll_wait: %w", err)
	}

	ready := make([]Ready, 0, n)
	s.mu.Lock()
	for _, ev := range raw[:n] {
		tag, ok := s.tags[ev.Fd]
		if !ok {
			// Raced with an Unregister between epoll_wait returning and us
			// taking the lock; drop the stale event.
			continue
		}
		ready = append(ready, Ready{
			Tag:      tag,
			Readable: ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			Writable: ev.Events&(unix.EPOLLOUT|unix.EPOLLERR) != 0,
		})
	}
	s.mu.Unlock()

	return ready, nil
}

// Close releases the underlying epoll fd. It does not close any of the
// registered fds; callers own those independently.
func (s *Set) Close() error {
	if err := unix.Close(s.epfd); err != nil {
		return fmt.Errorf("readiness: close: %w", err)
	}
	return nil
}
