//go:build linux

package netpoll

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// epollPoller wraps an epoll instance in edge-triggered mode, matching
// the reference's socket_epoll.h capability set.
type epollPoller struct {
	fd int

	mu     sync.Mutex
	closed bool
}

func newPoller() (Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "epoll_create1")
	}
	return &epollPoller{fd: fd}, nil
}

func (p *epollPoller) Add(fd int, ud uint64) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLERR | unix.EPOLLHUP | unix.EPOLLRDHUP | unix.EPOLLET,
		Fd:     int32(uint32(ud)),
	}
	return errors.Wrap(unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &ev), "epoll_ctl add")
}

func (p *epollPoller) Del(fd int) error {
	err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil && err != unix.ENOENT {
		return errors.Wrap(err, "epoll_ctl del")
	}
	return nil
}

func (p *epollPoller) WriteEnable(fd int, ud uint64, on bool) error {
	events := uint32(unix.EPOLLIN | unix.EPOLLERR | unix.EPOLLHUP | unix.EPOLLRDHUP | unix.EPOLLET)
	if on {
		events |= unix.EPOLLOUT
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(uint32(ud))}
	return errors.Wrap(unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &ev), "epoll_ctl mod")
}

func (p *epollPoller) Wait(events []Event, maxMs int) (int, error) {
	raw := make([]unix.EpollEvent, len(events))
	n, err := unix.EpollWait(p.fd, raw, maxMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, errors.Wrap(err, "epoll_wait")
	}
	for i := 0; i < n; i++ {
		var flags EventFlag
		if raw[i].Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
			flags |= EventReadable
		}
		if raw[i].Events&unix.EPOLLOUT != 0 {
			flags |= EventWritable
		}
		if raw[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			flags |= EventError
		}
		events[i] = Event{UserData: uint64(uint32(raw[i].Fd)), Flags: flags}
	}
	return n, nil
}

func (p *epollPoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.fd)
}
