//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd && !windows

package netpoll

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// selectPoller is the select(2)-based fallback for platforms without a
// native edge-triggered facility. It is level-triggered and O(maxfd)
// per wait, acceptable only for small socket tables.
type selectPoller struct {
	mu      sync.Mutex
	closed  bool
	readFds map[int]uint64
	writeOn map[int]bool
}

func newPoller() (Poller, error) {
	return &selectPoller{
		readFds: make(map[int]uint64),
		writeOn: make(map[int]bool),
	}, nil
}

func (p *selectPoller) Add(fd int, ud uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readFds[fd] = ud
	return nil
}

func (p *selectPoller) Del(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.readFds, fd)
	delete(p.writeOn, fd)
	return nil
}

func (p *selectPoller) WriteEnable(fd int, ud uint64, on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.readFds[fd]; !ok {
		p.readFds[fd] = ud
	}
	p.writeOn[fd] = on
	return nil
}

func (p *selectPoller) Wait(events []Event, maxMs int) (int, error) {
	p.mu.Lock()
	var rfds, wfds unix.FdSet
	maxFd := 0
	for fd := range p.readFds {
		setFd(&rfds, fd)
		if fd > maxFd {
			maxFd = fd
		}
	}
	for fd, on := range p.writeOn {
		if on {
			setFd(&wfds, fd)
			if fd > maxFd {
				maxFd = fd
			}
		}
	}
	snapshot := make(map[int]uint64, len(p.readFds))
	for fd, ud := range p.readFds {
		snapshot[fd] = ud
	}
	p.mu.Unlock()

	var tv *unix.Timeval
	if maxMs >= 0 {
		t := unix.NsecToTimeval(int64(maxMs) * 1e6)
		tv = &t
	}

	n, err := unix.Select(maxFd+1, &rfds, &wfds, nil, tv)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, errors.Wrap(err, "select")
	}

	count := 0
	for fd, ud := range snapshot {
		if count >= len(events) {
			break
		}
		var flags EventFlag
		if fdIsSet(&rfds, fd) {
			flags |= EventReadable
		}
		if fdIsSet(&wfds, fd) {
			flags |= EventWritable
		}
		if flags != 0 {
			events[count] = Event{UserData: ud, Flags: flags}
			count++
		}
	}
	_ = n
	return count, nil
}

func (p *selectPoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func setFd(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}
