//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package netpoll

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// kqueuePoller implements the same five-op capability set on top of
// kqueue, matching the reference's socket_kevent.h.
type kqueuePoller struct {
	fd int

	mu     sync.Mutex
	closed bool
}

func newPoller() (Poller, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, errors.Wrap(err, "kqueue")
	}
	return &kqueuePoller{fd: fd}, nil
}

func (p *kqueuePoller) change(fd int, filter int16, flags uint16, ud uint64) error {
	ev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  flags,
		Udata:  (*byte)(nil),
	}
	ev.Fflags = uint32(ud) // reuse Fflags to carry the low 32 bits of user-data
	_, err := unix.Kevent(p.fd, []unix.Kevent_t{ev}, nil, nil)
	return err
}

func (p *kqueuePoller) Add(fd int, ud uint64) error {
	if err := p.change(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_CLEAR, ud); err != nil {
		return errors.Wrap(err, "kevent add read")
	}
	return nil
}

func (p *kqueuePoller) Del(fd int) error {
	_ = p.change(fd, unix.EVFILT_READ, unix.EV_DELETE, 0)
	_ = p.change(fd, unix.EVFILT_WRITE, unix.EV_DELETE, 0)
	return nil
}

func (p *kqueuePoller) WriteEnable(fd int, ud uint64, on bool) error {
	flags := uint16(unix.EV_DELETE)
	if on {
		flags = unix.EV_ADD | unix.EV_CLEAR
	}
	if err := p.change(fd, unix.EVFILT_WRITE, flags, ud); err != nil {
		return errors.Wrap(err, "kevent write_enable")
	}
	return nil
}

func (p *kqueuePoller) Wait(events []Event, maxMs int) (int, error) {
	raw := make([]unix.Kevent_t, len(events))
	var ts *unix.Timespec
	if maxMs >= 0 {
		t := unix.NsecToTimespec(int64(maxMs) * 1e6)
		ts = &t
	}
	n, err := unix.Kevent(p.fd, nil, raw, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, errors.Wrap(err, "kevent wait")
	}
	for i := 0; i < n; i++ {
		var flags EventFlag
		switch raw[i].Filter {
		case unix.EVFILT_READ:
			flags |= EventReadable
		case unix.EVFILT_WRITE:
			flags |= EventWritable
		}
		if raw[i].Flags&unix.EV_EOF != 0 || raw[i].Flags&unix.EV_ERROR != 0 {
			flags |= EventError
		}
		events[i] = Event{UserData: uint64(raw[i].Fflags), Flags: flags}
	}
	return n, nil
}

func (p *kqueuePoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.fd)
}
