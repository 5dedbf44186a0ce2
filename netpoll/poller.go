// Package netpoll abstracts the OS-level readiness mechanism the socket
// thread polls. It exposes the five-operation capability set from the
// core design: create, add, del, write_enable, wait. Three build-tagged
// implementations (epoll, kqueue, select) satisfy the same interface so
// the socket thread never branches on GOOS itself.
package netpoll

import "github.com/pkg/errors"

// EventFlag reports what became ready on a descriptor.
type EventFlag uint8

const (
	EventReadable EventFlag = 1 << iota
	EventWritable
	EventError
)

// Event is one readiness notification returned by Wait.
type Event struct {
	UserData uint64
	Flags    EventFlag
}

// Poller is the readiness multiplexer the socket thread drives. After
// WriteEnable(fd, true), a subsequent Wait eventually reports
// writability; level- or edge-triggered delivery is an implementation
// detail, provided the implementation re-arms edge-triggered writes
// after partial writes.
type Poller interface {
	// Add registers fd for read + error notifications, tagged with ud.
	Add(fd int, ud uint64) error
	// Del removes fd from the poll set.
	Del(fd int) error
	// WriteEnable toggles write-readiness notifications for fd.
	WriteEnable(fd int, ud uint64, on bool) error
	// Wait blocks up to maxMs milliseconds and fills events, returning
	// the number of events populated. maxMs < 0 means block forever.
	Wait(events []Event, maxMs int) (int, error)
	// Close releases the underlying OS resource.
	Close() error
}

// ErrClosed names the closed-poller condition. The backends do not
// return it: operations on a closed Poller fail with the OS error.
var ErrClosed = errors.New("netpoll: poller closed")

// New constructs the best available Poller for the host OS.
func New() (Poller, error) {
	return newPoller()
}
