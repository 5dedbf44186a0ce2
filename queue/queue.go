// Package queue implements the MPSC message queue and the
// wakeup-coalesced self-pipe the worker blocks on.
package queue

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/findstr/silly-sub001/generic"
)

// node is one link in the producer-side singly-linked list.
type node struct {
	msg  generic.Message
	next *node
}

// Queue is a mutex-protected MPSC FIFO. Producers push under the lock;
// the consumer swaps out the whole list in one critical section
// (batch drain) and processes the batch outside the lock, so a slow
// callback never blocks producers.
type Queue struct {
	mu   sync.Mutex
	head *node
	tail *node
	n    int

	wakeupPending bool // only the first push after a drain writes to wfd
	rfd, wfd      int
}

// New creates a queue backed by a self-pipe used to wake a consumer
// blocked in read() on rfd.
func New() (*Queue, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return nil, errors.Wrap(err, "pipe2")
	}
	return &Queue{rfd: fds[0], wfd: fds[1]}, nil
}

// ReadFD is the descriptor the consumer selects/reads on when it wants
// to block outside of a condition variable (e.g. folded into the
// socket thread's own poller for a single-threaded embedding).
func (q *Queue) ReadFD() int { return q.rfd }

// Notify wakes a consumer blocked in read() without pushing a
// message, used to unblock the worker during shutdown.
func (q *Queue) Notify() { q.notify() }

// Push enqueues msg. It is safe for any number of concurrent callers.
func (q *Queue) Push(msg generic.Message) {
	n := &node{msg: msg}

	q.mu.Lock()
	if q.tail == nil {
		q.head, q.tail = n, n
	} else {
		q.tail.next = n
		q.tail = n
	}
	q.n++
	wake := !q.wakeupPending
	if wake {
		q.wakeupPending = true
	}
	q.mu.Unlock()

	if wake {
		q.notify()
	}
}

// notify writes exactly one byte to the wakeup pipe; EAGAIN (pipe
// already has a pending byte) is not an error.
func (q *Queue) notify() {
	var b [1]byte
	for {
		_, err := unix.Write(q.wfd, b[:])
		if err == unix.EINTR {
			continue
		}
		return
	}
}

// drainWakeup empties the self-pipe after a batch is taken so the next
// push's notify() is the one that matters.
func (q *Queue) drainWakeup() {
	var buf [64]byte
	for {
		n, err := unix.Read(q.rfd, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// Drain swaps out the entire pending list under the lock and returns
// it as a slice, resetting the wakeup-coalescing flag. Callers should
// process the returned slice outside of any lock.
func (q *Queue) Drain() []generic.Message {
	q.mu.Lock()
	head := q.head
	count := q.n
	q.head, q.tail, q.n = nil, nil, 0
	q.wakeupPending = false
	q.mu.Unlock()

	q.drainWakeup()

	if count == 0 {
		return nil
	}
	out := make([]generic.Message, 0, count)
	for n := head; n != nil; n = n.next {
		out = append(out, n.msg)
	}
	return out
}

// Len reports the number of queued messages, for backpressure
// observation only; no flow control is enforced on the core path.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// Close releases the self-pipe descriptors.
func (q *Queue) Close() error {
	err1 := unix.Close(q.rfd)
	err2 := unix.Close(q.wfd)
	if err1 != nil {
		return errors.Wrap(err1, "close read fd")
	}
	if err2 != nil {
		return errors.Wrap(err2, "close write fd")
	}
	return nil
}
