package socket

import (
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/findstr/silly-sub001/silly"
)

// CommandTag identifies a worker->socket-thread command record.
type CommandTag uint8

const (
	CmdConnect CommandTag = iota + 1
	CmdListen
	CmdSend
	CmdClose
	CmdReadEnable
	CmdTerminate
	CmdUDPBind
	CmdUDPConnect
	CmdUDPSend
)

// Command is a fixed-shape record carried over the command pipe. Only
// the fields relevant to Tag are populated; spec.md §6 describes the
// wire framing this mirrors ({u8 tag, u8 pad, u16 size} + body) — here
// the "wire" is an in-process typed struct instead of a byte blob,
// per the §9 redesign note against cross-thread function pointers.
type Command struct {
	Tag      CommandTag
	SID      uint32
	Addr     string
	Protocol Protocol
	Chunk    *SendChunk
	Enable   bool
	Reply    chan commandReply
}

type commandReply struct {
	sid uint32
	err *silly.Error
}

// commandQueue is the self-pipe (P) the worker uses to wake the
// socket thread: a mutex-protected list plus a wakeup-coalesced pipe,
// the same shape as queue.Queue but carrying Commands instead of
// Messages (kept as a distinct type since Command and Message have
// unrelated lifecycles and producers/consumers are swapped).
type commandQueue struct {
	mu   sync.Mutex
	head *cmdNode
	tail *cmdNode

	wakeupPending bool
	rfd, wfd      int
}

type cmdNode struct {
	cmd  Command
	next *cmdNode
}

func newCommandQueue() (*commandQueue, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return nil, err
	}
	return &commandQueue{rfd: fds[0], wfd: fds[1]}, nil
}

func (q *commandQueue) push(c Command) {
	n := &cmdNode{cmd: c}
	q.mu.Lock()
	if q.tail == nil {
		q.head, q.tail = n, n
	} else {
		q.tail.next = n
		q.tail = n
	}
	wake := !q.wakeupPending
	if wake {
		q.wakeupPending = true
	}
	q.mu.Unlock()
	if wake {
		var b [1]byte
		unix.Write(q.wfd, b[:])
	}
}

func (q *commandQueue) drain() []Command {
	q.mu.Lock()
	head := q.head
	q.head, q.tail = nil, nil
	q.wakeupPending = false
	q.mu.Unlock()

	var buf [64]byte
	for {
		n, err := unix.Read(q.rfd, buf[:])
		if n <= 0 || err != nil {
			break
		}
	}

	var out []Command
	for n := head; n != nil; n = n.next {
		out = append(out, n.cmd)
	}
	return out
}

func (q *commandQueue) close() {
	unix.Close(q.rfd)
	unix.Close(q.wfd)
}

// resolveTCPAddr is a small shared helper so Connect/Listen agree on
// address parsing.
func resolveTCPAddr(addr string) (*net.TCPAddr, error) {
	return net.ResolveTCPAddr("tcp", addr)
}
