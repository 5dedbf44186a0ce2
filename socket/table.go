// Package socket implements the socket thread: it owns every file
// descriptor, pumps the event demultiplexer, maintains per-connection
// send queues with backpressure, and translates I/O events into
// queued messages for the worker.
package socket

import (
	"sync"
	"sync/atomic"

	"github.com/findstr/silly-sub001/silly"
)

// State is a socket's lifecycle stage. Transitions happen only on the
// socket thread.
type State int32

const (
	Free State = iota
	Reserve
	Listen
	Connecting
	Connected
	HalfClose
)

func (s State) String() string {
	switch s {
	case Free:
		return "FREE"
	case Reserve:
		return "RESERVE"
	case Listen:
		return "LISTEN"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case HalfClose:
		return "HALFCLOSE"
	default:
		return "UNKNOWN"
	}
}

// Protocol identifies the transport a Socket speaks.
type Protocol int

const (
	ProtoTCP Protocol = iota
	ProtoUDP
	ProtoPipe
	// ProtoKCP layers a reliable-UDP kcp-go session atop ProtoUDP,
	// a domain-stack enrichment beyond the minimal spec (SPEC_FULL §2).
	ProtoKCP
)

const (
	tableBits = 16 // 2^16 = 64k default capacity, spec.md §6 socket_queue_size
	tableSize = 1 << tableBits
	tableMask = tableSize - 1
)

// Socket is one entry in the socket thread's table. sid = generation
// << k | index; the generation advances on every reservation so a
// stale sid held by the worker becomes detectably invalid.
type Socket struct {
	mu sync.Mutex

	index      int
	generation uint32
	fd         int
	protocol   Protocol
	state      int32 // atomic State
	readEnable bool
	writeArmed bool
	peerAddr   []byte

	readBuf []byte

	sendHead, sendTail *SendChunk
	pendingBytes        int64

	userData uint64

	// kcp holds the optional reliable-UDP session for ProtoKCP
	// sockets; nil for every other protocol.
	kcp interface{ Close() error }

	// qpp, if set, obfuscates this socket's bytes on the wire; see
	// QPPCodec.
	qpp *QPPCodec
}

// SID returns the socket's current externally-visible identifier.
func (s *Socket) SID() uint32 {
	return uint32(s.generation)<<tableBits | uint32(s.index&tableMask)
}

// State returns the socket's current lifecycle state.
func (s *Socket) State() State { return State(atomic.LoadInt32(&s.state)) }

func (s *Socket) setState(st State) { atomic.StoreInt32(&s.state, int32(st)) }

// PendingBytes reports the outstanding unsent bytes queued on this
// socket, maintained incrementally as chunks are pushed/popped.
func (s *Socket) PendingBytes() int64 { return atomic.LoadInt64(&s.pendingBytes) }

// Table is the socket thread's fixed-capacity socket table.
type Table struct {
	slots []Socket
	hint  uint32 // next index to try on Reserve, round-robins for fairness
}

// NewTable allocates a table of the default capacity. Slot 0 is
// permanently withheld from Reserve so sid 0 is never valid: the
// socket thread uses it as a sentinel tag for its own command pipe in
// the poller's user-data space.
func NewTable() *Table {
	t := &Table{slots: make([]Socket, tableSize)}
	for i := range t.slots {
		t.slots[i].index = i
	}
	t.slots[0].state = int32(Reserve)
	return t
}

// sidIndex extracts the table slot from a sid.
func sidIndex(sid uint32) int { return int(sid & tableMask) }

// Lookup returns the Socket for sid if its generation still matches
// (i.e. the sid has not been retired), else nil. sid 0 is always
// invalid (see NewTable).
func (t *Table) Lookup(sid uint32) *Socket {
	if sid == 0 {
		return nil
	}
	idx := sidIndex(sid)
	s := &t.slots[idx]
	if uint32(s.generation)<<tableBits|uint32(idx) != sid {
		return nil
	}
	if s.State() == Free {
		return nil
	}
	return s
}

// Reserve atomically claims a FREE slot, advances its generation, and
// returns the Socket in RESERVE state. Any thread may call Reserve;
// the CAS on state is what makes that safe without a table-wide lock.
func (t *Table) Reserve() (*Socket, *silly.Error) {
	n := len(t.slots)
	start := atomic.AddUint32(&t.hint, 1)
	for i := 0; i < n; i++ {
		idx := int((start + uint32(i)) % uint32(n))
		s := &t.slots[idx]
		if atomic.CompareAndSwapInt32(&s.state, int32(Free), int32(Reserve)) {
			s.mu.Lock()
			s.generation = silly.NewGeneration()
			s.fd = -1
			s.readEnable = false
			s.writeArmed = false
			s.peerAddr = nil
			s.sendHead, s.sendTail = nil, nil
			atomic.StoreInt64(&s.pendingBytes, 0)
			s.kcp = nil
			s.qpp = nil
			s.mu.Unlock()
			return s, nil
		}
	}
	return nil, &silly.Error{Kind: silly.ErrResource}
}

// Stats reports how many slots are in each lifecycle state, for
// introspection dumps.
func (t *Table) Stats() map[State]int {
	out := make(map[State]int, 6)
	for i := range t.slots {
		out[t.slots[i].State()]++
	}
	return out
}

// Release returns a socket to FREE, dropping any queued sends and its
// fd. finishClose and closeKCP call it immediately before emitting the
// socket's CLOSE message; setup failures call it for slots that were
// never reported to the worker.
func (t *Table) Release(s *Socket) {
	s.mu.Lock()
	s.sendHead, s.sendTail = nil, nil
	atomic.StoreInt64(&s.pendingBytes, 0)
	s.fd = -1
	s.mu.Unlock()
	s.setState(Free)
}
