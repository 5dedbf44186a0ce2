// Package cluster implements the length-prefixed request/response
// framing used between cluster nodes: a packer that builds outbound
// frames, and a packetizer that reassembles inbound frames out of
// arbitrarily fragmented TCP reads.
package cluster

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/pkg/errors"
)

// AckBit marks a session id as carrying a response rather than a
// request.
const AckBit uint32 = 0x80000000

const (
	headerSize  = 4 // u32_le length prefix, not counted in length
	sessionSize = 4
	// requestHeader is session(4) + cmd(4) + traceid(8).
	requestHeader = 16
	// responseHeader is session(4) only.
	responseHeader = 4
)

// DefaultHardLimit and DefaultSoftLimit mirror spec.md §6's
// cluster.hardlimit / cluster.softlimit configuration defaults.
const (
	DefaultHardLimit = 128 << 20
	DefaultSoftLimit = 65535
)

var (
	// ErrTooLarge is returned when a frame's declared length exceeds
	// the configured hard limit.
	ErrTooLarge = errors.New("cluster: frame exceeds hard limit")
	// ErrTooSmall is returned when a frame's declared length is
	// smaller than the minimum possible header for its kind.
	ErrTooSmall = errors.New("cluster: frame smaller than header")
)

// Packet is one fully reassembled frame.
type Packet struct {
	Session uint32
	Ack     bool
	Cmd     uint32
	TraceID uint64
	Payload []byte
}

// Packer builds outbound frames. Each Packer keeps its own session
// counter, modulo AckBit; separate Packers number their sessions
// independently and may hand out the same ids.
type Packer struct {
	session uint32
}

// NewPacker returns a Packer with a fresh session counter.
func NewPacker() *Packer { return &Packer{} }

// Request builds `[len|session|cmd|traceid|payload]` and returns the
// session id assigned to it.
func (p *Packer) Request(cmd uint32, traceID uint64, payload []byte) (uint32, []byte) {
	session := atomic.AddUint32(&p.session, 1) & ^AckBit
	body := requestHeader + len(payload)
	buf := make([]byte, headerSize+body)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(body))
	binary.LittleEndian.PutUint32(buf[4:8], session)
	binary.LittleEndian.PutUint32(buf[8:12], cmd)
	binary.LittleEndian.PutUint64(buf[12:20], traceID)
	copy(buf[20:], payload)
	return session, buf
}

// Response builds `[len|session|AckBit|payload]`, with AckBit
// (0x80000000) OR'd into the session field, for the given request
// session.
func (p *Packer) Response(session uint32, payload []byte) []byte {
	body := responseHeader + len(payload)
	buf := make([]byte, headerSize+body)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(body))
	binary.LittleEndian.PutUint32(buf[4:8], session|AckBit)
	copy(buf[8:], payload)
	return buf
}

// incomplete is the reassembly state for one fd: at most one lives per
// fd at a time (spec.md §3's "Incomplete cluster frame" entity).
type incomplete struct {
	hdr       [headerSize]byte
	hdrOffset int
	body      []byte
	bodyOff   int
	psize     uint32
}

// Packetizer reassembles frames out of however many bytes a read
// happens to deliver, one state machine per fd.
type Packetizer struct {
	hardLimit int
	softLimit int
	pending   map[int]*incomplete
}

// NewPacketizer constructs a Packetizer with the given limits. A
// hardLimit or softLimit of 0 uses the package defaults.
func NewPacketizer(hardLimit, softLimit int) *Packetizer {
	if hardLimit <= 0 {
		hardLimit = DefaultHardLimit
	}
	if softLimit <= 0 {
		softLimit = DefaultSoftLimit
	}
	return &Packetizer{hardLimit: hardLimit, softLimit: softLimit, pending: make(map[int]*incomplete)}
}

// Feed processes n more bytes read from fd and returns every packet
// fully reassembled as a result (usually zero or one, but a single
// read can complete several back-to-back frames).
func (pz *Packetizer) Feed(fd int, data []byte) ([]Packet, error) {
	st := pz.pending[fd]
	if st == nil {
		st = &incomplete{}
		pz.pending[fd] = st
	}

	var out []Packet
	for len(data) > 0 {
		if st.hdrOffset < headerSize {
			n := copy(st.hdr[st.hdrOffset:], data)
			st.hdrOffset += n
			data = data[n:]
			if st.hdrOffset < headerSize {
				break
			}
			psize := binary.LittleEndian.Uint32(st.hdr[:])
			if psize < responseHeader {
				pz.Clear(fd)
				return out, ErrTooSmall
			}
			if int(psize) > pz.hardLimit {
				pz.Clear(fd)
				return out, ErrTooLarge
			}
			st.psize = psize
			st.body = make([]byte, psize)
			st.bodyOff = 0
		}

		need := int(st.psize) - st.bodyOff
		n := copy(st.body[st.bodyOff:], data[:min(need, len(data))])
		st.bodyOff += n
		data = data[n:]

		if st.bodyOff < int(st.psize) {
			break
		}

		pkt, err := decodeBody(st.body)
		if err != nil {
			pz.Clear(fd)
			return out, err
		}
		out = append(out, pkt)

		// Reset state for a possible next frame in the same read.
		st = &incomplete{}
		pz.pending[fd] = st
	}
	return out, nil
}

func decodeBody(body []byte) (Packet, error) {
	if len(body) < responseHeader {
		return Packet{}, ErrTooSmall
	}
	session := binary.LittleEndian.Uint32(body[0:4])
	ack := session&AckBit != 0
	session &^= AckBit
	if ack {
		return Packet{Session: session, Ack: true, Payload: body[4:]}, nil
	}
	if len(body) < requestHeader {
		return Packet{}, ErrTooSmall
	}
	cmd := binary.LittleEndian.Uint32(body[4:8])
	trace := binary.LittleEndian.Uint64(body[8:16])
	return Packet{Session: session, Cmd: cmd, TraceID: trace, Payload: body[16:]}, nil
}

// Clear drops fd's reassembly state, called when the connection
// closes or on a protocol violation (spec.md's "never resynchronize
// mid-stream" rule).
func (pz *Packetizer) Clear(fd int) {
	delete(pz.pending, fd)
}
