package socket

import (
	"net"
	"time"

	"golang.org/x/net/ipv4"
	kcp "github.com/xtaci/kcp-go/v5"

	"github.com/findstr/silly-sub001/silly"
)

// batchSize mirrors kcp-go's own readloop_linux.go batching factor: a
// recvmmsg/sendmmsg-sized window amortizing one syscall over many
// datagrams under high connection counts.
const batchSize = 32

// batchPacketConn adapts golang.org/x/net/ipv4's ReadBatch/WriteBatch
// to the plain net.PacketConn interface kcp.ServeConn expects, so a
// KCP listener can opt into batched UDP I/O instead of one
// recvfrom/sendto syscall per datagram.
type batchPacketConn struct {
	udp *net.UDPConn
	pc  *ipv4.PacketConn

	msgs    []ipv4.Message
	pending int
	next    int
}

func newBatchPacketConn(udp *net.UDPConn) *batchPacketConn {
	msgs := make([]ipv4.Message, batchSize)
	for i := range msgs {
		msgs[i].Buffers = [][]byte{make([]byte, 65536)}
	}
	return &batchPacketConn{udp: udp, pc: ipv4.NewPacketConn(udp), msgs: msgs}
}

func (c *batchPacketConn) ReadFrom(p []byte) (int, net.Addr, error) {
	if c.next >= c.pending {
		n, err := c.pc.ReadBatch(c.msgs, 0)
		if err != nil {
			return 0, nil, err
		}
		c.pending = n
		c.next = 0
		if n == 0 {
			return 0, nil, nil
		}
	}
	m := c.msgs[c.next]
	c.next++
	n := copy(p, m.Buffers[0][:m.N])
	return n, m.Addr, nil
}

func (c *batchPacketConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	msgs := []ipv4.Message{{Buffers: [][]byte{p}, Addr: addr}}
	if _, err := c.pc.WriteBatch(msgs, 0); err != nil {
		return 0, err
	}
	return msgs[0].N, nil
}

func (c *batchPacketConn) Close() error                       { return c.udp.Close() }
func (c *batchPacketConn) LocalAddr() net.Addr                { return c.udp.LocalAddr() }
func (c *batchPacketConn) SetDeadline(t time.Time) error      { return c.udp.SetDeadline(t) }
func (c *batchPacketConn) SetReadDeadline(t time.Time) error  { return c.udp.SetReadDeadline(t) }
func (c *batchPacketConn) SetWriteDeadline(t time.Time) error { return c.udp.SetWriteDeadline(t) }

// ListenKCPBatched is ListenKCP, but serves the session over a
// batched UDP PacketConn instead of kcp-go's own plain
// net.ListenUDP-backed one.
func (t *Thread) ListenKCPBatched(addr string, dataShards, parityShards int) (uint32, *silly.Error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return 0, silly.Wrap(silly.ErrArgument, err)
	}
	udp, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return 0, silly.Wrap(silly.ErrResource, err)
	}
	ln, err := kcp.ServeConn(nil, dataShards, parityShards, newBatchPacketConn(udp))
	if err != nil {
		udp.Close()
		return 0, silly.Wrap(silly.ErrResource, err)
	}

	s, serr := t.table.Reserve()
	if serr != nil {
		ln.Close()
		return 0, serr
	}
	s.mu.Lock()
	s.fd = -1
	s.protocol = ProtoKCP
	s.kcp = ln
	s.mu.Unlock()
	s.setState(Listen)

	go t.kcpAcceptLoop(s, ln)
	return s.SID(), nil
}
