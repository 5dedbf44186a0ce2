package socket

import (
	kcp "github.com/xtaci/kcp-go/v5"

	"github.com/findstr/silly-sub001/generic"
	"github.com/findstr/silly-sub001/silly"
)

// ProtoKCP sockets have no fd the poller can own: kcp-go runs its own
// UDP conn and ARQ/FEC machinery internally and exposes a blocking
// net.Conn-shaped session instead. So unlike TCP/UDP, which are
// reserved and registered synchronously on the socket thread via the
// command pipe, ListenKCP/ConnectKCP touch the table directly from
// the calling goroutine (Table.Reserve's CAS makes that safe) and
// hand each session to its own read-loop goroutine that feeds
// messages onto the same outbound queue the socket thread uses.

// ListenKCP starts a reliable-UDP listener with the given FEC shard
// counts (0,0 disables FEC; see github.com/klauspost/reedsolomon).
func (t *Thread) ListenKCP(addr string, dataShards, parityShards int) (uint32, *silly.Error) {
	ln, err := kcp.ListenWithOptions(addr, nil, dataShards, parityShards)
	if err != nil {
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

// ConnectKCP dials a reliable-UDP session with the given FEC shard
// counts.
func (t *Thread) ConnectKCP(addr string, dataShards, parityShards int) (uint32, *silly.Error) {
	sess, err := kcp.DialWithOptions(addr, nil, dataShards, parityShards)
	if err != nil {
		return 0, silly.Wrap(silly.ErrIO, err)
	}
	s, serr := t.table.Reserve()
	if serr != nil {
		sess.Close()
		return 0, serr
	}
	s.mu.Lock()
	s.fd = -1
	s.protocol = ProtoKCP
	s.kcp = sess
	s.mu.Unlock()
	s.setState(Connected)

	t.emit(generic.KindConnectOK, s.SID(), 0, nil, 0)
	go t.kcpReadLoop(s, sess)
	return s.SID(), nil
}

func (t *Thread) kcpAcceptLoop(listener *Socket, ln *kcp.Listener) {
	for {
		sess, err := ln.AcceptKCP()
		if err != nil {
			return // listener closed
		}
		s, serr := t.table.Reserve()
		if serr != nil {
			sess.Close()
			continue
		}
		s.mu.Lock()
		s.fd = -1
		s.protocol = ProtoKCP
		s.kcp = sess
		s.mu.Unlock()
		s.setState(Connected)

		t.emit(generic.KindAccept, s.SID(), 0, []byte(sess.RemoteAddr().String()), 0)
		go t.kcpReadLoop(s, sess)
	}
}

func (t *Thread) kcpReadLoop(s *Socket, sess *kcp.UDPSession) {
	buf := make([]byte, 64*1024)
	for {
		n, err := sess.Read(buf)
		if n > 0 {
			payload := make([]byte, n)
			copy(payload, buf[:n])
			t.emit(generic.KindTCPData, s.SID(), 0, payload, 0)
		}
		if err != nil {
			t.closeKCP(s, 0)
			return
		}
	}
}

// sendKCP writes straight to the session: kcp-go owns its own
// retransmit/FEC buffering, so there is no socket-thread send queue
// for this protocol to participate in.
func (t *Thread) sendKCP(s *Socket, c *SendChunk) {
	s.mu.Lock()
	sess, _ := s.kcp.(*kcp.UDPSession)
	s.mu.Unlock()
	if sess == nil {
		if c.finalizer != nil {
			c.finalizer()
		}
		return
	}
	_, err := sess.Write(c.buf)
	if c.finalizer != nil {
		c.finalizer()
	}
	if err != nil {
		t.closeKCP(s, 0)
	}
}

func (t *Thread) closeKCP(s *Socket, errno int) {
	if s.State() == Free {
		return
	}
	sid := s.SID()
	s.mu.Lock()
	sess := s.kcp
	s.drainFinalizers()
	s.mu.Unlock()
	if sess != nil {
		sess.Close()
	}
	t.table.Release(s)
	t.emit(generic.KindClose, sid, 0, nil, errno)
}
