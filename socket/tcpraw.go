package socket

import (
	kcp "github.com/xtaci/kcp-go/v5"
	"github.com/xtaci/tcpraw"

	"github.com/findstr/silly-sub001/generic"
	"github.com/findstr/silly-sub001/silly"
)

// ListenKCPOverTCP serves kcp-go sessions atop a raw TCP socket
// instead of UDP (tcpraw.Listen crafts a PacketConn out of raw TCP
// segments), the same "disguise KCP as TCP" transport the teacher's
// linux listen.go offers behind its Config.TCP flag.
func (t *Thread) ListenKCPOverTCP(addr string, dataShards, parityShards int) (uint32, *silly.Error) {
	conn, err := tcpraw.Listen("tcp", addr)
	if err != nil {
		return 0, silly.Wrap(silly.ErrResource, err)
	}
	ln, err := kcp.ServeConn(nil, dataShards, parityShards, conn)
	if err != nil {
		conn.Close()
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

// ConnectKCPOverTCP dials a kcp-go session disguised as a raw TCP
// connection.
func (t *Thread) ConnectKCPOverTCP(addr string, dataShards, parityShards int) (uint32, *silly.Error) {
	conn, err := tcpraw.Dial("tcp", addr)
	if err != nil {
		return 0, silly.Wrap(silly.ErrIO, err)
	}
	sess, err := kcp.NewConn(addr, nil, dataShards, parityShards, conn)
	if err != nil {
		conn.Close()
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
