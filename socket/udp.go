package socket

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/findstr/silly-sub001/generic"
	"github.com/findstr/silly-sub001/silly"
	"github.com/findstr/silly-sub001/std"
)

// UDPBind opens a datagram socket bound to addr. Each subsequent
// recvfrom is delivered as a KindUDPData message whose Payload is the
// sender's encoded sockaddr (see encodeSockaddr) followed by the
// datagram; Socket.peerAddr is also overwritten per datagram, since
// UDP sockets are connectionless and have no single peer.
func (t *Thread) UDPBind(addr string) (uint32, *silly.Error) {
	return t.call(Command{Tag: CmdUDPBind, Addr: addr, Protocol: ProtoUDP})
}

// UDPSend sends buf to dst (an encodeSockaddr blob) from the bound
// socket sid.
func (t *Thread) UDPSend(sid uint32, dst []byte, buf []byte) *silly.Error {
	t.cmdQ.push(Command{Tag: CmdUDPSend, SID: sid, Addr: string(dst), Chunk: newChunk(buf, nil)})
	return nil
}

func (t *Thread) doUDPBind(cmd Command) {
	t.doUDPBindAddr(cmd, cmd.Addr)
}

func (t *Thread) doUDPBindAddr(cmd Command, hostport string) {
	mp, perr := std.ParseMultiPort(hostport)
	var host string
	var port int
	if perr == nil {
		host = mp.Host
		port = int(mp.MinPort)
	} else {
		udpAddr, err := net.ResolveUDPAddr("udp", hostport)
		if err != nil {
			reply(cmd, 0, silly.Wrap(silly.ErrArgument, err))
			return
		}
		host = udpAddr.IP.String()
		port = udpAddr.Port
	}

	ip := net.ParseIP(host)
	domain := unix.AF_INET
	if ip != nil && ip.To4() == nil {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		reply(cmd, 0, silly.Wrap(silly.ErrResource, err))
		return
	}
	unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	sa, err := toSockaddr(domain, ip, port)
	if err != nil {
		unix.Close(fd)
		reply(cmd, 0, silly.Wrap(silly.ErrArgument, err))
		return
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		reply(cmd, 0, silly.Wrap(silly.ErrResource, err))
		return
	}

	s, serr := t.table.Reserve()
	if serr != nil {
		unix.Close(fd)
		reply(cmd, 0, serr)
		return
	}
	s.mu.Lock()
	s.fd = fd
	s.protocol = ProtoUDP
	s.readBuf = std.NewReadBuffer()
	s.readEnable = true
	s.mu.Unlock()
	s.setState(Connected)

	if err := t.poller.Add(fd, uint64(s.SID())); err != nil {
		t.table.Release(s)
		reply(cmd, 0, silly.Wrap(silly.ErrResource, err))
		return
	}
	reply(cmd, s.SID(), nil)
}

func (t *Thread) doUDPSend(cmd Command) {
	s := t.table.Lookup(cmd.SID)
	if s == nil {
		return
	}
	dst := decodeSockaddr([]byte(cmd.Addr))
	if dst == nil {
		return
	}
	unix.Sendto(s.fd, cmd.Chunk.buf, 0, dst)
}

func (t *Thread) udpReadable(s *Socket) {
	s.mu.Lock()
	if !s.readEnable {
		s.mu.Unlock()
		return
	}
	buf := s.readBuf
	s.mu.Unlock()

	for {
		n, from, err := unix.Recvfrom(s.fd, buf, 0)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		peer := encodeSockaddr(from)

		s.mu.Lock()
		s.peerAddr = peer
		s.mu.Unlock()

		t.emit(generic.KindUDPData, s.SID(), 0, append(peer, payload...), 0)
	}
}
