package socket

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/findstr/silly-sub001/generic"
	"github.com/findstr/silly-sub001/netpoll"
	"github.com/findstr/silly-sub001/queue"
	"github.com/findstr/silly-sub001/silly"
	"github.com/findstr/silly-sub001/std"
)

// cmdSentinel tags the command pipe's own fd in poller events so the
// event loop can tell it apart from a socket's traffic. It is sid 0,
// permanently withheld by Table (see NewTable) so it never aliases a
// real socket, and it round-trips cleanly through every poller
// backend's (possibly 32-bit) user-data field since it is all zero
// bits.
const cmdSentinel = uint64(0)

const maxEvents = 256

// Thread is the socket thread: it owns the Table, the poller, the
// command pipe, and the outbound message queue to the worker.
type Thread struct {
	table  *Table
	poller netpoll.Poller
	cmdQ   *commandQueue
	out    *queue.Queue

	hardlimit int

	stop chan struct{}
	done chan struct{}
}

// New builds a socket thread delivering messages onto out.
func New(out *queue.Queue) (*Thread, error) {
	p, err := netpoll.New()
	if err != nil {
		return nil, err
	}
	cq, err := newCommandQueue()
	if err != nil {
		return nil, err
	}
	t := &Thread{
		table:     NewTable(),
		poller:    p,
		cmdQ:      cq,
		out:       out,
		hardlimit: 128 << 20,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if err := p.Add(cq.rfd, uint64(cmdSentinel)); err != nil {
		return nil, err
	}
	return t, nil
}

// Run drives the event loop: drain P fully, call Wait, translate
// events to messages, repeat until Terminate.
func (t *Thread) Run() {
	defer close(t.done)
	events := make([]netpoll.Event, maxEvents)
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		for _, cmd := range t.cmdQ.drain() {
			t.process(cmd)
		}

		n, err := t.poller.Wait(events, 100)
		if err != nil {
			continue
		}
		for i := 0; i < n; i++ {
			ev := events[i]
			if ev.UserData == cmdSentinel {
				continue // drained at top of loop
			}
			t.handleEvent(uint32(ev.UserData), ev.Flags)
		}
	}
}

// Stats reports the socket table's lifecycle-state histogram, for
// introspection dumps.
func (t *Thread) Stats() map[State]int {
	return t.table.Stats()
}

// Terminate stops the event loop.
func (t *Thread) Terminate() {
	t.cmdQ.push(Command{Tag: CmdTerminate})
	close(t.stop)
	<-t.done
	t.poller.Close()
	t.cmdQ.close()
}

func (t *Thread) emit(kind generic.MessageKind, sid uint32, ud uint64, payload []byte, errno int) {
	t.out.Push(generic.Message{Kind: kind, SID: sid, UserData: ud, Payload: payload, Errno: errno})
}

// ---- worker-facing API: each call posts a Command. Listen, Connect
// and UDPBind block on a reply channel so their errors come back
// synchronously; Close, ReadEnable and Send return without waiting. ----

func (t *Thread) call(cmd Command) (uint32, *silly.Error) {
	cmd.Reply = make(chan commandReply, 1)
	t.cmdQ.push(cmd)
	r := <-cmd.Reply
	return r.sid, r.err
}

// Listen starts listening on addr ("host:port") for the given
// protocol. A "host:minport-maxport" range per std.ParseMultiPort is
// accepted, but only minport is bound.
func (t *Thread) Listen(addr string, proto Protocol) (uint32, *silly.Error) {
	return t.call(Command{Tag: CmdListen, Addr: addr, Protocol: proto})
}

// Connect establishes an outbound connection.
func (t *Thread) Connect(addr string, proto Protocol) (uint32, *silly.Error) {
	return t.call(Command{Tag: CmdConnect, Addr: addr, Protocol: proto})
}

// Close requests an asynchronous close: the fd is released once
// pending sends drain. There is no limit on the number of write
// attempts; a socket whose sends never drain stays half-closed.
func (t *Thread) Close(sid uint32) {
	t.cmdQ.push(Command{Tag: CmdClose, SID: sid})
}

// ReadEnable pauses or resumes delivery of TCP-data/UDP-data messages
// for sid without tearing down the connection.
func (t *Thread) ReadEnable(sid uint32, on bool) {
	t.cmdQ.push(Command{Tag: CmdReadEnable, SID: sid, Enable: on})
}

// Send queues buf for delivery on sid, with no finalizer, and always
// returns nil; a failed write shows up later as a CLOSE message.
func (t *Thread) Send(sid uint32, buf []byte) *silly.Error {
	return t.sendChunk(sid, buf, nil)
}

func (t *Thread) sendChunk(sid uint32, buf []byte, finalizer func()) *silly.Error {
	t.cmdQ.push(Command{Tag: CmdSend, SID: sid, Chunk: newChunk(buf, finalizer)})
	return nil
}

// ---- command processing, socket-thread-only ----

func (t *Thread) process(cmd Command) {
	switch cmd.Tag {
	case CmdListen:
		t.doListen(cmd)
	case CmdConnect:
		t.doConnect(cmd)
	case CmdSend:
		t.doSend(cmd)
	case CmdClose:
		t.doClose(cmd.SID)
	case CmdReadEnable:
		t.doReadEnable(cmd.SID, cmd.Enable)
	case CmdUDPBind:
		t.doUDPBind(cmd)
	case CmdUDPSend:
		t.doUDPSend(cmd)
	case CmdTerminate:
		// handled by Run's select on t.stop
	}
}

func (t *Thread) doListen(cmd Command) {
	mp, perr := std.ParseMultiPort(cmd.Addr)
	var hostport string
	if perr == nil {
		hostport = net.JoinHostPort(mp.Host, itoa(int(mp.MinPort)))
	} else {
		hostport = cmd.Addr
	}

	if cmd.Protocol == ProtoUDP {
		t.doUDPBindAddr(cmd, hostport)
		return
	}

	tcpAddr, err := resolveTCPAddr(hostport)
	if err != nil {
		reply(cmd, 0, silly.Wrap(silly.ErrArgument, err))
		return
	}
	fd, err := tcpListenFD(tcpAddr)
	if err != nil {
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
	s.protocol = ProtoTCP
	s.mu.Unlock()
	s.setState(Listen)

	if err := t.poller.Add(fd, uint64(s.SID())); err != nil {
		t.table.Release(s)
		reply(cmd, 0, silly.Wrap(silly.ErrResource, err))
		return
	}
	reply(cmd, s.SID(), nil)
}

func (t *Thread) doConnect(cmd Command) {
	tcpAddr, err := resolveTCPAddr(cmd.Addr)
	if err != nil {
		reply(cmd, 0, silly.Wrap(silly.ErrArgument, err))
		return
	}
	fd, connected, err := tcpConnectFD(tcpAddr)
	if err != nil {
		reply(cmd, 0, silly.Wrap(silly.ErrIO, err))
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
	s.protocol = ProtoTCP
	s.readBuf = std.NewReadBuffer()
	s.readEnable = true
	s.mu.Unlock()

	if connected {
		s.setState(Connected)
	} else {
		s.setState(Connecting)
	}

	if err := t.poller.Add(fd, uint64(s.SID())); err != nil {
		t.table.Release(s)
		reply(cmd, 0, silly.Wrap(silly.ErrResource, err))
		return
	}
	if !connected {
		t.poller.WriteEnable(fd, uint64(s.SID()), true)
	} else {
		t.emit(generic.KindConnectOK, s.SID(), 0, nil, 0)
	}
	reply(cmd, s.SID(), nil)
}

func (t *Thread) doSend(cmd Command) {
	s := t.table.Lookup(cmd.SID)
	if s == nil {
		if cmd.Chunk.finalizer != nil {
			cmd.Chunk.finalizer()
		}
		return
	}
	if s.protocol == ProtoKCP {
		t.sendKCP(s, cmd.Chunk)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.qpp != nil {
		s.qpp.Encrypt(cmd.Chunk.buf)
	}

	if s.State() != Connected {
		s.pushChunk(cmd.Chunk)
		return
	}

	if s.sendHead == nil {
		// Optimistic direct write: only queue the unwritten remainder.
		n, werr := unix.Write(s.fd, cmd.Chunk.buf)
		if n > 0 {
			cmd.Chunk.advance(n)
		}
		if werr != nil && werr != unix.EAGAIN {
			t.failLocked(s, werr)
			return
		}
		if cmd.Chunk.done() {
			if cmd.Chunk.finalizer != nil {
				cmd.Chunk.finalizer()
			}
			return
		}
	}
	s.pushChunk(cmd.Chunk)
	if !s.writeArmed {
		s.writeArmed = true
		t.poller.WriteEnable(s.fd, uint64(s.SID()), true)
	}
}

func (t *Thread) doClose(sid uint32) {
	s := t.table.Lookup(sid)
	if s == nil {
		return
	}
	if s.protocol == ProtoKCP {
		t.closeKCP(s, 0)
		return
	}
	s.mu.Lock()
	pending := s.sendHead != nil
	s.mu.Unlock()

	if !pending {
		t.finishClose(s, 0)
		return
	}
	s.setState(HalfClose)
}

func (t *Thread) doReadEnable(sid uint32, on bool) {
	s := t.table.Lookup(sid)
	if s == nil {
		return
	}
	s.mu.Lock()
	s.readEnable = on
	s.mu.Unlock()
}

// handleEvent translates one poller readiness notification for sid
// into table mutations and worker messages.
func (t *Thread) handleEvent(sid uint32, flags netpoll.EventFlag) {
	s := t.table.Lookup(sid)
	if s == nil {
		return
	}

	if flags&netpoll.EventError != 0 {
		t.finishClose(s, int(unix.ECONNRESET))
		return
	}

	if s.State() == Listen {
		if flags&netpoll.EventReadable != 0 {
			t.acceptLoop(s)
		}
		return
	}

	if s.State() == Connecting && flags&netpoll.EventWritable != 0 {
		t.completeConnect(s)
	}

	if flags&netpoll.EventReadable != 0 {
		if s.protocol == ProtoUDP {
			t.udpReadable(s)
		} else {
			t.readable(s)
		}
	}
	if flags&netpoll.EventWritable != 0 {
		t.writable(s)
	}
}

func (t *Thread) completeConnect(s *Socket) {
	errno, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil || errno != 0 {
		t.finishClose(s, errno)
		return
	}
	s.setState(Connected)
	s.mu.Lock()
	if s.readBuf == nil {
		s.readBuf = std.NewReadBuffer()
	}
	s.readEnable = true
	s.mu.Unlock()
	t.poller.WriteEnable(s.fd, uint64(s.SID()), false)
	t.emit(generic.KindConnectOK, s.SID(), 0, nil, 0)
}

func (t *Thread) acceptLoop(listener *Socket) {
	for {
		fd, sa, err := unix.Accept4(listener.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err != unix.EAGAIN {
				// Listener itself errored; leave it registered, the
				// error flag path will close it on a future event.
			}
			return
		}
		s, serr := t.table.Reserve()
		if serr != nil {
			unix.Close(fd)
			continue
		}
		s.mu.Lock()
		s.fd = fd
		s.protocol = ProtoTCP
		s.readBuf = std.NewReadBuffer()
		s.readEnable = true
		s.peerAddr = encodeSockaddr(sa)
		s.mu.Unlock()
		s.setState(Connected)

		if err := t.poller.Add(fd, uint64(s.SID())); err != nil {
			t.table.Release(s)
			continue
		}
		t.emit(generic.KindAccept, s.SID(), 0, s.peerAddr, 0)
	}
}

func (t *Thread) readable(s *Socket) {
	s.mu.Lock()
	if !s.readEnable {
		s.mu.Unlock()
		return
	}
	buf := s.readBuf
	s.mu.Unlock()

	for {
		n, err := unix.Read(s.fd, buf)
		if n > 0 {
			payload := make([]byte, n)
			copy(payload, buf[:n])
			s.mu.Lock()
			if s.qpp != nil {
				s.qpp.Decrypt(payload)
			}
			s.mu.Unlock()
			t.emit(generic.KindTCPData, s.SID(), 0, payload, 0)

			short := n < len(buf)
			s.mu.Lock()
			s.readBuf = std.GrowBuffer(buf, n)
			buf = s.readBuf
			s.mu.Unlock()

			if short {
				return // short read: no more data buffered right now
			}
			continue
		}
		if n == 0 {
			t.finishClose(s, 0) // EOF
			return
		}
		if err == unix.EAGAIN {
			return
		}
		t.finishClose(s, errnoOf(err))
		return
	}
}

func (t *Thread) writable(s *Socket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.sendHead != nil {
		n, err := unix.Write(s.fd, s.sendHead.remaining())
		if n > 0 {
			s.sendHead.advance(n)
			s.recordWrite(n)
			t.popFrontLocked(s)
		}
		if err != nil {
			if err == unix.EAGAIN {
				break
			}
			t.failLocked(s, err)
			return
		}
		if n == 0 {
			break
		}
	}

	if s.sendHead == nil {
		if s.writeArmed {
			s.writeArmed = false
			t.poller.WriteEnable(s.fd, uint64(s.SID()), false)
		}
		if s.State() == HalfClose {
			s.mu.Unlock()
			t.finishClose(s, 0)
			s.mu.Lock()
		}
	}
}

func (t *Thread) popFrontLocked(s *Socket) {
	if s.sendHead != nil && s.sendHead.done() {
		c := s.sendHead
		s.sendHead = c.next
		if s.sendHead == nil {
			s.sendTail = nil
		}
		if c.finalizer != nil {
			c.finalizer()
		}
	}
}

func (t *Thread) failLocked(s *Socket, err error) {
	s.drainFinalizers()
	errno := errnoOf(err)
	s.mu.Unlock()
	t.finishClose(s, errno)
	s.mu.Lock()
}

// finishClose tears the socket down: removes it from the poller,
// emits exactly one CLOSE message, drains any remaining finalizers,
// and returns the slot to FREE so its sid is retired.
func (t *Thread) finishClose(s *Socket, errno int) {
	if s.State() == Free {
		return
	}
	t.poller.Del(s.fd)
	sid := s.SID()
	unix.Close(s.fd)

	s.mu.Lock()
	s.drainFinalizers()
	s.mu.Unlock()

	t.table.Release(s)
	t.emit(generic.KindClose, sid, 0, nil, errno)
}

func errnoOf(err error) int {
	if errno, ok := err.(syscall.Errno); ok {
		return int(errno)
	}
	return 0
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func reply(cmd Command, sid uint32, err *silly.Error) {
	if cmd.Reply != nil {
		cmd.Reply <- commandReply{sid: sid, err: err}
	}
}
