package socket

import (
	"net"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/findstr/silly-sub001/generic"
	"github.com/findstr/silly-sub001/queue"
)

func newTestThread(t *testing.T) (*Thread, *queue.Queue) {
	t.Helper()
	q, err := queue.New()
	if err != nil {
		t.Fatalf("queue.New: %v", err)
	}
	th, err := New(q)
	if err != nil {
		t.Fatalf("socket.New: %v", err)
	}
	go th.Run()
	t.Cleanup(func() {
		th.Terminate()
		q.Close()
	})
	return th, q
}

// waitFor polls q.Drain until a message of kind is seen or timeout
// elapses, returning that message.
func waitFor(t *testing.T, q *queue.Queue, kind generic.MessageKind, timeout time.Duration) generic.Message {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, m := range q.Drain() {
			if m.Kind == kind {
				return m
			}
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for message kind %v", kind)
	return generic.Message{}
}

func TestThreadListenAcceptEchoClose(t *testing.T) {
	th, q := newTestThread(t)

	const addr = "127.0.0.1:18791"
	lsid, err := th.Listen(addr, ProtoTCP)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if lsid == 0 {
		t.Fatal("Listen must not return sid 0")
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	accept := waitFor(t, q, generic.KindAccept, 2*time.Second)
	peer := accept.SID
	if peer == 0 {
		t.Fatal("accepted socket must not get sid 0")
	}

	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("client write: %v", err)
	}
	data := waitFor(t, q, generic.KindTCPData, 2*time.Second)
	if data.SID != peer {
		t.Fatalf("data SID = %d, want %d", data.SID, peer)
	}
	if string(data.Payload) != "ping" {
		t.Fatalf("payload = %q, want %q", data.Payload, "ping")
	}

	if err := th.Send(peer, []byte("pong")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	if string(buf[:n]) != "pong" {
		t.Fatalf("client read = %q, want %q", buf[:n], "pong")
	}

	th.Close(peer)
	closeMsg := waitFor(t, q, generic.KindClose, 2*time.Second)
	if closeMsg.SID != peer {
		t.Fatalf("close SID = %d, want %d", closeMsg.SID, peer)
	}
}

func TestThreadConnectRefused(t *testing.T) {
	th, q := newTestThread(t)

	// Nothing is listening on this port.
	sid, err := th.Connect("127.0.0.1:18792", ProtoTCP)
	if err != nil {
		t.Fatalf("Connect (async) returned an error synchronously: %v", err)
	}
	if sid == 0 {
		t.Fatal("Connect must not return sid 0")
	}

	closeMsg := waitFor(t, q, generic.KindClose, 2*time.Second)
	if closeMsg.SID != sid {
		t.Fatalf("close SID = %d, want %d", closeMsg.SID, sid)
	}
	if closeMsg.Errno == 0 {
		t.Fatal("a refused connection should report a nonzero errno")
	}
}

func TestThreadUDPBindSendRecv(t *testing.T) {
	th, q := newTestThread(t)

	sidA, err := th.UDPBind("127.0.0.1:18793")
	if err != nil {
		t.Fatalf("UDPBind A: %v", err)
	}
	sidB, err := th.UDPBind("127.0.0.1:18794")
	if err != nil {
		t.Fatalf("UDPBind B: %v", err)
	}

	dst, err := net.ResolveUDPAddr("udp", "127.0.0.1:18794")
	if err != nil {
		t.Fatalf("ResolveUDPAddr: %v", err)
	}
	sa, err := toSockaddr(unix.AF_INET, dst.IP, dst.Port)
	if err != nil {
		t.Fatalf("toSockaddr: %v", err)
	}
	blob := encodeSockaddr(sa)

	if err := th.UDPSend(sidA, blob, []byte("hi")); err != nil {
		t.Fatalf("UDPSend: %v", err)
	}

	data := waitFor(t, q, generic.KindUDPData, 2*time.Second)
	if data.SID != sidB {
		t.Fatalf("UDP data SID = %d, want %d", data.SID, sidB)
	}
	// Payload is prefixed with the sender's encoded sockaddr.
	if len(data.Payload) <= 2 || string(data.Payload[len(data.Payload)-2:]) != "hi" {
		t.Fatalf("payload = %q, want suffix %q", data.Payload, "hi")
	}
}
