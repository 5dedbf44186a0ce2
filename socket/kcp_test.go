package socket

import (
	"testing"
	"time"

	"github.com/findstr/silly-sub001/generic"
)

func TestThreadKCPListenConnectEchoClose(t *testing.T) {
	th, q := newTestThread(t)

	const addr = "127.0.0.1:18795"
	lsid, err := th.ListenKCP(addr, 0, 0)
	if err != nil {
		t.Fatalf("ListenKCP: %v", err)
	}
	if lsid == 0 {
		t.Fatal("ListenKCP must not return sid 0")
	}

	csid, err := th.ConnectKCP(addr, 0, 0)
	if err != nil {
		t.Fatalf("ConnectKCP: %v", err)
	}
	if csid == 0 {
		t.Fatal("ConnectKCP must not return sid 0")
	}
	waitFor(t, q, generic.KindConnectOK, 2*time.Second)

	accept := waitFor(t, q, generic.KindAccept, 2*time.Second)
	peer := accept.SID
	if peer == 0 {
		t.Fatal("accepted KCP session must not get sid 0")
	}

	if err := th.Send(csid, []byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
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
	reply := waitFor(t, q, generic.KindTCPData, 2*time.Second)
	if reply.SID != csid {
		t.Fatalf("reply SID = %d, want %d", reply.SID, csid)
	}
	if string(reply.Payload) != "pong" {
		t.Fatalf("reply payload = %q, want %q", reply.Payload, "pong")
	}

	th.Close(csid)
	closeMsg := waitFor(t, q, generic.KindClose, 2*time.Second)
	if closeMsg.SID != csid {
		t.Fatalf("close SID = %d, want %d", closeMsg.SID, csid)
	}
}
