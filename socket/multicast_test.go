package socket

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/findstr/silly-sub001/generic"
)

func TestSendMulticastFansOutIdenticalPayload(t *testing.T) {
	th, q := newTestThread(t)

	const addr = "127.0.0.1:18796"
	if _, err := th.Listen(addr, ProtoTCP); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	var conns []net.Conn
	var sids []uint32
	for i := 0; i < 3; i++ {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		t.Cleanup(func() { conn.Close() })
		conns = append(conns, conn)
		accept := waitFor(t, q, generic.KindAccept, 2*time.Second)
		sids = append(sids, accept.SID)
	}

	payload := []byte("multicast-hello")
	if err := th.SendMulticast(sids, payload); err != nil {
		t.Fatalf("SendMulticast: %v", err)
	}

	for i, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, len(payload))
		if _, err := conn.Read(buf); err != nil {
			t.Fatalf("peer %d read: %v", i, err)
		}
		if !bytes.Equal(buf, payload) {
			t.Fatalf("peer %d got %q, want %q", i, buf, payload)
		}
	}
}

func TestSendMulticastFECReconstructs(t *testing.T) {
	th, q := newTestThread(t)

	const addr = "127.0.0.1:18797"
	if _, err := th.Listen(addr, ProtoTCP); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	const dataShards, parityShards = 2, 1
	var conns []net.Conn
	var sids []uint32
	for i := 0; i < dataShards+parityShards; i++ {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		t.Cleanup(func() { conn.Close() })
		conns = append(conns, conn)
		accept := waitFor(t, q, generic.KindAccept, 2*time.Second)
		sids = append(sids, accept.SID)
	}

	payload := []byte("fec-protected-group-message")
	if err := th.SendMulticastFEC(sids, payload, parityShards); err != nil {
		t.Fatalf("SendMulticastFEC: %v", err)
	}

	shardLen := (len(payload) + dataShards - 1) / dataShards
	shards := make([][]byte, len(conns))
	for i, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, shardLen)
		if _, err := conn.Read(buf); err != nil {
			t.Fatalf("peer %d read: %v", i, err)
		}
		shards[i] = buf
	}

	// Simulate losing one data shard: Decode must reconstruct it from
	// the surviving data+parity shards before assembling the payload.
	shards[0] = nil
	g, err := NewFECGroup(dataShards, parityShards)
	if err != nil {
		t.Fatalf("NewFECGroup: %v", err)
	}
	out, err := g.Decode(shards, len(payload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("decoded = %q, want %q", out, payload)
	}
}
