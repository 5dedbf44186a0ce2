package netpoll

import (
	"testing"

	"golang.org/x/sys/unix"
)

// TestPollerReadable verifies that writing to one end of a pipe makes
// the other end's fd report EventReadable tagged with the UserData it
// was registered under.
func TestPollerReadable(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		t.Fatalf("pipe2: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	const ud = uint64(42)
	if err := p.Add(fds[0], ud); err != nil {
		t.Fatalf("Add: %v", err)
	}

	var b [1]byte
	if _, err := unix.Write(fds[1], b[:]); err != nil {
		t.Fatalf("write: %v", err)
	}

	events := make([]Event, 8)
	n, err := p.Wait(events, 1000)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 1 {
		t.Fatalf("Wait returned %d events, want 1", n)
	}
	if events[0].UserData != ud {
		t.Fatalf("UserData = %d, want %d", events[0].UserData, ud)
	}
	if events[0].Flags&EventReadable == 0 {
		t.Fatalf("Flags = %v, want EventReadable set", events[0].Flags)
	}
}

// TestPollerWriteEnableToggles verifies that a fd only reports
// writability once WriteEnable(fd, ud, true) has been called, and that
// toggling it back off succeeds.
func TestPollerWriteEnableToggles(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		t.Fatalf("pipe2: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	const ud = uint64(7)
	if err := p.Add(fds[1], ud); err != nil {
		t.Fatalf("Add: %v", err)
	}

	events := make([]Event, 8)
	n, err := p.Wait(events, 50)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	for i := 0; i < n; i++ {
		if events[i].Flags&EventWritable != 0 {
			t.Fatalf("got EventWritable before WriteEnable")
		}
	}

	if err := p.WriteEnable(fds[1], ud, true); err != nil {
		t.Fatalf("WriteEnable on: %v", err)
	}
	n, err = p.Wait(events, 1000)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	found := false
	for i := 0; i < n; i++ {
		if events[i].UserData == ud && events[i].Flags&EventWritable != 0 {
			found = true
		}
	}
	if !found {
		t.Fatal("expected an EventWritable event after WriteEnable(true)")
	}

	if err := p.WriteEnable(fds[1], ud, false); err != nil {
		t.Fatalf("WriteEnable off: %v", err)
	}
}

// TestPollerDel verifies a removed fd no longer generates events.
func TestPollerDel(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		t.Fatalf("pipe2: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	if err := p.Add(fds[0], 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := p.Del(fds[0]); err != nil {
		t.Fatalf("Del: %v", err)
	}

	var b [1]byte
	unix.Write(fds[1], b[:])

	events := make([]Event, 8)
	n, err := p.Wait(events, 50)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 0 {
		t.Fatalf("Wait returned %d events after Del, want 0", n)
	}
}
