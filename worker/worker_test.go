package worker

import (
	"sync"
	"testing"
	"time"

	"github.com/findstr/silly-sub001/generic"
	"github.com/findstr/silly-sub001/queue"
)

func TestDispatcherDeliversInOrder(t *testing.T) {
	q, err := queue.New()
	if err != nil {
		t.Fatalf("queue.New: %v", err)
	}
	defer q.Close()

	d, err := New(q)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var mu sync.Mutex
	var got []uint32
	d.Register(func(msg *generic.Message) {
		mu.Lock()
		got = append(got, msg.SID)
		mu.Unlock()
	})

	go d.Run()
	defer d.Stop()

	for i := uint32(0); i < 10; i++ {
		q.Push(generic.Message{Kind: generic.KindTCPData, SID: i})
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 10 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %d messages, want 10", n)
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, sid := range got {
		if sid != uint32(i) {
			t.Fatalf("got[%d] = %d, want %d", i, sid, i)
		}
	}
}

func TestDispatcherStopDrainsRemaining(t *testing.T) {
	q, err := queue.New()
	if err != nil {
		t.Fatalf("queue.New: %v", err)
	}
	defer q.Close()

	d, err := New(q)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var mu sync.Mutex
	count := 0
	d.Register(func(msg *generic.Message) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	go d.Run()
	q.Push(generic.Message{Kind: generic.KindSignal})
	d.Stop()

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("count = %d, want 1 (Stop must drain what's already queued)", count)
	}
}

func TestDispatcherRegisterReplacesCallback(t *testing.T) {
	q, err := queue.New()
	if err != nil {
		t.Fatalf("queue.New: %v", err)
	}
	defer q.Close()

	d, err := New(q)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	calledA := make(chan struct{}, 1)
	calledB := make(chan struct{}, 1)
	d.Register(func(msg *generic.Message) { calledA <- struct{}{} })
	d.Register(func(msg *generic.Message) { calledB <- struct{}{} })

	go d.Run()
	defer d.Stop()

	q.Push(generic.Message{Kind: generic.KindTimerFire})

	select {
	case <-calledB:
	case <-time.After(time.Second):
		t.Fatal("replacement callback never invoked")
	}
	select {
	case <-calledA:
		t.Fatal("stale callback was invoked after Register replaced it")
	default:
	}
}
