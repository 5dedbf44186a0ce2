package queue

import (
	"sync"
	"testing"

	"github.com/findstr/silly-sub001/generic"
)

func TestQueuePushDrainFIFO(t *testing.T) {
	q, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer q.Close()

	for i := 0; i < 8; i++ {
		q.Push(generic.Message{Kind: generic.KindTCPData, SID: uint32(i)})
	}
	msgs := q.Drain()
	if len(msgs) != 8 {
		t.Fatalf("len = %d, want 8", len(msgs))
	}
	for i, m := range msgs {
		if m.SID != uint32(i) {
			t.Fatalf("msgs[%d].SID = %d, want %d", i, m.SID, i)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("Len after drain = %d, want 0", q.Len())
	}
}

func TestQueueDrainEmptyReturnsNil(t *testing.T) {
	q, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer q.Close()

	if msgs := q.Drain(); msgs != nil {
		t.Fatalf("Drain on empty queue = %v, want nil", msgs)
	}
}

// TestQueueConcurrentProducers exercises the MPSC path: many
// goroutines push concurrently, and the total drained across
// however-many Drain calls it takes must equal what was pushed, with
// no message duplicated or dropped.
func TestQueueConcurrentProducers(t *testing.T) {
	q, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer q.Close()

	const producers = 16
	const perProducer = 200
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(generic.Message{Kind: generic.KindTCPData, UserData: uint64(p)})
			}
		}(p)
	}
	wg.Wait()

	total := 0
	for {
		msgs := q.Drain()
		if len(msgs) == 0 {
			break
		}
		total += len(msgs)
	}
	if total != producers*perProducer {
		t.Fatalf("total drained = %d, want %d", total, producers*perProducer)
	}
}

// TestQueueWakeupCoalescing checks that only the first push after a
// drain triggers a wakeup write: many pushes between drains must not
// leave more than one pending byte queued on the self-pipe.
func TestQueueWakeupCoalescing(t *testing.T) {
	q, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer q.Close()

	for i := 0; i < 100; i++ {
		q.Push(generic.Message{Kind: generic.KindTimerFire})
	}
	q.mu.Lock()
	wake := q.wakeupPending
	q.mu.Unlock()
	if !wake {
		t.Fatal("wakeupPending should be true after pushes with no drain")
	}
	q.Drain()
	q.mu.Lock()
	wake = q.wakeupPending
	q.mu.Unlock()
	if wake {
		t.Fatal("wakeupPending should be false immediately after Drain")
	}
}
