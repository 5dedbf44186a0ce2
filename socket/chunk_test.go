package socket

import "testing"

func TestPushPopChunkPendingBytes(t *testing.T) {
	s := &Socket{}
	finalized := false
	c := newChunk([]byte("hello"), func() { finalized = true })

	s.pushChunk(c)
	if got := s.PendingBytes(); got != 5 {
		t.Fatalf("PendingBytes = %d, want 5", got)
	}

	c.advance(5)
	s.popFrontIfDone()
	if !finalized {
		t.Fatal("finalizer not invoked once the chunk completed")
	}
	if s.sendHead != nil || s.sendTail != nil {
		t.Fatal("queue should be empty after its only chunk completes")
	}
}

func TestPopFrontIfDoneLeavesPartialChunkQueued(t *testing.T) {
	s := &Socket{}
	c := newChunk([]byte("hello"), nil)
	s.pushChunk(c)
	c.advance(2)
	s.popFrontIfDone()
	if s.sendHead != c {
		t.Fatal("a partially-written chunk must stay at the head of the queue")
	}
}

func TestDrainFinalizersRunsAllInOrderAndResetsPending(t *testing.T) {
	s := &Socket{}
	var ran []int
	s.pushChunk(newChunk([]byte("aa"), func() { ran = append(ran, 1) }))
	s.pushChunk(newChunk([]byte("bbbb"), func() { ran = append(ran, 2) }))

	if got := s.PendingBytes(); got != 6 {
		t.Fatalf("PendingBytes = %d, want 6", got)
	}
	s.drainFinalizers()
	if len(ran) != 2 || ran[0] != 1 || ran[1] != 2 {
		t.Fatalf("finalizers ran = %v, want [1 2]", ran)
	}
	if s.PendingBytes() != 0 {
		t.Fatalf("PendingBytes after drain = %d, want 0", s.PendingBytes())
	}
	if s.sendHead != nil || s.sendTail != nil {
		t.Fatal("queue should be empty after drainFinalizers")
	}
}

func TestRecordWriteShrinksPending(t *testing.T) {
	s := &Socket{}
	s.pushChunk(newChunk([]byte("0123456789"), nil))
	s.recordWrite(4)
	if got := s.PendingBytes(); got != 6 {
		t.Fatalf("PendingBytes = %d, want 6", got)
	}
}
