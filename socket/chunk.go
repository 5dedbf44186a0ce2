package socket

import "sync/atomic"

// SendChunk is one buffer queued for write on a socket. Finalizer, if
// set, is invoked exactly once when the chunk finishes (successfully
// or via close) — the mechanism multicast buffers use to decrement
// their shared refcount.
type SendChunk struct {
	buf       []byte
	offset    int
	finalizer func()
	next      *SendChunk
}

func newChunk(buf []byte, finalizer func()) *SendChunk {
	return &SendChunk{buf: buf, finalizer: finalizer}
}

func (c *SendChunk) remaining() []byte { return c.buf[c.offset:] }

func (c *SendChunk) advance(n int) { c.offset += n }

func (c *SendChunk) done() bool { return c.offset >= len(c.buf) }

// pushChunk appends a chunk to the socket's send queue and updates
// the pending-byte accounting. Caller must hold s.mu.
func (s *Socket) pushChunk(c *SendChunk) {
	if s.sendTail == nil {
		s.sendHead, s.sendTail = c, c
	} else {
		s.sendTail.next = c
		s.sendTail = c
	}
	atomic.AddInt64(&s.pendingBytes, int64(len(c.buf)-c.offset))
}

// popFrontIfDone removes the head chunk once fully written, invoking
// its finalizer. Caller must hold s.mu.
func (s *Socket) popFrontIfDone() {
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

// drainFinalizers runs every remaining chunk's finalizer (a socket
// being forced closed with unsent data) and empties the queue. Caller
// must hold s.mu.
func (s *Socket) drainFinalizers() {
	for c := s.sendHead; c != nil; {
		next := c.next
		if c.finalizer != nil {
			c.finalizer()
		}
		c = next
	}
	s.sendHead, s.sendTail = nil, nil
	atomic.StoreInt64(&s.pendingBytes, 0)
}

// recordWrite shrinks the pending-byte counter by n after a
// successful partial or full write. Caller must hold s.mu.
func (s *Socket) recordWrite(n int) {
	atomic.AddInt64(&s.pendingBytes, -int64(n))
}
