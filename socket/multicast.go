package socket

import (
	"sync/atomic"

	"github.com/findstr/silly-sub001/silly"
)

// multipack is a reference-counted buffer shared across several
// SendChunks fanned out to different sockets (spec.md §4.2/§9). The
// backing array is freed (dropped for GC) once every recipient's
// finalizer has fired, whether that recipient succeeded or the socket
// was closed with the chunk still pending.
type multipack struct {
	buf    []byte
	refcnt int32
}

// Multipack wraps buf, without copying it or adding a header, as a
// shared buffer with an initial refcount of n.
func Multipack(buf []byte, n int) *multipack {
	return &multipack{buf: buf, refcnt: int32(n)}
}

// finalizer returns a Finalizer bound to this multipack: each call
// decrements the refcount, and the last caller releases the backing
// array.
func (m *multipack) finalizer() func() {
	return func() {
		if atomic.AddInt32(&m.refcnt, -1) == 0 {
			m.buf = nil
		}
	}
}

// SendMulticast enqueues buf (backed by a single shared multipack) to
// every sid in sids. The finalizer is invoked exactly once per send
// completion, success or failure, across all recipients combined.
func (t *Thread) SendMulticast(sids []uint32, buf []byte) *silly.Error {
	mp := Multipack(buf, len(sids))
	var firstErr *silly.Error
	for _, sid := range sids {
		if err := t.sendChunk(sid, mp.buf, mp.finalizer()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
