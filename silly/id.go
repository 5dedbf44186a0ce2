package silly

import "sync/atomic"

// genCounter backs NewID. The reference's silly_genid() is a bare
// 32-bit counter that wraps after 2^32 calls without generation bits
// (spec.md §9 calls this a bug to fix, not replicate); NewID uses a
// 64-bit atomic counter so a long-running process never wraps in
// practice, and a 16-bit slice of it doubles as a generation number
// for callers (like the socket table) that need one.
var genCounter uint64

// NewID returns a process-wide monotonically increasing identifier.
func NewID() uint64 {
	return atomic.AddUint64(&genCounter, 1)
}

// NewGeneration returns the low 16 bits of NewID(), wrapping modulo
// 2^16. The socket table packs a sid as generation<<16 | index into a
// single uint32 with a 16-bit index (64k slots), so 16 bits is all a
// generation has room for there; a single table slot would need to be
// reserved/freed 65536 times before a stale sid from one generation
// could alias a fresh one, which NewID()'s outer 64-bit counter guards
// against in turn.
func NewGeneration() uint32 {
	return uint32(NewID() & 0xFFFF)
}
