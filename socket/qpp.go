package socket

import (
	"github.com/xtaci/qpp"

	"github.com/findstr/silly-sub001/silly"
)

// QPPCodec is a per-socket obfuscation layer using xtaci/qpp's
// quantum-permutation-pad cipher: a lightweight byte-substitution
// scheme the teacher's client/server wire onto TCP and KCP streams
// ahead of the real payload, generalized here to a reusable codec
// bound to one socket rather than one hand-rolled stream wrapper.
// encRand/decRand inside the underlying QuantumPermutationPad are
// stateful counters advanced by every Encrypt/Decrypt call, so a
// codec must see every byte of its socket's stream in order and must
// not be shared between sockets.
type QPPCodec struct {
	pad *qpp.QuantumPermutationPad
}

// NewQPPCodec derives a codec from key (shared out of band with the
// peer, e.g. from Config) and numPads permutation matrices.
func NewQPPCodec(key []byte, numPads uint16) *QPPCodec {
	return &QPPCodec{pad: qpp.NewQPP(key, numPads)}
}

// Encrypt obfuscates data in place.
func (c *QPPCodec) Encrypt(data []byte) { c.pad.Encrypt(data) }

// Decrypt reverses Encrypt in place; the two sides' calls must happen
// in the same order the bytes crossed the wire in.
func (c *QPPCodec) Decrypt(data []byte) { c.pad.Decrypt(data) }

// SetQPP attaches codec to sid: every subsequent Send on this socket
// is obfuscated before it reaches the wire, and every inbound chunk
// is deobfuscated before it is emitted to the worker. Only the TCP
// send and read paths apply the codec; it has no effect on UDP or KCP
// sockets. Pass nil to detach.
func (t *Thread) SetQPP(sid uint32, codec *QPPCodec) *silly.Error {
	s := t.table.Lookup(sid)
	if s == nil {
		return &silly.Error{Kind: silly.ErrArgument}
	}
	s.mu.Lock()
	s.qpp = codec
	s.mu.Unlock()
	return nil
}
