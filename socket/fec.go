package socket

import (
	"bytes"

	"github.com/klauspost/reedsolomon"

	"github.com/findstr/silly-sub001/silly"
)

// FECGroup is a reusable forward-error-correction codec for a fixed
// data/parity shard split (kcp-go layers the same library per-session
// over a single stream; here it is spread explicitly across distinct
// multicast recipients instead).
type FECGroup struct {
	enc          reedsolomon.Encoder
	dataShards   int
	parityShards int
}

// NewFECGroup builds a codec for dataShards data shards and
// parityShards parity shards.
func NewFECGroup(dataShards, parityShards int) (*FECGroup, error) {
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, err
	}
	return &FECGroup{enc: enc, dataShards: dataShards, parityShards: parityShards}, nil
}

// Encode splits buf into equal-length data shards, padding the last
// one, and computes the parity shards. origLen must be passed back to
// Decode to trim the padding.
func (g *FECGroup) Encode(buf []byte) (shards [][]byte, origLen int, err error) {
	origLen = len(buf)
	shards, err = g.enc.Split(buf)
	if err != nil {
		return nil, 0, err
	}
	if err := g.enc.Encode(shards); err != nil {
		return nil, 0, err
	}
	return shards, origLen, nil
}

// Decode reconstructs buf from shards (entries for lost shards must
// be nil) and trims the result back to origLen.
func (g *FECGroup) Decode(shards [][]byte, origLen int) ([]byte, error) {
	if err := g.enc.Reconstruct(shards); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := g.enc.Join(&out, shards, origLen); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// SendMulticastFEC fans buf out to sids like SendMulticast, but first
// FEC-encodes it into len(sids) shards (len(sids)-parityShards data
// shards plus parityShards parity shards), one per recipient, so the
// group's members can reconstruct buf between themselves even if up
// to parityShards deliveries are lost.
func (t *Thread) SendMulticastFEC(sids []uint32, buf []byte, parityShards int) *silly.Error {
	dataShards := len(sids) - parityShards
	if dataShards <= 0 {
		return &silly.Error{Kind: silly.ErrArgument}
	}
	g, err := NewFECGroup(dataShards, parityShards)
	if err != nil {
		return silly.Wrap(silly.ErrArgument, err)
	}
	shards, _, err := g.Encode(buf)
	if err != nil {
		return silly.Wrap(silly.ErrArgument, err)
	}

	var firstErr *silly.Error
	for i, sid := range sids {
		if serr := t.Send(sid, shards[i]); serr != nil && firstErr == nil {
			firstErr = serr
		}
	}
	return firstErr
}
