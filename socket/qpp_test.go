package socket

import (
	"bytes"
	"testing"
)

func TestQPPCodecRoundTrip(t *testing.T) {
	key := []byte("shared-secret")
	tx := NewQPPCodec(key, 16)
	rx := NewQPPCodec(key, 16)

	for _, msg := range [][]byte{[]byte("first"), []byte("second chunk"), []byte("x")} {
		buf := append([]byte(nil), msg...)
		tx.Encrypt(buf)
		if bytes.Equal(buf, msg) {
			t.Fatalf("Encrypt left %q unchanged", msg)
		}
		rx.Decrypt(buf)
		if !bytes.Equal(buf, msg) {
			t.Fatalf("round trip = %q, want %q", buf, msg)
		}
	}
}
