package hpack

import "testing"

func TestHuffmanRoundTrip(t *testing.T) {
	cases := []string{"", "a", "www.example.com", "no-cache", "custom-key", "custom-value"}
	for _, s := range cases {
		enc := HuffmanEncode(nil, s)
		dec, err := HuffmanDecode(nil, enc)
		if err != nil {
			t.Fatalf("decode(%q): %v", s, err)
		}
		if string(dec) != s {
			t.Fatalf("round trip mismatch: %q -> %q", s, dec)
		}
	}
}

func TestHuffmanDecodeRejectsEOS(t *testing.T) {
	// The 30-bit EOS code (huffmanTable[256]), right-padded to a whole
	// number of bytes with 1-bits, must never decode as data.
	hc := huffmanTable[eosSymbol]
	var dst []byte
	dst = append(dst, byte(hc.code>>22), byte(hc.code>>14), byte(hc.code>>6))
	dst = append(dst, byte(hc.code<<2)|0x3)
	if _, err := HuffmanDecode(nil, dst); err == nil {
		t.Fatal("decoding a complete EOS code must be an error, not a symbol")
	}
}

func TestStaticTableIndexedField(t *testing.T) {
	dyn := NewDynamicTable(DefaultMaxFrameSize)
	enc := NewEncoder(dyn, false)
	dst := enc.EncodeField(nil, ":method", "GET", false)

	dec := NewDecoder(NewDynamicTable(DefaultMaxFrameSize))
	fields, err := dec.DecodeFields(dst)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(fields) != 1 || fields[0].Name != ":method" || fields[0].Value != "GET" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
}

func TestDynamicTableInsertionAndLookup(t *testing.T) {
	encDyn := NewDynamicTable(4096)
	decDyn := NewDynamicTable(4096)
	enc := NewEncoder(encDyn, false)
	dec := NewDecoder(decDyn)

	var buf []byte
	buf = enc.EncodeField(buf, "x-custom", "one", true)
	buf = enc.EncodeField(buf, "x-custom", "one", true) // should now hit the dynamic table

	fields, err := dec.DecodeFields(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	for _, f := range fields {
		if f.Name != "x-custom" || f.Value != "one" {
			t.Fatalf("unexpected field: %+v", f)
		}
	}
	if encDyn.Len() != 1 {
		t.Fatalf("expected 1 dynamic entry on encoder side (second field indexed), got %d", encDyn.Len())
	}
}

func TestDynamicTableEvictsBySize(t *testing.T) {
	dyn := NewDynamicTable(64) // tiny: one (4+5+32)=41-byte entry fits; a second (5+6+32)=43-byte one evicts the first
	dyn.Insert("name", "value")
	if dyn.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", dyn.Len())
	}
	dyn.Insert("name2", "value2")
	if dyn.Len() != 1 {
		t.Fatalf("expected eviction to cap at 1 entry, got %d", dyn.Len())
	}
	if _, ok := dyn.FindName("name"); ok {
		t.Fatalf("expected oldest entry to be evicted")
	}
}

func TestFrameBuilderHeadersFragmentation(t *testing.T) {
	block := make([]byte, 10)
	for i := range block {
		block[i] = byte(i)
	}
	out := BuildHeaders(nil, 1, block, true, 4)
	// Expect a HEADERS frame of 4 bytes, then CONTINUATION frames of
	// 4 and 2 bytes: 3 frame headers (9 bytes each) + 10 body bytes.
	if len(out) != 3*9+10 {
		t.Fatalf("unexpected total length %d", len(out))
	}
	if FrameType(out[3]) != FrameHeaders {
		t.Fatalf("expected first frame to be HEADERS, got %d", out[3])
	}
}

func TestFrameBuilderRSTStream(t *testing.T) {
	out := BuildRSTStream(nil, 3, 2)
	if len(out) != 13 {
		t.Fatalf("expected 13 bytes, got %d", len(out))
	}
	if FrameType(out[3]) != FrameRSTStream {
		t.Fatalf("expected RST_STREAM frame type")
	}
}
