// Package hpack implements RFC 7541 HTTP/2 header compression: a
// 61-entry static table, a per-connection dynamic table with
// ring-indexed eviction, a byte-indexed Huffman codec, and an HTTP/2
// frame builder (frame.go).
package hpack

import (
	"github.com/pkg/errors"
)

// HeaderField is one decoded name/value pair.
type HeaderField struct {
	Name  string
	Value string
}

var (
	errHuffmanInvalid = errors.New("hpack: invalid huffman code")
	errIndexOutOfRange = errors.New("hpack: header index out of range")
	errIntegerOverflow = errors.New("hpack: integer overflow")
	errTruncated       = errors.New("hpack: truncated input")
)

const staticTableSize = 61

// Encoder packs header fields against a shared static table and a
// per-connection DynamicTable.
type Encoder struct {
	dyn         *DynamicTable
	huffman     bool // whether to Huffman-encode literal strings
}

// NewEncoder returns an Encoder backed by dyn (create one per
// connection via NewDynamicTable).
func NewEncoder(dyn *DynamicTable, huffman bool) *Encoder {
	return &Encoder{dyn: dyn, huffman: huffman}
}

// EncodeBlock packs every field of fields into one header block,
// treating the whole block as a single pack operation so the
// dynamic-table eviction floor (queue_used_min) covers every index
// this block references, not just the last field encoded.
func (e *Encoder) EncodeBlock(dst []byte, fields []HeaderField, incremental bool) []byte {
	e.dyn.BeginOp()
	defer e.dyn.EndOp()
	for _, f := range fields {
		dst = e.encodeOne(dst, f.Name, f.Value, incremental)
	}
	return dst
}

// EncodeField appends the wire representation of name:value to dst as
// its own single-field pack operation. Prefer EncodeBlock when
// emitting several fields together.
func (e *Encoder) EncodeField(dst []byte, name, value string, incremental bool) []byte {
	e.dyn.BeginOp()
	defer e.dyn.EndOp()
	return e.encodeOne(dst, name, value, incremental)
}

func (e *Encoder) encodeOne(dst []byte, name, value string, incremental bool) []byte {
	if idx, ok := staticPairIndex[name+"\x00"+value]; ok {
		return appendInt(dst, 0x80, 7, uint64(idx))
	}
	if idx, ok := e.dyn.FindPair(name, value); ok {
		return appendInt(dst, 0x80, 7, uint64(staticTableSize+idx))
	}

	var nameIdx uint64
	var haveNameIdx bool
	if idx, ok := staticNameIndex[name]; ok {
		nameIdx, haveNameIdx = uint64(idx), true
	} else if idx, ok := e.dyn.FindName(name); ok {
		nameIdx, haveNameIdx = uint64(staticTableSize+idx), true
	}

	prefixByte := byte(0x00) // literal without indexing, unless incremental
	prefixBits := 4
	if incremental {
		prefixByte = 0x40
		prefixBits = 6
	}

	if haveNameIdx {
		dst = appendInt(dst, prefixByte, prefixBits, nameIdx)
	} else {
		dst = appendInt(dst, prefixByte, prefixBits, 0)
		dst = e.appendString(dst, name)
	}
	dst = e.appendString(dst, value)

	if incremental {
		e.dyn.Insert(name, value)
	}
	return dst
}

func (e *Encoder) appendString(dst []byte, s string) []byte {
	if e.huffman {
		encLen := HuffmanEncodedLen(s)
		if encLen < len(s) {
			dst = appendInt(dst, 0x80, 7, uint64(encLen))
			return HuffmanEncode(dst, s)
		}
	}
	dst = appendInt(dst, 0x00, 7, uint64(len(s)))
	return append(dst, s...)
}

// Decoder unpacks a header block against the same static/dynamic
// table pairing the Encoder used.
type Decoder struct {
	dyn *DynamicTable
}

// NewDecoder returns a Decoder backed by dyn.
func NewDecoder(dyn *DynamicTable) *Decoder {
	return &Decoder{dyn: dyn}
}

// DecodeFields parses an entire header block.
func (d *Decoder) DecodeFields(data []byte) ([]HeaderField, error) {
	d.dyn.BeginOp()
	defer d.dyn.EndOp()

	var out []HeaderField
	for len(data) > 0 {
		b := data[0]
		switch {
		case b&0x80 != 0: // indexed header field
			idx, rest, err := readInt(data, 0x7f, 1)
			if err != nil {
				return out, err
			}
			data = rest
			name, value, err := d.lookup(idx)
			if err != nil {
				return out, err
			}
			out = append(out, HeaderField{Name: name, Value: value})

		case b&0xc0 == 0x40: // literal with incremental indexing
			hf, rest, err := d.decodeLiteral(data, 0x3f, 2, true)
			if err != nil {
				return out, err
			}
			data = rest
			out = append(out, hf)

		case b&0xe0 == 0x20: // dynamic table size update
			sz, rest, err := readInt(data, 0x1f, 3)
			if err != nil {
				return out, err
			}
			data = rest
			d.dyn.softLimit = sz

		default: // literal without / never indexed (0000xxxx / 0001xxxx)
			hf, rest, err := d.decodeLiteral(data, 0x0f, 4, false)
			if err != nil {
				return out, err
			}
			data = rest
			out = append(out, hf)
		}
	}
	return out, nil
}

func (d *Decoder) decodeLiteral(data []byte, mask byte, prefixBits int, incremental bool) (HeaderField, []byte, error) {
	idx, rest, err := readInt(data, mask, prefixBits)
	if err != nil {
		return HeaderField{}, nil, err
	}
	var name string
	if idx == 0 {
		s, r2, err := readString(rest)
		if err != nil {
			return HeaderField{}, nil, err
		}
		name, rest = s, r2
	} else {
		n, _, err := d.lookup(idx)
		if err != nil {
			return HeaderField{}, nil, err
		}
		name = n
	}
	value, rest, err := readString(rest)
	if err != nil {
		return HeaderField{}, nil, err
	}
	if incremental {
		d.dyn.Insert(name, value)
	}
	return HeaderField{Name: name, Value: value}, rest, nil
}

func (d *Decoder) lookup(idx int) (name, value string, err error) {
	if idx >= 1 && idx <= staticTableSize {
		e := staticTable[idx-1]
		return e.name, e.value, nil
	}
	name, value, ok := d.dyn.Get(idx - staticTableSize)
	if !ok {
		return "", "", errIndexOutOfRange
	}
	return name, value, nil
}

// appendInt encodes value using RFC 7541 §5.1's variable-length
// integer representation with prefixBits available in the first byte
// (whose upper bits are already set to base).
func appendInt(dst []byte, base byte, prefixBits int, value uint64) []byte {
	max := uint64(1<<uint(prefixBits)) - 1
	if value < max {
		return append(dst, base|byte(value))
	}
	dst = append(dst, base|byte(max))
	value -= max
	for value >= 0x80 {
		dst = append(dst, byte(value&0x7f)|0x80)
		value >>= 7
	}
	return append(dst, byte(value))
}

// readInt is the inverse of appendInt: the prefix bits of the first
// byte are selected by mask, followed by 7-bit continuation bytes.
// skipUnused is ignored.
func readInt(data []byte, mask byte, skipUnused int) (int, []byte, error) {
	if len(data) == 0 {
		return 0, nil, errTruncated
	}
	prefixBits := 0
	for m := mask; m != 0; m >>= 1 {
		prefixBits++
	}
	val := uint64(data[0] & mask)
	data = data[1:]
	maxPrefix := uint64(mask)
	if val < maxPrefix {
		return int(val), data, nil
	}
	shift := uint(0)
	for {
		if len(data) == 0 {
			return 0, nil, errTruncated
		}
		b := data[0]
		data = data[1:]
		val += uint64(b&0x7f) << shift
		if val > 1<<32 {
			return 0, nil, errIntegerOverflow
		}
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return int(val), data, nil
}

// readString parses a literal string: a length integer with a 7-bit
// prefix (high bit of the first byte = Huffman flag) followed by that
// many bytes.
func readString(data []byte) (string, []byte, error) {
	if len(data) == 0 {
		return "", nil, errTruncated
	}
	huff := data[0]&0x80 != 0
	n, rest, err := readInt(data, 0x7f, 1)
	if err != nil {
		return "", nil, err
	}
	if len(rest) < n {
		return "", nil, errTruncated
	}
	raw := rest[:n]
	rest = rest[n:]
	if !huff {
		return string(raw), rest, nil
	}
	decoded, err := HuffmanDecode(nil, raw)
	if err != nil {
		return "", nil, err
	}
	return string(decoded), rest, nil
}
