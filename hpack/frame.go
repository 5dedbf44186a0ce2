package hpack

import "encoding/binary"

// FrameType identifies an HTTP/2 frame's type octet.
type FrameType uint8

const (
	FrameData         FrameType = 0x0
	FrameHeaders       FrameType = 0x1
	FrameSettings      FrameType = 0x4
	FrameRSTStream     FrameType = 0x3
	FrameWindowUpdate  FrameType = 0x8
	FrameContinuation  FrameType = 0x9
)

// Frame flags relevant to the subset of frame types this builder
// emits.
const (
	FlagEndStream  uint8 = 0x1
	FlagEndHeaders uint8 = 0x4
)

// DefaultMaxFrameSize is RFC 7540 §4.2's default SETTINGS_MAX_FRAME_SIZE.
const DefaultMaxFrameSize = 16384

// appendFrameHeader writes the fixed 9-byte HTTP/2 frame header.
func appendFrameHeader(dst []byte, length int, typ FrameType, flags uint8, streamID uint32) []byte {
	var hdr [9]byte
	hdr[0] = byte(length >> 16)
	hdr[1] = byte(length >> 8)
	hdr[2] = byte(length)
	hdr[3] = byte(typ)
	hdr[4] = flags
	binary.BigEndian.PutUint32(hdr[5:9], streamID&0x7fffffff)
	return append(dst, hdr[:]...)
}

// BuildHeaders emits a HEADERS frame, continuing into as many
// CONTINUATION frames as needed to stay within maxFrameSize, setting
// END_HEADERS only on the last fragment and END_STREAM per endStream.
func BuildHeaders(dst []byte, streamID uint32, block []byte, endStream bool, maxFrameSize int) []byte {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	first := block
	rest := []byte(nil)
	if len(block) > maxFrameSize {
		first = block[:maxFrameSize]
		rest = block[maxFrameSize:]
	}

	flags := uint8(0)
	if endStream {
		flags |= FlagEndStream
	}
	if rest == nil {
		flags |= FlagEndHeaders
	}
	dst = appendFrameHeader(dst, len(first), FrameHeaders, flags, streamID)
	dst = append(dst, first...)

	for len(rest) > 0 {
		chunk := rest
		last := true
		if len(chunk) > maxFrameSize {
			chunk = rest[:maxFrameSize]
			last = false
		}
		cflags := uint8(0)
		if last {
			cflags |= FlagEndHeaders
		}
		dst = appendFrameHeader(dst, len(chunk), FrameContinuation, cflags, streamID)
		dst = append(dst, chunk...)
		rest = rest[len(chunk):]
	}
	return dst
}

// BuildData emits one or more DATA frames, fragmenting payload by
// maxFrameSize and setting END_STREAM only on the final fragment.
func BuildData(dst []byte, streamID uint32, payload []byte, endStream bool, maxFrameSize int) []byte {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	if len(payload) == 0 {
		flags := uint8(0)
		if endStream {
			flags |= FlagEndStream
		}
		return appendFrameHeader(dst, 0, FrameData, flags, streamID)
	}
	for len(payload) > 0 {
		chunk := payload
		last := true
		if len(chunk) > maxFrameSize {
			chunk = payload[:maxFrameSize]
			last = false
		}
		flags := uint8(0)
		if last && endStream {
			flags |= FlagEndStream
		}
		dst = appendFrameHeader(dst, len(chunk), FrameData, flags, streamID)
		dst = append(dst, chunk...)
		payload = payload[len(chunk):]
	}
	return dst
}

// Setting is one SETTINGS frame parameter.
type Setting struct {
	ID    uint16
	Value uint32
}

// BuildSettings emits a SETTINGS frame (stream id 0, per RFC 7540 §6.5).
func BuildSettings(dst []byte, settings []Setting) []byte {
	body := make([]byte, 0, len(settings)*6)
	for _, s := range settings {
		var b [6]byte
		binary.BigEndian.PutUint16(b[0:2], s.ID)
		binary.BigEndian.PutUint32(b[2:6], s.Value)
		body = append(body, b[:]...)
	}
	dst = appendFrameHeader(dst, len(body), FrameSettings, 0, 0)
	return append(dst, body...)
}

// BuildWindowUpdate emits a WINDOW_UPDATE frame for streamID (0 for
// the connection-level window).
func BuildWindowUpdate(dst []byte, streamID uint32, increment uint32) []byte {
	var body [4]byte
	binary.BigEndian.PutUint32(body[:], increment&0x7fffffff)
	dst = appendFrameHeader(dst, 4, FrameWindowUpdate, 0, streamID)
	return append(dst, body[:]...)
}

// BuildRSTStream emits an RST_STREAM frame carrying errorCode (RFC
// 7540 §6.4).
func BuildRSTStream(dst []byte, streamID uint32, errorCode uint32) []byte {
	var body [4]byte
	binary.BigEndian.PutUint32(body[:], errorCode)
	dst = appendFrameHeader(dst, 4, FrameRSTStream, 0, streamID)
	return append(dst, body[:]...)
}
