// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package std

const (
	minReadBuffer = 256
	maxReadBuffer = 1 << 20 // 1MiB cap
)

// GrowBuffer implements the socket thread's read-buffer sizing
// heuristic: double the buffer when a read fills it completely (up to
// maxReadBuffer), halve it when a read leaves it mostly empty (down
// to minReadBuffer), otherwise leave it as-is.
func GrowBuffer(buf []byte, n int) []byte {
	capacity := cap(buf)
	switch {
	case n == capacity && capacity < maxReadBuffer:
		next := capacity * 2
		if next > maxReadBuffer {
			next = maxReadBuffer
		}
		return make([]byte, next)
	case n <= capacity/4 && capacity > minReadBuffer:
		next := capacity / 2
		if next < minReadBuffer {
			next = minReadBuffer
		}
		return make([]byte, next)
	default:
		return buf
	}
}

// NewReadBuffer returns the initial per-connection read buffer.
func NewReadBuffer() []byte {
	return make([]byte, minReadBuffer)
}
