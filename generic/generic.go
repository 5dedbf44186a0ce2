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

// Package generic holds the small cross-package interfaces that keep the
// socket thread, worker and timer wheel from importing one another.
package generic

// MessageKind tags a Message as it crosses the queue.
type MessageKind int

const (
	KindAccept MessageKind = iota + 1
	KindConnectOK
	KindListenOK
	KindTCPData
	KindUDPData
	KindClose
	KindSignal
	KindTimerFire
)

func (k MessageKind) String() string {
	switch k {
	case KindAccept:
		return "accept"
	case KindConnectOK:
		return "connect-ok"
	case KindListenOK:
		return "listen-ok"
	case KindTCPData:
		return "tcp-data"
	case KindUDPData:
		return "udp-data"
	case KindClose:
		return "close"
	case KindSignal:
		return "signal"
	case KindTimerFire:
		return "timer-fire"
	default:
		return "unknown"
	}
}

// Message is the unit of delivery from any producer to the worker.
type Message struct {
	Kind     MessageKind
	SID      uint32
	UserData uint64
	Payload  []byte
	Errno    int
}

// Callback is the opaque embedding-layer hook. The framework never
// interprets the payload; it is forwarded verbatim to whatever is
// listening (a scripting host, a test harness, ...).
type Callback func(msg *Message)

// Finalizer is invoked exactly once per send completion (success or
// failure) for a shared multicast buffer.
type Finalizer func()
