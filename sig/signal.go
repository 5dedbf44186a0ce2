// Package sig forwards asynchronous process signals onto the worker
// queue. The os/signal channel already does the async-signal-safe
// write-a-byte dance for us; this package's job is turning delivered
// signals into generic.Message values without blocking the notifier.
package sig

import (
	"os"
	"os/signal"

	"github.com/findstr/silly-sub001/generic"
	"github.com/findstr/silly-sub001/queue"
)

// Forwarder relays a fixed set of signals into Q as KindSignal
// messages, UserData holding the signal number.
type Forwarder struct {
	q    *queue.Queue
	ch   chan os.Signal
	stop chan struct{}
	done chan struct{}
}

// New registers interest in sigs and returns a Forwarder; call Run to
// start relaying.
func New(q *queue.Queue, sigs ...os.Signal) *Forwarder {
	ch := make(chan os.Signal, 16)
	signal.Notify(ch, sigs...)
	return &Forwarder{
		q:    q,
		ch:   ch,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Run blocks relaying signals until Stop is called.
func (f *Forwarder) Run() {
	defer close(f.done)
	for {
		select {
		case s := <-f.ch:
			f.q.Push(generic.Message{
				Kind:     generic.KindSignal,
				UserData: uint64(signalNumber(s)),
			})
		case <-f.stop:
			signal.Stop(f.ch)
			return
		}
	}
}

// Stop halts the forwarder.
func (f *Forwarder) Stop() {
	close(f.stop)
	<-f.done
}
