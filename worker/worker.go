// Package worker implements the single-consumer dispatcher: it drains
// the MPSC queue and invokes the registered callback for each message,
// never suspending inside the callback itself.
package worker

import (
	"sync/atomic"

	"github.com/findstr/silly-sub001/generic"
	"github.com/findstr/silly-sub001/netpoll"
	"github.com/findstr/silly-sub001/queue"
)

const wakeupUserData = uint64(0)

// Dispatcher is the worker thread. It owns the consumer end of a
// Queue and holds the single registered Callback.
type Dispatcher struct {
	q        *queue.Queue
	poller   netpoll.Poller
	callback atomic.Value // generic.Callback

	stop chan struct{}
	done chan struct{}
}

// New creates a dispatcher bound to q. Register must be called before
// Run to install the embedding callback.
func New(q *queue.Queue) (*Dispatcher, error) {
	p, err := netpoll.New()
	if err != nil {
		return nil, err
	}
	if err := p.Add(q.ReadFD(), wakeupUserData); err != nil {
		p.Close()
		return nil, err
	}
	return &Dispatcher{
		q:      q,
		poller: p,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Register installs (or replaces) the callback invoked for every
// message. Safe to call before or while Run is active.
func (d *Dispatcher) Register(cb generic.Callback) {
	d.callback.Store(cb)
}

// Run blocks draining the queue until Stop is called. It suspends in
// the poller's Wait on the queue's wakeup pipe between batches, and
// never inside a callback invocation.
func (d *Dispatcher) Run() {
	defer close(d.done)
	events := make([]netpoll.Event, 1)
	for {
		select {
		case <-d.stop:
			d.drainOnce()
			return
		default:
		}

		_, err := d.poller.Wait(events, -1)
		if err != nil {
			continue
		}
		d.drainOnce()
	}
}

func (d *Dispatcher) drainOnce() {
	batch := d.q.Drain()
	if len(batch) == 0 {
		return
	}
	cbv := d.callback.Load()
	cb, _ := cbv.(generic.Callback)
	for i := range batch {
		msg := &batch[i]
		if cb != nil {
			cb(msg)
		}
		// Payload is owned by the worker from this point; drop the
		// reference so the backing array can be collected.
		msg.Payload = nil
	}
}

// Stop requests the dispatcher to drain any remaining messages once
// more and return from Run.
func (d *Dispatcher) Stop() {
	close(d.stop)
	d.q.Notify()
	<-d.done
	d.poller.Close()
}

// Len reports the current queue depth, for backpressure observation.
func (d *Dispatcher) Len() int { return d.q.Len() }
