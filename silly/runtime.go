package silly

import (
	"os"
	"sync"
	"time"

	"github.com/findstr/silly-sub001/generic"
	"github.com/findstr/silly-sub001/queue"
	"github.com/findstr/silly-sub001/sig"
	"github.com/findstr/silly-sub001/socket"
	"github.com/findstr/silly-sub001/timer"
	"github.com/findstr/silly-sub001/worker"
)

// Runtime is the single wiring point replacing the reference's
// SOCKET/TIMER/WORKER/EVENT global singletons (spec.md §9's redesign
// flag): one value owns the message queue, the socket thread, the
// timer wheel, the signal forwarder and the worker dispatcher, and is
// threaded explicitly through the bootstrap callback instead of being
// reached via package-level state.
type Runtime struct {
	Config Config

	queue  *queue.Queue
	Socket *socket.Thread
	Timer  *timer.Wheel
	Sig    *sig.Forwarder
	Worker *worker.Dispatcher

	exitCode int
	exitOnce sync.Once
	exitCh   chan struct{}
}

// New builds a Runtime from cfg but does not start any goroutine.
func New(cfg Config) (*Runtime, error) {
	q, err := queue.New()
	if err != nil {
		return nil, Wrap(ErrResource, err)
	}
	st, err := socket.New(q)
	if err != nil {
		return nil, Wrap(ErrResource, err)
	}
	resMS := cfg.TimerResolutionMS
	if resMS <= 0 {
		resMS = 10
	}
	tw := timer.New(time.Duration(resMS)*time.Millisecond, q)
	sf := sig.New(q, os.Interrupt)
	w, err := worker.New(q)
	if err != nil {
		return nil, Wrap(ErrResource, err)
	}

	return &Runtime{
		Config: cfg,
		queue:  q,
		Socket: st,
		Timer:  tw,
		Sig:    sf,
		Worker: w,
		exitCh: make(chan struct{}),
	}, nil
}

// Launch starts the socket, timer, and signal goroutines and
// registers bootstrap with the worker, but does not yet run the
// worker's dispatch loop. Callers that need to issue Listen/Connect
// before the first message arrives (the socket thread must already be
// pumping its event loop to answer those commands) call Launch, issue
// those calls, then call Wait.
func (r *Runtime) Launch(bootstrap generic.Callback) {
	r.Worker.Register(bootstrap)
	go r.Socket.Run()
	go r.Timer.Run()
	go r.Sig.Run()
}

// Wait starts the worker dispatch loop on its own goroutine and blocks
// the caller until Exit is called, then tears down the threads in
// reverse order and returns the exit code passed to Exit.
func (r *Runtime) Wait() int {
	go r.Worker.Run()
	<-r.exitCh
	r.Sig.Stop()
	r.Timer.Stop()
	r.Socket.Terminate()
	r.Worker.Stop()
	return r.exitCode
}

// Start is Launch immediately followed by Wait, for callers with
// nothing to set up between the socket thread starting and the worker
// loop blocking (most embeddings issue their Listen calls from inside
// the bootstrap callback itself instead).
func (r *Runtime) Start(bootstrap generic.Callback) int {
	r.Launch(bootstrap)
	return r.Wait()
}

// Exit requests shutdown with the given process exit code, mirroring
// spec.md §6's `exit(n)` core call.
func (r *Runtime) Exit(code int) {
	r.exitOnce.Do(func() {
		r.exitCode = code
		close(r.exitCh)
	})
}
