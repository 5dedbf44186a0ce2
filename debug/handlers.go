package debug

import (
	"fmt"
	"io"

	"github.com/findstr/silly-sub001/socket"
	"github.com/findstr/silly-sub001/timer"
)

// RegisterRuntime wires the standard "sockets" and "timers" dumps
// spec.md's reference implementation exposes through its debugger
// bindings, now plain Handlers over the socket table and timer wheel.
func RegisterRuntime(s *Server, st *socket.Thread, tw *timer.Wheel) {
	s.Handle("sockets", func(w io.Writer) {
		stats := st.Stats()
		for state, n := range stats {
			fmt.Fprintf(w, "%-10s %d\n", state, n)
		}
	})
	s.Handle("timers", func(w io.Writer) {
		fmt.Fprintf(w, "pending %d\n", tw.Pending())
	})
}
