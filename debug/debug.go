// Package debug implements an introspection channel multiplexed over
// a single control connection with smux, standing in for the
// reference's Lua debugger/profiler bindings (out of scope per
// spec.md's "embedded scripting-host bindings" exclusion) while
// keeping the underlying need: many independent request/response
// conversations sharing one socket.
package debug

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"
	"github.com/xtaci/smux"

	"github.com/findstr/silly-sub001/std"
)

// Handler answers one named introspection request by writing its
// dump to w.
type Handler func(w io.Writer)

// Server accepts smux streams over a single connection and dispatches
// each to the Handler registered under the stream's requested name.
type Server struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewServer returns an empty Server; register handlers with Handle
// before calling Serve.
func NewServer() *Server {
	return &Server{handlers: make(map[string]Handler)}
}

// Handle registers a named dump, e.g. "stats", "timers", "sockets".
func (s *Server) Handle(name string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = h
}

// Serve runs the smux server loop over conn until it errors or
// closes. Each accepted stream carries a single newline-terminated
// name line identifying which Handler answers it.
func (s *Server) Serve(conn net.Conn) error {
	cfg, err := std.BuildSmuxConfig(2, 4*1024*1024, 4*1024*1024, 32768, 10)
	if err != nil {
		return errors.Wrap(err, "debug: building smux config")
	}
	session, err := smux.Server(conn, cfg)
	if err != nil {
		return errors.Wrap(err, "debug: smux.Server")
	}
	defer session.Close()

	for {
		stream, err := session.AcceptStream()
		if err != nil {
			return err
		}
		go s.serveStream(stream)
	}
}

func (s *Server) serveStream(stream *smux.Stream) {
	defer stream.Close()
	name, err := bufio.NewReader(stream).ReadString('\n')
	if err != nil {
		return
	}
	name = name[:len(name)-1]

	s.mu.RLock()
	h := s.handlers[name]
	s.mu.RUnlock()

	if h == nil {
		fmt.Fprintf(stream, "unknown introspection target %q\n", name)
		return
	}
	h(stream)
}

// Dial opens a smux session to addr and requests the named dump,
// returning its full response body.
func Dial(addr, name string) ([]byte, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "debug: dial")
	}
	defer conn.Close()

	cfg, err := std.BuildSmuxConfig(2, 4*1024*1024, 4*1024*1024, 32768, 10)
	if err != nil {
		return nil, errors.Wrap(err, "debug: building smux config")
	}
	session, err := smux.Client(conn, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "debug: smux.Client")
	}
	defer session.Close()

	stream, err := session.OpenStream()
	if err != nil {
		return nil, errors.Wrap(err, "debug: open stream")
	}
	defer stream.Close()

	if _, err := fmt.Fprintf(stream, "%s\n", name); err != nil {
		return nil, err
	}
	return io.ReadAll(stream)
}
