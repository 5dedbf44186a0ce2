// Package silly wires the socket thread, worker, timer wheel and
// signal forwarder into a single runtime, the Go replacement for the
// reference's global SOCKET/TIMER/WORKER/EVENT singletons (spec.md
// §9): one Runtime value constructed at startup and threaded through
// every component instead of implicit package-level state.
package silly

import "github.com/pkg/errors"

// Kind classifies a core-boundary error, replacing the reference's
// ad-hoc negative-integer error codes (spec.md §9) with a single enum
// plus per-variant context.
type Kind int

const (
	// ErrArgument reports an invalid sid, bad address, or out-of-range
	// limit; synchronous, no message is emitted.
	ErrArgument Kind = iota + 1
	// ErrResource reports an exhausted socket table or failed
	// allocation; synchronous, no message is emitted.
	ErrResource
	// ErrIO reports an I/O failure. A connect that fails while it is
	// being issued returns it synchronously; a failure on an
	// established socket is surfaced as a CLOSE message carrying the
	// OS error code instead.
	ErrIO
	// ErrProtocol reports a cluster-codec framing violation; the
	// offending fd is cleared and a CLOSE is propagated.
	ErrProtocol
	// ErrHPACK reports an HPACK decode failure; the header block is
	// aborted and surfaced to the HTTP/2 layer.
	ErrHPACK
)

func (k Kind) String() string {
	switch k {
	case ErrArgument:
		return "argument"
	case ErrResource:
		return "resource"
	case ErrIO:
		return "io"
	case ErrProtocol:
		return "protocol"
	case ErrHPACK:
		return "hpack"
	default:
		return "unknown"
	}
}

// Error is the core's single error type. Errno carries the OS error
// code for ErrIO; it is zero for synchronous argument/resource errors.
type Error struct {
	Kind  Kind
	Errno int
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Kind.String() + ": " + e.cause.Error()
	}
	return e.Kind.String() + " error"
}

func (e *Error) Unwrap() error { return e.cause }

// Wrap attaches kind to cause, preserving cause's pkg/errors stack
// trace for %+v formatting at the log call site.
func Wrap(kind Kind, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.WithStack(cause)}
}

// WrapErrno attaches an OS error code (e.g. from a failed read/write)
// to an ErrIO.
func WrapErrno(cause error, errno int) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: ErrIO, Errno: errno, cause: errors.WithStack(cause)}
}
