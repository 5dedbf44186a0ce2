//go:build !windows

package sig

import (
	"os"
	"syscall"
)

// signalNumber converts s to its platform signal number (0 if s is
// not a syscall.Signal); the caller stores it in a generic.Message's
// UserData field.
func signalNumber(s os.Signal) int {
	if sig, ok := s.(syscall.Signal); ok {
		return int(sig)
	}
	return 0
}
