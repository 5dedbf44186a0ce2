//go:build windows

package netpoll

import "github.com/pkg/errors"

// newPoller has no native edge-triggered implementation on Windows in
// this core; IOCP-based support is future work, not required by any
// target deployment.
func newPoller() (Poller, error) {
	return nil, errors.New("netpoll: no poller implementation for windows")
}
