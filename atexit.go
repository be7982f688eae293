// Package rootswitch provides the shared types and process-wide plumbing used
// by the WSL1 rootfs switcher: the atomic on-exit queue, interrupt handling,
// label parsing and the tagged error kinds described by the install
// transaction.
package rootswitch

import (
	"sync"
	"sync/atomic"
)

var atExit struct {
	sync.Mutex
	fns    []func() error
	closed uint32
}

// RegisterAtExit queues fn to run once the current operation commits or
// fails. It is used to pair a mutation of global state (e.g. the WSL default
// user registry value) with its restoration, so that the restoration always
// runs regardless of how the operation concludes.
func RegisterAtExit(fn func() error) {
	if atomic.LoadUint32(&atExit.closed) != 0 {
		panic("BUG: RegisterAtExit must not be called from an atExit func")
	}
	atExit.Lock()
	defer atExit.Unlock()
	atExit.fns = append(atExit.fns, fn)
}

// RunAtExit runs every function registered via RegisterAtExit, in
// registration order, stopping at the first error.
func RunAtExit() error {
	atomic.StoreUint32(&atExit.closed, 1)
	for _, fn := range atExit.fns {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}
