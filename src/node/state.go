package node

import (
	"sync"
	"sync/atomic"
)

// State captures the lifecycle state of a mesh node: Running or Shutdown.
type State uint32

const (
	// Running is the normal operating state.
	Running State = iota
	// Shutdown is terminal.
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// WGLIMIT is the maximum number of goroutines that can be launched through
// state.goFunc
const WGLIMIT = 20

type state struct {
	state   State
	wg      sync.WaitGroup
	wgCount int32
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// Start a goroutine and add it to waitgroup. Returns false when the limit
// of concurrent routines is reached and f was not run.
func (b *state) goFunc(f func()) bool {
	tempWgCount := atomic.LoadInt32(&b.wgCount)
	if tempWgCount >= WGLIMIT {
		return false
	}

	b.wg.Add(1)
	atomic.AddInt32(&b.wgCount, 1)
	go func() {
		defer b.wg.Done()
		defer atomic.AddInt32(&b.wgCount, -1)
		f()
	}()

	return true
}

func (b *state) waitRoutines() {
	b.wg.Wait()
}
