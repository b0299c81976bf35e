package replication

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrAlreadyRunning is returned by Start on a running worker.
var ErrAlreadyRunning = errors.New("replication: already running")

// runState serialises the start and stop of a background worker.
type runState struct {
	running atomic.Bool
	mu      sync.Mutex // protects startup/shutdown sequences
}

// IsRunning reports whether the worker is running.
func (rs *runState) IsRunning() bool {
	return rs.running.Load()
}

// tryStart locks the state unless the worker already runs. The returned
// unlock function must be called once startup is complete.
func (rs *runState) tryStart() (unlock func(), alreadyRunning bool) {
	rs.mu.Lock()
	if rs.running.Load() {
		rs.mu.Unlock()
		return nil, true
	}
	return rs.mu.Unlock, false
}

// tryStop locks the state unless the worker is stopped.
func (rs *runState) tryStop() (unlock func(), notRunning bool) {
	rs.mu.Lock()
	if !rs.running.Load() {
		rs.mu.Unlock()
		return nil, true
	}
	return rs.mu.Unlock, false
}

// ManagedWaitGroup tracks the goroutines of a worker.
type ManagedWaitGroup struct {
	wg sync.WaitGroup
}

// Wait blocks until every tracked goroutine returned.
func (mwg *ManagedWaitGroup) Wait() {
	mwg.wg.Wait()
}

// Go runs fn in a tracked goroutine. fn should return when its context
// is cancelled.
func (mwg *ManagedWaitGroup) Go(fn func()) {
	mwg.wg.Add(1)
	go func() {
		defer mwg.wg.Done()
		fn()
	}()
}
