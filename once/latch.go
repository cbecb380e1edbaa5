// Package once provides a resettable run-once latch.
//
// Latch is what sync.Once would be if it could be reset between benchmark
// runs and if a failed initialization left it open for another attempt.
package once

import (
	"sync"
	"sync/atomic"
)

// State is the latch's position in its NotStarted -> InProgress -> Done
// progression.
type State int32

const (
	NotStarted State = iota
	InProgress
	Done
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case InProgress:
		return "in-progress"
	case Done:
		return "done"
	}
	return "unknown"
}

// Latch runs an initialization function exactly once with success.
// The zero value is ready to use. A Latch must not be copied after first use.
type Latch struct {
	// state is read on every call, so it sits first.
	state atomic.Int32
	mu    sync.Mutex
	cond  sync.Cond
}

// Do calls f if and only if no earlier call has completed successfully.
// Concurrent callers block until the running f returns. If f returns an error
// or panics, the latch goes back to NotStarted and one of the blocked callers
// runs its own f; the failing caller gets the error (or the panic).
//
// When Do returns nil, every write made by the successful f is visible to the
// caller.
func (l *Latch) Do(f func() error) error {
	if State(l.state.Load()) == Done {
		return nil
	}
	return l.doSlow(f)
}

func (l *Latch) doSlow(f func() error) error {
	for {
		if l.state.CompareAndSwap(int32(NotStarted), int32(InProgress)) {
			return l.run(f)
		}

		l.mu.Lock()
		for State(l.state.Load()) == InProgress {
			l.wait()
		}
		s := State(l.state.Load())
		l.mu.Unlock()

		if s == Done {
			return nil
		}
		// the running attempt failed, compete for the next one
	}
}

func (l *Latch) run(f func() error) (err error) {
	returned := false
	// Done is stored only after f has returned; callers of Do read what f
	// wrote without further locking.
	defer func() {
		next := NotStarted
		if returned && err == nil {
			next = Done
		}
		l.mu.Lock()
		l.state.Store(int32(next))
		l.cond.Broadcast()
		l.mu.Unlock()
	}()

	err = f()
	returned = true
	return err
}

// wait must be called with l.mu held.
func (l *Latch) wait() {
	if l.cond.L == nil {
		l.cond.L = &l.mu
	}
	l.cond.Wait()
}

// State returns the current state of the latch.
func (l *Latch) State() State {
	return State(l.state.Load())
}

// Reset puts the latch back to NotStarted. It must not be called while any
// Do is in flight.
func (l *Latch) Reset() {
	l.state.Store(int32(NotStarted))
}
