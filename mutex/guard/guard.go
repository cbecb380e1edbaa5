// Package guard provides the creation guard used by the singleton registry:
// a sync.Mutex that also keeps count of how often it was taken and can peek
// at the runtime's mutex state for diagnostics.
package guard

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// Layout of the runtime's mutex state word.
const (
	mutexLocked      = 1 // mutex is locked
	mutexWaiterShift = 3 // waiter count starts above the locked, woken and starving bits
)

// Mutex is a sync.Mutex that counts successful acquisitions.
// The zero value is an unlocked mutex.
type Mutex struct {
	sync.Mutex
	acquired atomic.Int64
}

// Lock locks m and records the acquisition.
func (m *Mutex) Lock() {
	m.Mutex.Lock()
	m.acquired.Add(1)
}

// TryLock tries to lock m without blocking and reports whether it succeeded.
func (m *Mutex) TryLock() bool {
	if !m.Mutex.TryLock() {
		return false
	}
	m.acquired.Add(1)
	return true
}

// Acquisitions returns how many times m has been locked since the last
// ResetAcquisitions.
func (m *Mutex) Acquisitions() int64 {
	return m.acquired.Load()
}

// ResetAcquisitions zeroes the acquisition counter. It does not touch the
// lock itself.
func (m *Mutex) ResetAcquisitions() {
	m.acquired.Store(0)
}

func (m *Mutex) state() int32 {
	return atomic.LoadInt32((*int32)(unsafe.Pointer(&m.Mutex)))
}

// Count returns the number of goroutines holding or waiting for m.
func (m *Mutex) Count() int {
	state := m.state()
	v := state >> mutexWaiterShift // waiters
	v = v + (state & mutexLocked)  // plus the holder, 0 or 1
	return int(v)
}

// IsLocked reports whether m is currently held.
func (m *Mutex) IsLocked() bool {
	return m.state()&mutexLocked == mutexLocked
}
