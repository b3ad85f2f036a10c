// Package filelock provides advisory whole-file locks on open handles.
//
// The platform primitive is chosen at build time: flock(2) on unix systems,
// LockFileEx on Windows. Other platforms get a locker that always reports
// ErrUnsupported, and callers are expected to carry on unlocked.
package filelock

import (
	"errors"
	"os"
)

// Mode selects shared or exclusive locking.
type Mode int

const (
	// Shared allows concurrent readers.
	Shared Mode = iota
	// Exclusive blocks every other locker.
	Exclusive
)

func (m Mode) String() string {
	if m == Exclusive {
		return "exclusive"
	}
	return "shared"
}

// ErrUnsupported means the platform or filesystem cannot lock this file.
var ErrUnsupported = errors.New("filelock: locking not supported")

// Locker acquires and releases advisory locks on an open file.
type Locker interface {
	// Lock blocks until the lock is held.
	Lock(f *os.File, mode Mode) error
	// TryLock takes the lock if it is free and reports whether it did.
	TryLock(f *os.File, mode Mode) (bool, error)
	// Unlock releases the lock. Unlocking an unlocked file is not an error.
	Unlock(f *os.File) error
}

// Default returns the locker for the running platform.
func Default() Locker { return platformLocker }
