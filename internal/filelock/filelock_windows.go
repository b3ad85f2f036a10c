//go:build windows

package filelock

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

var platformLocker Locker = lockFileExLocker{}

// allBytes locks the whole addressable range so the lock covers the file
// however it grows.
const allBytes = ^uint32(0)

type lockFileExLocker struct{}

func (lockFileExLocker) Lock(f *os.File, mode Mode) error {
	return lockFileEx(f, flags(mode))
}

func (lockFileExLocker) TryLock(f *os.File, mode Mode) (bool, error) {
	err := lockFileEx(f, flags(mode)|windows.LOCKFILE_FAIL_IMMEDIATELY)
	if errors.Is(err, windows.ERROR_LOCK_VIOLATION) || errors.Is(err, windows.ERROR_IO_PENDING) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (lockFileExLocker) Unlock(f *os.File) error {
	ol := new(windows.Overlapped)
	err := windows.UnlockFileEx(windows.Handle(f.Fd()), 0, allBytes, allBytes, ol)
	if err == nil || errors.Is(err, windows.ERROR_NOT_LOCKED) {
		return nil
	}
	return fmt.Errorf("UnlockFileEx %s: %w", f.Name(), err)
}

func flags(mode Mode) uint32 {
	if mode == Exclusive {
		return windows.LOCKFILE_EXCLUSIVE_LOCK
	}
	return 0
}

func lockFileEx(f *os.File, flags uint32) error {
	ol := new(windows.Overlapped)
	err := windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, allBytes, allBytes, ol)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, windows.ERROR_LOCK_VIOLATION), errors.Is(err, windows.ERROR_IO_PENDING):
		return err
	case errors.Is(err, windows.ERROR_NOT_SUPPORTED), errors.Is(err, windows.ERROR_INVALID_FUNCTION):
		return fmt.Errorf("%w: LockFileEx %s: %v", ErrUnsupported, f.Name(), err)
	default:
		return fmt.Errorf("LockFileEx %s: %w", f.Name(), err)
	}
}
