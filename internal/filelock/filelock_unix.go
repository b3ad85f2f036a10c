//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package filelock

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var platformLocker Locker = flockLocker{}

type flockLocker struct{}

func (flockLocker) Lock(f *os.File, mode Mode) error {
	return flock(f, how(mode))
}

func (flockLocker) TryLock(f *os.File, mode Mode) (bool, error) {
	err := flock(f, how(mode)|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (flockLocker) Unlock(f *os.File) error {
	return flock(f, unix.LOCK_UN)
}

func how(mode Mode) int {
	if mode == Exclusive {
		return unix.LOCK_EX
	}
	return unix.LOCK_SH
}

func flock(f *os.File, op int) error {
	for {
		err := unix.Flock(int(f.Fd()), op)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EWOULDBLOCK):
			return err
		case errors.Is(err, unix.ENOLCK), errors.Is(err, unix.ENOTSUP),
			errors.Is(err, unix.EOPNOTSUPP), errors.Is(err, unix.ENOSYS), errors.Is(err, unix.EINVAL):
			return fmt.Errorf("%w: flock %s: %v", ErrUnsupported, f.Name(), err)
		default:
			return fmt.Errorf("flock %s: %w", f.Name(), err)
		}
	}
}
