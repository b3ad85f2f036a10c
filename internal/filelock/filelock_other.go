//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly && !windows

package filelock

import "os"

var platformLocker Locker = unsupportedLocker{}

type unsupportedLocker struct{}

func (unsupportedLocker) Lock(*os.File, Mode) error            { return ErrUnsupported }
func (unsupportedLocker) TryLock(*os.File, Mode) (bool, error) { return false, ErrUnsupported }
func (unsupportedLocker) Unlock(*os.File) error                { return nil }
