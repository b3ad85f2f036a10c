//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package handlers

import (
	"os/exec"
	"runtime"
)

var defaultShell = func() []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C"}
	}
	return []string{"sh", "-c"}
}()

func configureProcess(*exec.Cmd) {}
