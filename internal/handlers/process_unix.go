//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package handlers

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

var defaultShell = []string{"/bin/sh", "-c"}

// configureProcess starts the command in its own process group so a timeout
// kills the shell and everything it spawned.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
}
