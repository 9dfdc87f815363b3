//go:build !windows

package subprocess

import (
	"os/exec"
	"syscall"
)

type unixSignal = syscall.Signal

const (
	signalTerm unixSignal = syscall.SIGTERM
	signalHup  unixSignal = syscall.SIGHUP
	signalKill unixSignal = syscall.SIGKILL
)

// configureProcessGroup puts the child in its own process group so a
// timeout kill reaches every descendant the TeX toolchain spawns, not just
// the immediate child.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup signals the whole process group rooted at cmd's pid.
// A negative pid in syscall.Kill targets the group rather than the pid.
func killProcessGroup(cmd *exec.Cmd, sig unixSignal) {
	if cmd.Process == nil {
		return
	}
	syscall.Kill(-cmd.Process.Pid, sig)
}
