//go:build unix

package speech

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// killProcessGroupOnCancel runs cmd in its own process group and SIGKILLs
// the whole group on cancellation, so players spawned by a wrapper script
// stop too.
func killProcessGroupOnCancel(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
}
