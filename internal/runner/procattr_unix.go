//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
)

// setProcessGroup starts the shell in its own process group so cancellation
// reaches every descendant, not just the shell.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
