//go:build unix

package runner

import (
	"os/exec"
	"syscall"
)

// configureProcess starts the interpreter in its own process group and makes
// cancellation SIGKILL the whole group, children included.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

func platformEnv() []string {
	return nil
}
