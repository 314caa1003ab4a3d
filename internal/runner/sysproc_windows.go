//go:build windows

package runner

import (
	"os"
	"os/exec"
)

func configureProcess(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Kill()
	}
}

// platformEnv carries the variables the interpreter needs to start on Windows.
func platformEnv() []string {
	var env []string
	for _, key := range []string{"SYSTEMROOT", "TEMP", "TMP"} {
		if v := os.Getenv(key); v != "" {
			env = append(env, key+"="+v)
		}
	}
	return env
}
