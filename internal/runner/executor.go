package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Executor runs one program against one stdin.
type Executor interface {
	Execute(ctx context.Context, req ExecRequest) (*ExecResult, error)
}

type ExecRequest struct {
	Code    string
	Stdin   string
	Timeout time.Duration
}

// ExecResult is the raw outcome of a process run. A non-nil error from
// Execute means the process could not be run at all.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// LocalExecutor runs code with a local interpreter in its own process group.
type LocalExecutor struct {
	interpreter    string
	scratchDir     string
	maxOutputBytes int
}

func NewLocalExecutor(cfg Config) *LocalExecutor {
	cfg = cfg.withDefaults()
	return &LocalExecutor{
		interpreter:    cfg.Interpreter,
		scratchDir:     cfg.ScratchDir,
		maxOutputBytes: cfg.MaxOutputBytes,
	}
}

func (e *LocalExecutor) Execute(ctx context.Context, req ExecRequest) (*ExecResult, error) {
	path, err := writeScratchFile(e.scratchDir, req.Code)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	// Once started a run only ends by finishing or by its own deadline.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), req.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.interpreter, "-I", "-X", "utf8", path)
	cmd.Stdin = strings.NewReader(req.Stdin)
	stdout := &cappedBuffer{limit: e.maxOutputBytes}
	stderr := &cappedBuffer{limit: e.maxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = sandboxEnv()
	cmd.WaitDelay = 500 * time.Millisecond
	configureProcess(cmd)

	start := time.Now()
	runErr := cmd.Run()
	res := &ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runErr != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("run interpreter: %w", runErr)
	}
	return res, nil
}

func writeScratchFile(dir, code string) (string, error) {
	f, err := os.CreateTemp(dir, "submission-*.py")
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	path := f.Name()
	if _, err := f.WriteString(code); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close scratch file: %w", err)
	}
	return path, nil
}

// sandboxEnv is the whole environment handed to user code.
func sandboxEnv() []string {
	env := []string{
		"PYTHONIOENCODING=utf-8",
		"PYTHONUTF8=1",
		"PYTHONDONTWRITEBYTECODE=1",
		"LANG=C.UTF-8",
		"LC_ALL=C.UTF-8",
	}
	return append(env, platformEnv()...)
}

// cappedBuffer keeps the first limit bytes and discards the rest while still
// reporting full writes, so a flooding program cannot exhaust memory.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
