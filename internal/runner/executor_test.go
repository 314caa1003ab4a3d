package runner

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func newPythonService(t *testing.T, timeout time.Duration) (*Service, string) {
	t.Helper()
	requirePython(t)
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Timeout = timeout
	cfg.ScratchDir = dir
	return NewService(cfg, nil, nil), dir
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch files must be removed")
}

func TestLocalRunPrintsSum(t *testing.T) {
	svc, dir := newPythonService(t, 5*time.Second)

	results := svc.Run(context.Background(), "print(2+3)", []TestCase{
		{ID: "1", ExpectedOutput: "5\n"},
	})

	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
	assert.Equal(t, "5", results[0].ActualOutput)
	assertScratchEmpty(t, dir)
}

func TestLocalRunReadsStdinAsUTF8(t *testing.T) {
	svc, _ := newPythonService(t, 5*time.Second)

	results := svc.Run(context.Background(), "print(input()[::-1])", []TestCase{
		{ID: "1", Input: "привет\n", ExpectedOutput: "тевирп"},
	})

	require.Len(t, results, 1)
	assert.True(t, results[0].Passed, results[0].ActualOutput)
}

func TestLocalRunSanitizesErrors(t *testing.T) {
	svc, dir := newPythonService(t, 5*time.Second)

	results := svc.Run(context.Background(), "x = 1\nprint(x / 0)", []TestCase{
		{ID: "1", ExpectedOutput: "1"},
	})

	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.Contains(t, results[0].Error, "ZeroDivisionError")
	assert.Contains(t, results[0].ActualOutput, "Line 2")
	assert.NotContains(t, results[0].ActualOutput, dir)
	assert.NotContains(t, results[0].ActualOutput, ".py")
	assertScratchEmpty(t, dir)
}

func TestLocalRunTimeout(t *testing.T) {
	svc, dir := newPythonService(t, 100*time.Millisecond)

	start := time.Now()
	results := svc.Run(context.Background(), "while True:\n    pass", []TestCase{
		{ID: "1", ExpectedOutput: ""},
	})
	elapsed := time.Since(start)

	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.Equal(t, "execution time exceeded", results[0].Error)
	assert.Empty(t, results[0].ActualOutput)
	assert.Less(t, elapsed, 3*time.Second)
	assertScratchEmpty(t, dir)
}

func TestLocalRunKillsChildProcesses(t *testing.T) {
	svc, _ := newPythonService(t, 200*time.Millisecond)
	code := "import subprocess, sys\n" +
		"subprocess.Popen([sys.executable, '-c', 'import time; time.sleep(30)'])\n" +
		"while True:\n    pass\n"

	start := time.Now()
	results := svc.Run(context.Background(), code, []TestCase{{ID: "1"}})

	require.Len(t, results, 1)
	assert.Equal(t, "execution time exceeded", results[0].Error)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestLocalRunIsDeterministic(t *testing.T) {
	svc, _ := newPythonService(t, 5*time.Second)
	code := "n = int(input())\nprint(sum(range(n)))"
	cases := []TestCase{
		{ID: "1", Input: "10", ExpectedOutput: "45"},
		{ID: "2", Input: "3", ExpectedOutput: "4"},
	}

	first := svc.Run(context.Background(), code, cases)
	second := svc.Run(context.Background(), code, cases)

	assert.Equal(t, first, second)
	assert.True(t, first[0].Passed)
	assert.False(t, first[1].Passed)
}
