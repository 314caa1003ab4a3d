package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockExecutor is a test implementation of Executor
type mockExecutor struct {
	mu       sync.Mutex
	results  map[string]*ExecResult
	err      error
	requests []ExecRequest
}

func (m *mockExecutor) Execute(ctx context.Context, req ExecRequest) (*ExecResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if res, ok := m.results[req.Stdin]; ok {
		return res, nil
	}
	return &ExecResult{}, nil
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "python3", cfg.Interpreter)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "Line", cfg.LineLabel)
	assert.Equal(t, "execution time exceeded", cfg.TimeoutMessage)
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{Timeout: 2 * time.Second}.withDefaults()

	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, "python3", cfg.Interpreter)
	assert.Equal(t, 4, cfg.MaxConcurrent)
}

func TestNormalizeOutput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5\n", "5"},
		{"a\r\nb\r\n", "a\nb"},
		{"a\rb", "a\nb"},
		{"x  \t\n\n", "x"},
		{"  leading", "  leading"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeOutput(tt.in), "input %q", tt.in)
	}
}

func TestSanitizeTraceback(t *testing.T) {
	stderr := "Traceback (most recent call last):\n" +
		"  File \"/tmp/submission-42.py\", line 3, in <module>\n" +
		"    print(1/0)\n" +
		"ZeroDivisionError: division by zero"

	got := SanitizeTraceback(stderr, "Line")

	assert.NotContains(t, got, "/tmp/")
	assert.NotContains(t, got, "submission-42.py")
	assert.Contains(t, got, "Traceback (most recent call last): Line 3\n")
	assert.Contains(t, got, "ZeroDivisionError: division by zero")
}

func TestSanitizeTracebackSyntaxError(t *testing.T) {
	stderr := "  File \"C:\\Temp\\tmp123.py\", line 1\n    print(\n         ^\nSyntaxError: '(' was never closed"

	got := SanitizeTraceback(stderr, "Строка")

	assert.Contains(t, got, " Строка 1\n")
	assert.NotContains(t, got, "tmp123")
}

func TestServiceRunClassifiesCases(t *testing.T) {
	exec := &mockExecutor{results: map[string]*ExecResult{
		"ok":      {Stdout: "5\r\n"},
		"wrong":   {Stdout: "6\n"},
		"crash":   {ExitCode: 1, Stderr: "  File \"/tmp/s.py\", line 2, in <module>\nValueError: bad"},
		"silent":  {ExitCode: 3, Stdout: "5\n"},
		"timeout": {TimedOut: true, ExitCode: -1},
	}}
	svc := NewService(DefaultConfig(), exec, nil)

	results := svc.Run(context.Background(), "print(5)", []TestCase{
		{ID: "1", Input: "ok", ExpectedOutput: "5\n"},
		{ID: "2", Input: "wrong", ExpectedOutput: "5"},
		{ID: "3", Input: "crash", ExpectedOutput: "5"},
		{ID: "4", Input: "silent", ExpectedOutput: "5"},
		{ID: "5", Input: "timeout", ExpectedOutput: "5"},
	})
	require.Len(t, results, 5)

	assert.Equal(t, CaseResult{CaseID: "1", Passed: true, ActualOutput: "5"}, results[0])

	assert.False(t, results[1].Passed)
	assert.Equal(t, "6", results[1].ActualOutput)
	assert.Empty(t, results[1].Error)

	assert.False(t, results[2].Passed)
	assert.Equal(t, "Line 2\nValueError: bad", results[2].ActualOutput)
	assert.Equal(t, results[2].ActualOutput, results[2].Error)

	assert.True(t, results[3].Passed, "non-zero exit without stderr is judged on stdout")

	assert.False(t, results[4].Passed)
	assert.Empty(t, results[4].ActualOutput)
	assert.Equal(t, "execution time exceeded", results[4].Error)

	assert.False(t, AllPassed(results))
}

func TestServiceRunExecutorError(t *testing.T) {
	exec := &mockExecutor{err: errors.New("interpreter missing")}
	svc := NewService(DefaultConfig(), exec, nil)

	results := svc.Run(context.Background(), "print(1)", []TestCase{{ID: "a", ExpectedOutput: "1"}})

	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.Equal(t, "interpreter missing", results[0].Error)
}

func TestServiceUpdateConfig(t *testing.T) {
	exec := &mockExecutor{}
	svc := NewService(DefaultConfig(), exec, nil)

	svc.UpdateConfig(Config{Timeout: 250 * time.Millisecond, TimeoutMessage: "too slow"})
	svc.Run(context.Background(), "pass", []TestCase{{ID: "1"}})

	require.Len(t, exec.requests, 1)
	assert.Equal(t, 250*time.Millisecond, exec.requests[0].Timeout)
	assert.Equal(t, "too slow", svc.Config().TimeoutMessage)
}

func TestAllPassed(t *testing.T) {
	assert.True(t, AllPassed(nil))
	assert.True(t, AllPassed([]CaseResult{{Passed: true}, {Passed: true}}))
	assert.False(t, AllPassed([]CaseResult{{Passed: true}, {Passed: false}}))
}
