package runner

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"edu_platform_backend/pkg/monitoring"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"go.uber.org/zap"
)

// TestCase is one stdin/expected-stdout pair.
type TestCase struct {
	ID             string
	Input          string
	ExpectedOutput string
	IsPublic       bool
}

// CaseResult is the verdict for one test case. Execution problems are
// reported here and never returned as errors.
type CaseResult struct {
	CaseID       string `json:"caseId"`
	Passed       bool   `json:"passed"`
	ActualOutput string `json:"actualOutput"`
	Error        string `json:"error,omitempty"`
}

// AllPassed is the overall submission verdict.
func AllPassed(results []CaseResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// Service grades learner code against test cases, bounding concurrent runs.
type Service struct {
	mu       sync.RWMutex
	config   Config
	executor Executor
	bulkhead bulkhead.Bulkhead[[]CaseResult]
	logger   *zap.Logger
}

// NewService falls back to a LocalExecutor when executor is nil.
func NewService(cfg Config, executor Executor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	if executor == nil {
		executor = NewLocalExecutor(cfg)
	}
	return &Service{
		config:   cfg,
		executor: executor,
		bulkhead: newBulkhead(cfg),
		logger:   logger,
	}
}

func newBulkhead(cfg Config) bulkhead.Bulkhead[[]CaseResult] {
	return bulkhead.New[[]CaseResult](bulkhead.Config{
		MaxConcurrent: cfg.MaxConcurrent,
		MaxQueue:      cfg.MaxConcurrent * 4,
		QueueTimeout:  cfg.QueueTimeout,
	})
}

func (s *Service) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// UpdateConfig applies reloaded settings. Runs already admitted keep the
// settings they started with.
func (s *Service) UpdateConfig(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.MaxConcurrent != s.config.MaxConcurrent || cfg.QueueTimeout != s.config.QueueTimeout {
		s.bulkhead = newBulkhead(cfg)
	}
	if _, local := s.executor.(*LocalExecutor); local &&
		(cfg.Interpreter != s.config.Interpreter || cfg.ScratchDir != s.config.ScratchDir || cfg.MaxOutputBytes != s.config.MaxOutputBytes) {
		s.executor = NewLocalExecutor(cfg)
	}
	s.config = cfg
	s.logger.Info("runner config updated",
		zap.Duration("timeout", cfg.Timeout),
		zap.Int("max_concurrent", cfg.MaxConcurrent))
}

// Run executes code once per test case, in order. Admission is bounded by
// the bulkhead; a rejected run reports every case as failed.
func (s *Service) Run(ctx context.Context, code string, cases []TestCase) []CaseResult {
	s.mu.RLock()
	cfg := s.config
	executor := s.executor
	bh := s.bulkhead
	s.mu.RUnlock()

	results, err := bh.Execute(ctx, func(ctx context.Context) ([]CaseResult, error) {
		out := make([]CaseResult, 0, len(cases))
		for _, tc := range cases {
			out = append(out, s.runCase(ctx, cfg, executor, code, tc))
		}
		return out, nil
	})
	if err != nil {
		s.logger.Warn("runner rejected submission", zap.Error(err), zap.Int("cases", len(cases)))
		monitoring.RunnerCases.WithLabelValues("rejected").Add(float64(len(cases)))
		out := make([]CaseResult, 0, len(cases))
		for _, tc := range cases {
			out = append(out, CaseResult{CaseID: tc.ID, Error: fmt.Sprintf("runner unavailable: %v", err)})
		}
		return out
	}
	return results
}

func (s *Service) runCase(ctx context.Context, cfg Config, executor Executor, code string, tc TestCase) CaseResult {
	res, err := executor.Execute(ctx, ExecRequest{Code: code, Stdin: tc.Input, Timeout: cfg.Timeout})
	if err != nil {
		s.logger.Error("runner execution failed", zap.String("case_id", tc.ID), zap.Error(err))
		monitoring.RunnerCases.WithLabelValues("error").Inc()
		return CaseResult{CaseID: tc.ID, Error: err.Error()}
	}
	monitoring.RunnerDuration.Observe(res.Duration.Seconds())

	if res.TimedOut {
		monitoring.RunnerCases.WithLabelValues("timeout").Inc()
		return CaseResult{CaseID: tc.ID, Error: cfg.TimeoutMessage}
	}

	if res.ExitCode != 0 && strings.TrimSpace(res.Stderr) != "" {
		monitoring.RunnerCases.WithLabelValues("error").Inc()
		msg := SanitizeTraceback(strings.TrimSpace(res.Stderr), cfg.LineLabel)
		return CaseResult{
			CaseID:       tc.ID,
			ActualOutput: msg,
			Error:        msg,
		}
	}

	actual := NormalizeOutput(res.Stdout)
	passed := actual == NormalizeOutput(tc.ExpectedOutput)
	if passed {
		monitoring.RunnerCases.WithLabelValues("passed").Inc()
	} else {
		monitoring.RunnerCases.WithLabelValues("failed").Inc()
	}
	return CaseResult{CaseID: tc.ID, Passed: passed, ActualOutput: actual}
}

// NormalizeOutput unifies line endings and drops trailing whitespace.
func NormalizeOutput(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimRight(s, " \t\n\v\f")
}

var tracebackLocation = regexp.MustCompile(`(?i)\s*File "[^"]+", line (\d+)(?:, in \S+)?`)

// SanitizeTraceback replaces interpreter file locations with "<label> N" so
// host paths never reach the learner.
func SanitizeTraceback(text, label string) string {
	return tracebackLocation.ReplaceAllString(text, " "+label+" $1")
}
