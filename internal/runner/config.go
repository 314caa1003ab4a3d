package runner

import "time"

// Config holds runner configuration
type Config struct {
	Interpreter    string
	Timeout        time.Duration
	MaxConcurrent  int
	QueueTimeout   time.Duration
	ScratchDir     string
	LineLabel      string
	TimeoutMessage string
	MaxOutputBytes int
}

// DefaultConfig returns default runner configuration
func DefaultConfig() Config {
	return Config{
		Interpreter:    "python3",
		Timeout:        5 * time.Second,
		MaxConcurrent:  4,
		QueueTimeout:   10 * time.Second,
		LineLabel:      "Line",
		TimeoutMessage: "execution time exceeded",
		MaxOutputBytes: 1 << 20,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interpreter == "" {
		c.Interpreter = d.Interpreter
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.QueueTimeout <= 0 {
		c.QueueTimeout = d.QueueTimeout
	}
	if c.LineLabel == "" {
		c.LineLabel = d.LineLabel
	}
	if c.TimeoutMessage == "" {
		c.TimeoutMessage = d.TimeoutMessage
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = d.MaxOutputBytes
	}
	return c
}
