// Package achievement holds the declarative table of achievement definitions.
// A Registry is immutable once loaded and is passed to the services that need it.
package achievement

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Counter names an aggregate recomputed from a learner's progress.
type Counter string

const (
	CounterLectures              Counter = "lectures_completed"
	CounterTasks                 Counter = "tasks_completed"
	CounterPuzzles               Counter = "puzzles_completed"
	CounterLecturesWithQuestions Counter = "lectures_with_questions_completed"
)

func (c Counter) known() bool {
	switch c {
	case CounterLectures, CounterTasks, CounterPuzzles, CounterLecturesWithQuestions:
		return true
	}
	return false
}

// Counters is a snapshot of a learner's aggregates.
type Counters map[Counter]int64

type Definition struct {
	ID          string  `yaml:"id" json:"id"`
	Title       string  `yaml:"title" json:"title"`
	Description string  `yaml:"description" json:"description"`
	Icon        string  `yaml:"icon" json:"icon"`
	Counter     Counter `yaml:"counter" json:"-"`
	Threshold   int64   `yaml:"threshold" json:"-"`
}

// Satisfied reports whether the snapshot crosses this definition's threshold.
func (d Definition) Satisfied(c Counters) bool {
	return c[d.Counter] >= d.Threshold
}

type Registry struct {
	defs []Definition
}

//go:embed registry.yaml
var defaultRegistryYAML []byte

// LoadRegistry parses and validates a registry document.
func LoadRegistry(data []byte) (*Registry, error) {
	var doc struct {
		Achievements []Definition `yaml:"achievements"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse achievement registry: %w", err)
	}
	seen := make(map[string]struct{}, len(doc.Achievements))
	for i, d := range doc.Achievements {
		if d.ID == "" {
			return nil, fmt.Errorf("achievement %d: missing id", i)
		}
		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("achievement %q: duplicate id", d.ID)
		}
		seen[d.ID] = struct{}{}
		if !d.Counter.known() {
			return nil, fmt.Errorf("achievement %q: unknown counter %q", d.ID, d.Counter)
		}
		if d.Threshold < 1 {
			return nil, fmt.Errorf("achievement %q: threshold must be at least 1", d.ID)
		}
	}
	return &Registry{defs: doc.Achievements}, nil
}

// NewRegistry builds a registry from definitions, mainly for tests.
func NewRegistry(defs ...Definition) *Registry {
	return &Registry{defs: append([]Definition(nil), defs...)}
}

// DefaultRegistry returns the built-in table. It panics if the embedded
// document is invalid, which the package tests rule out.
func DefaultRegistry() *Registry {
	r, err := LoadRegistry(defaultRegistryYAML)
	if err != nil {
		panic(err)
	}
	return r
}

// Definitions returns a copy of the table in evaluation order.
func (r *Registry) Definitions() []Definition {
	return append([]Definition(nil), r.defs...)
}

func (r *Registry) Find(id string) (Definition, bool) {
	for _, d := range r.defs {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// Uses reports whether any definition depends on the counter.
func (r *Registry) Uses(c Counter) bool {
	for _, d := range r.defs {
		if d.Counter == c {
			return true
		}
	}
	return false
}
