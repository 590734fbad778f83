// Package metrics aggregates per-tick frames into episode scores.
package metrics

import (
	"sort"
	"sync"

	"github.com/san-kum/policyloop/internal/loop"
)

// Metric accumulates one score over an episode.
type Metric interface {
	// Name is the key the score is reported under.
	Name() string
	// Observe folds one completed tick into the score. It runs inside the
	// tick and must not keep f.Physics.
	Observe(f loop.Frame)
	// Value is the score so far.
	Value() float64
	// Reset starts a new episode.
	Reset()
}

// Set feeds every frame to its metrics. It is a loop.Observer and is safe
// to read from other goroutines.
type Set struct {
	mu      sync.Mutex
	metrics []Metric
}

func NewSet(ms ...Metric) *Set {
	return &Set{metrics: ms}
}

// Default is the metric set recorded for every run.
func Default() *Set {
	return NewSet(
		NewControlEffort(),
		NewStability(10.0),
		NewEnergy(),
		NewInferenceLatency(),
	)
}

func (s *Set) OnTick(f loop.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.metrics {
		m.Observe(f)
	}
}

func (s *Set) Values() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

func (s *Set) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.metrics))
	for i, m := range s.metrics {
		names[i] = m.Name()
	}
	sort.Strings(names)
	return names
}

func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.metrics {
		m.Reset()
	}
}
