// Package policy runs trained controllers: a flat observation vector in,
// one action per policy joint out.
package policy

import (
	"context"
	"fmt"
	"sort"

	"github.com/san-kum/policyloop/internal/sim"
)

// Metadata is what a policy declares about itself. The loop checks it
// against the resolved observation and action layouts at bind time.
type Metadata struct {
	Backend    string   `json:"backend"`
	ObsDim     int      `json:"obs_dim"`
	ActionDim  int      `json:"action_dim"`
	JointNames []string `json:"joint_names"`
}

// Runner is an inference backend. Infer must be deterministic for a given
// input and may block; it returns a *sim.InferenceError on failure.
type Runner interface {
	Infer(ctx context.Context, obs sim.Vector) (sim.Vector, error)
	Metadata() Metadata
	Close() error
}

type Config struct {
	Backend    string
	Path       string
	ObsDim     int
	ActionDim  int
	JointNames []string
	Gains      [][]float64
	Bias       []float64
	Targets    []float64
	// Dt is the control period, for backends with internal state.
	Dt    float64
	Async bool
}

// Resetter is implemented by runners that keep state between ticks.
type Resetter interface {
	Reset()
}

type Factory func(cfg Config) (Runner, error)

var backends = map[string]Factory{
	"mlp":    newMLPFromConfig,
	"linear": newLinearFromConfig,
	"pid":    newPIDFromConfig,
	"zero":   newZeroFromConfig,
}

func Register(name string, f Factory) {
	backends[name] = f
}

func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the runner for cfg.Backend, wrapped in an Async worker when
// cfg.Async is set.
func New(cfg Config) (Runner, error) {
	factory, ok := backends[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown policy backend: %s", cfg.Backend)
	}
	r, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", cfg.Backend, err)
	}
	if cfg.Async {
		return NewAsync(r), nil
	}
	return r, nil
}

func checkInput(backend string, obs sim.Vector, dim int) error {
	if len(obs) != dim {
		return &sim.InferenceError{Backend: backend, Err: fmt.Errorf("expected %d inputs, got %d", dim, len(obs))}
	}
	return nil
}

func checkOutput(backend string, out sim.Vector) error {
	if !out.IsValid() {
		return &sim.InferenceError{Backend: backend, Err: fmt.Errorf("non-finite output %v", out)}
	}
	return nil
}
