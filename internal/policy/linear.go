package policy

import (
	"context"
	"fmt"

	"github.com/san-kum/policyloop/internal/sim"
)

// Linear is a static state-feedback law u = bias - K*obs.
type Linear struct {
	K    [][]float64
	Bias sim.Vector
	meta Metadata
}

func NewLinear(k [][]float64, bias []float64, jointNames []string) (*Linear, error) {
	if len(k) == 0 {
		return nil, fmt.Errorf("gain matrix is empty")
	}
	cols := len(k[0])
	for i, row := range k {
		if len(row) != cols {
			return nil, fmt.Errorf("gain row %d has %d columns, expected %d", i, len(row), cols)
		}
	}
	b := make(sim.Vector, len(k))
	if len(bias) > 0 {
		if len(bias) != len(k) {
			return nil, fmt.Errorf("bias has %d values for %d outputs", len(bias), len(k))
		}
		copy(b, bias)
	}
	return &Linear{
		K:    k,
		Bias: b,
		meta: Metadata{Backend: "linear", ObsDim: cols, ActionDim: len(k), JointNames: append([]string(nil), jointNames...)},
	}, nil
}

func newLinearFromConfig(cfg Config) (Runner, error) {
	return NewLinear(cfg.Gains, cfg.Bias, cfg.JointNames)
}

func (l *Linear) Infer(ctx context.Context, obs sim.Vector) (sim.Vector, error) {
	if err := checkInput("linear", obs, l.meta.ObsDim); err != nil {
		return nil, err
	}
	u := l.Bias.Clone()
	for i := range u {
		for j, x := range obs {
			u[i] -= l.K[i][j] * x
		}
	}
	if err := checkOutput("linear", u); err != nil {
		return nil, err
	}
	return u, nil
}

func (l *Linear) Metadata() Metadata { return l.meta }
func (l *Linear) Close() error       { return nil }
