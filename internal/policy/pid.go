package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/san-kum/policyloop/internal/sim"
)

// PID drives each policy joint toward a setpoint. It expects observations
// laid out as n joint positions followed by n joint velocities, and uses
// the measured velocity for the derivative term.
type PID struct {
	Kp, Ki, Kd []float64
	Targets    sim.Vector

	dt       float64
	mu       sync.Mutex
	integral sim.Vector
	meta     Metadata
}

// NewPID takes one [kp, ki, kd] row per joint.
func NewPID(gains [][]float64, targets []float64, dt float64, jointNames []string) (*PID, error) {
	n := len(gains)
	if n == 0 {
		return nil, fmt.Errorf("pid needs one [kp, ki, kd] row per joint")
	}
	if dt <= 0 {
		return nil, fmt.Errorf("pid needs a positive control dt, got %f", dt)
	}
	p := &PID{
		Kp:       make([]float64, n),
		Ki:       make([]float64, n),
		Kd:       make([]float64, n),
		Targets:  make(sim.Vector, n),
		dt:       dt,
		integral: make(sim.Vector, n),
		meta:     Metadata{Backend: "pid", ObsDim: 2 * n, ActionDim: n, JointNames: append([]string(nil), jointNames...)},
	}
	for i, row := range gains {
		if len(row) != 3 {
			return nil, fmt.Errorf("pid gain row %d has %d values, expected 3", i, len(row))
		}
		p.Kp[i], p.Ki[i], p.Kd[i] = row[0], row[1], row[2]
	}
	if len(targets) > 0 {
		if len(targets) != n {
			return nil, fmt.Errorf("pid has %d targets for %d joints", len(targets), n)
		}
		copy(p.Targets, targets)
	}
	return p, nil
}

func newPIDFromConfig(cfg Config) (Runner, error) {
	return NewPID(cfg.Gains, cfg.Targets, cfg.Dt, cfg.JointNames)
}

func (p *PID) Infer(ctx context.Context, obs sim.Vector) (sim.Vector, error) {
	if err := checkInput("pid", obs, p.meta.ObsDim); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.meta.ActionDim
	u := make(sim.Vector, n)
	for i := 0; i < n; i++ {
		e := p.Targets[i] - obs[i]
		p.integral[i] += e * p.dt
		u[i] = p.Kp[i]*e + p.Ki[i]*p.integral[i] - p.Kd[i]*obs[n+i]
	}
	if err := checkOutput("pid", u); err != nil {
		return nil, err
	}
	return u, nil
}

// Reset clears the integral term.
func (p *PID) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.integral {
		p.integral[i] = 0
	}
}

func (p *PID) Metadata() Metadata { return p.meta }
func (p *PID) Close() error       { return nil }
