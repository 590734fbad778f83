// Package action maps policy outputs onto actuator controls.
package action

import (
	"fmt"
	"math"

	"github.com/san-kum/policyloop/internal/sim"
)

type Config struct {
	Mode        string
	Scale       float64
	Clip        []float64
	FilterAlpha float64
	DefaultPos  []float64
	Stiffness   []float64
	Damping     []float64
	// TorqueLimits bounds torque and impedance output, one value per joint
	// or a single value for all joints.
	TorqueLimits []float64
	Hold         bool
}

// ActuatorCommand records what was written to one actuator on one tick.
type ActuatorCommand struct {
	Actuator  string  `json:"actuator"`
	Source    int     `json:"source"`
	Kind      string  `json:"kind"`
	Target    float64 `json:"target"`
	Value     float64 `json:"value"`
	Stiffness float64 `json:"stiffness,omitempty"`
	Damping   float64 `json:"damping,omitempty"`
}

type binding struct {
	actuator int
	name     string
	joint    int
	source   int

	defaultPos float64
	lo, hi     float64
	kp, kd     float64
	limit      float64

	alpha    float64
	prev     float64
	filtered bool
}

type Manager struct {
	mode     mode
	bindings []binding
	dim      int
	last     sim.Vector
	commands []ActuatorCommand
}

// Bind resolves policy joint names to the actuators that drive them.
func Bind(cfg Config, p sim.Physics, jointNames []string, actionDim int) (*Manager, error) {
	if p == nil {
		return nil, fmt.Errorf("action bind: nil physics")
	}
	if cfg.Mode == "" {
		cfg.Mode = "position"
	}
	newMode, ok := modes[cfg.Mode]
	if !ok {
		return nil, &sim.ConfigurationError{Component: "action", Message: fmt.Sprintf("unknown mode: %s", cfg.Mode)}
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	if len(cfg.Clip) != 0 && len(cfg.Clip) != 2 {
		return nil, &sim.ConfigurationError{Component: "action", Message: "clip must be [lo, hi]"}
	}
	if cfg.FilterAlpha < 0 || cfg.FilterAlpha > 1 {
		return nil, &sim.ConfigurationError{Component: "action", Message: fmt.Sprintf("filter alpha %f outside [0, 1]", cfg.FilterAlpha)}
	}

	n := len(jointNames)
	defaults, err := perJoint("default_pos", cfg.DefaultPos, n, 0)
	if err != nil {
		return nil, err
	}
	kp, err := perJoint("stiffness", cfg.Stiffness, n, 0)
	if err != nil {
		return nil, err
	}
	kd, err := perJoint("damping", cfg.Damping, n, 0)
	if err != nil {
		return nil, err
	}
	limits, err := perJoint("torque_limits", cfg.TorqueLimits, n, math.Inf(1))
	if err != nil {
		return nil, err
	}
	if cfg.Mode == "impedance" && len(cfg.Stiffness) == 0 {
		return nil, &sim.ConfigurationError{Component: "action", Message: "impedance mode needs stiffness"}
	}

	alpha := cfg.FilterAlpha
	if alpha == 0 {
		alpha = 1
	}

	m := &Manager{mode: newMode(cfg)}
	for src, name := range jointNames {
		j, ok := p.JointIndex(name)
		if !ok {
			return nil, &sim.ConfigurationError{Component: "action", Message: fmt.Sprintf("unknown joint %q", name)}
		}
		found := false
		for a := 0; a < p.NumActuators(); a++ {
			if p.ActuatorJoint(a) != j {
				continue
			}
			found = true
			b := binding{
				actuator:   a,
				name:       p.ActuatorNames()[a],
				joint:      j,
				source:     src,
				defaultPos: defaults[src],
				lo:         math.Inf(-1),
				hi:         math.Inf(1),
				kp:         kp[src],
				kd:         kd[src],
				limit:      limits[src],
				alpha:      alpha,
			}
			if len(cfg.Clip) == 2 {
				b.lo, b.hi = cfg.Clip[0], cfg.Clip[1]
			} else if lo, hi, limited := p.ActuatorRange(a); limited {
				b.lo, b.hi = lo, hi
			}
			m.bindings = append(m.bindings, b)
		}
		if !found {
			return nil, &sim.ConfigurationError{Component: "action", Message: fmt.Sprintf("joint %q has no actuator", name)}
		}
	}

	if len(m.bindings) != actionDim {
		return nil, &sim.DimensionMismatchError{What: "action", Expected: actionDim, Got: len(m.bindings)}
	}
	m.dim = actionDim
	m.last = make(sim.Vector, actionDim)
	return m, nil
}

func perJoint(name string, vals []float64, n int, fallback float64) ([]float64, error) {
	out := make([]float64, n)
	switch len(vals) {
	case 0:
		for i := range out {
			out[i] = fallback
		}
	case 1:
		for i := range out {
			out[i] = vals[0]
		}
	case n:
		copy(out, vals)
	default:
		return nil, &sim.ConfigurationError{Component: "action", Message: fmt.Sprintf("%s has %d values for %d joints", name, len(vals), n)}
	}
	return out, nil
}

func (m *Manager) Mode() string { return m.mode.name() }
func (m *Manager) Dim() int     { return m.dim }

// Apply writes one control value per mapped actuator. Unmapped actuators
// are left untouched.
func (m *Manager) Apply(ctx *sim.Context, action sim.Vector) ([]ActuatorCommand, error) {
	if len(action) != m.dim {
		return nil, &sim.ShapeError{Expected: m.dim, Got: len(action)}
	}

	ctrl := ctx.Physics.Ctrl()
	cmds := make([]ActuatorCommand, len(m.bindings))
	for i := range m.bindings {
		b := &m.bindings[i]
		c := m.mode.command(ctx, b, action[b.source])
		c.Actuator = b.name
		c.Source = b.source
		ctrl[b.actuator] = c.Value
		cmds[i] = c
	}

	copy(m.last, action)
	m.commands = cmds
	return cmds, nil
}

// LastAction returns a copy of the most recent raw action, zero before the
// first Apply.
func (m *Manager) LastAction() sim.Vector {
	return m.last.Clone()
}

func (m *Manager) Commands() []ActuatorCommand {
	return append([]ActuatorCommand(nil), m.commands...)
}

// Reset clears filter state and the last action.
func (m *Manager) Reset() {
	for i := range m.bindings {
		m.bindings[i].prev = 0
		m.bindings[i].filtered = false
	}
	for i := range m.last {
		m.last[i] = 0
	}
	m.commands = nil
}
