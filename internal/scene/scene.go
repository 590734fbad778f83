// Package scene turns a scene config into a running binding: it builds the
// physics engine and policy runner, then resolves observations, actions
// and the episode scenario against them.
package scene

import (
	"fmt"

	"github.com/san-kum/policyloop/internal/action"
	"github.com/san-kum/policyloop/internal/command"
	"github.com/san-kum/policyloop/internal/config"
	"github.com/san-kum/policyloop/internal/env"
	"github.com/san-kum/policyloop/internal/loop"
	"github.com/san-kum/policyloop/internal/observation"
	"github.com/san-kum/policyloop/internal/physics"
	"github.com/san-kum/policyloop/internal/policy"
	"github.com/san-kum/policyloop/internal/sim"
	"go.uber.org/zap"
)

type Scene struct {
	Config *config.Config
	Engine *physics.Engine
	Runner policy.Runner
}

// Build constructs the physics engine and the policy runner for cfg.
func (r *Registry) Build(cfg *config.Config) (*Scene, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sys, err := r.GetModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	integ, err := r.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	acts := make([]physics.Actuator, 0, len(cfg.Actuators))
	for _, a := range cfg.Actuators {
		kind, err := physics.ParseActuatorKind(a.Kind)
		if err != nil {
			return nil, fmt.Errorf("actuator %s: %w", a.Name, err)
		}
		pa := physics.Actuator{Name: a.Name, Joint: a.Joint, Kind: kind, Gear: a.Gear, Kp: a.Kp, Kv: a.Kv}
		switch len(a.Range) {
		case 0:
		case 2:
			pa.Range = [2]float64{a.Range[0], a.Range[1]}
			pa.Limited = true
		default:
			return nil, fmt.Errorf("actuator %s: range must be [lo, hi]", a.Name)
		}
		acts = append(acts, pa)
	}

	eng, err := physics.New(sys, integ, physics.Options{
		Timestep:  cfg.Timestep,
		Actuators: acts,
		InitQPos:  cfg.Initial.QPos,
		InitQVel:  cfg.Initial.QVel,
	})
	if err != nil {
		return nil, err
	}

	runner, err := policy.New(PolicyConfig(cfg))
	if err != nil {
		return nil, err
	}
	return &Scene{Config: cfg, Engine: eng, Runner: runner}, nil
}

// Load builds and binds cfg. The runner is closed if binding fails.
func (r *Registry) Load(cfg *config.Config, logger *zap.Logger) (*loop.Binding, *Scene, error) {
	s, err := r.Build(cfg)
	if err != nil {
		return nil, nil, err
	}
	b, err := Bind(cfg, s.Engine, s.Runner, logger)
	if err != nil {
		s.Runner.Close()
		return nil, nil, err
	}
	return b, s, nil
}

func PolicyConfig(cfg *config.Config) policy.Config {
	return policy.Config{
		Backend:    cfg.Policy.Backend,
		Path:       cfg.Policy.Path,
		ObsDim:     cfg.Policy.ObsDim,
		ActionDim:  cfg.Policy.ActionDim,
		JointNames: cfg.Policy.JointNames,
		Gains:      cfg.Policy.Gains,
		Bias:       cfg.Policy.Bias,
		Targets:    cfg.Policy.Targets,
		Dt:         cfg.ControlDt(),
		Async:      cfg.Policy.Async,
	}
}

// Bind resolves cfg against an existing physics handle and runner. Every
// name lookup and dimension check happens here, and any failure is
// returned before a binding exists.
func Bind(cfg *config.Config, p sim.Physics, runner policy.Runner, logger *zap.Logger) (*loop.Binding, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	meta := runner.Metadata()
	if cfg.Policy.ActionDim > 0 && cfg.Policy.ActionDim != meta.ActionDim {
		return nil, fmt.Errorf("bind %s: %w", cfg.Name, &sim.DimensionMismatchError{What: "action", Expected: meta.ActionDim, Got: cfg.Policy.ActionDim})
	}
	joints := meta.JointNames
	if len(joints) == 0 {
		joints = cfg.Policy.JointNames
	}

	specs := make([]observation.ComponentSpec, len(cfg.Observations))
	for i, o := range cfg.Observations {
		specs[i] = observation.ComponentSpec{Name: o.Name, History: o.History, Scale: o.Scale, Body: o.Body, Fields: o.Fields}
	}
	obs, err := observation.Bind(specs, observation.BindContext{
		Physics:    p,
		JointNames: joints,
		DefaultPos: cfg.Action.DefaultPos,
		ActionDim:  meta.ActionDim,
		ObsDim:     meta.ObsDim,
	})
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", cfg.Name, err)
	}

	act, err := action.Bind(action.Config{
		Mode:         cfg.Action.Mode,
		Scale:        cfg.Action.Scale,
		Clip:         cfg.Action.Clip,
		FilterAlpha:  cfg.Action.FilterAlpha,
		DefaultPos:   cfg.Action.DefaultPos,
		Stiffness:    cfg.Action.Stiffness,
		Damping:      cfg.Action.Damping,
		TorqueLimits: cfg.Action.TorqueLimits,
		Hold:         cfg.Action.Hold,
	}, p, joints, meta.ActionDim)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", cfg.Name, err)
	}

	sc := cfg.Scenario
	envMgr, err := env.New(env.Config{
		Type:          sc.Type,
		WarmupTicks:   sc.WarmupTicks,
		Body:          sc.Body,
		ReferenceBody: sc.ReferenceBody,
		MinHeight:     sc.MinHeight,
		SuccessTime:   sc.SuccessTime,
		Goal:          sc.Goal,
		Tolerance:     sc.Tolerance,
		MaxDistance:   sc.MaxDistance,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", cfg.Name, err)
	}
	envMgr.OnSceneLoaded(p)

	b := &loop.Binding{
		Name:         cfg.Name,
		Physics:      p,
		Observations: obs,
		Actions:      act,
		Env:          envMgr,
		Runner:       runner,
		Commands:     command.New(cfg.Commands),
		Decimation:   cfg.Decimation,
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("bind %s: %w", cfg.Name, err)
	}
	return b, nil
}
