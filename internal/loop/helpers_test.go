package loop

import (
	"context"
	"sync"

	"github.com/san-kum/policyloop/internal/action"
	"github.com/san-kum/policyloop/internal/command"
	"github.com/san-kum/policyloop/internal/env"
	"github.com/san-kum/policyloop/internal/integrators"
	"github.com/san-kum/policyloop/internal/models"
	"github.com/san-kum/policyloop/internal/observation"
	"github.com/san-kum/policyloop/internal/physics"
	"github.com/san-kum/policyloop/internal/policy"
	"github.com/san-kum/policyloop/internal/sim"
)

// scriptedRunner returns out (or err) and can be made to block until
// released or cancelled.
type scriptedRunner struct {
	mu      sync.Mutex
	meta    policy.Metadata
	out     sim.Vector
	err     error
	calls   int
	closed  bool
	block   chan struct{}
	started chan struct{}
}

func newScriptedRunner(obsDim, actionDim int) *scriptedRunner {
	return &scriptedRunner{
		meta:    policy.Metadata{Backend: "scripted", ObsDim: obsDim, ActionDim: actionDim, JointNames: []string{"hinge"}},
		out:     make(sim.Vector, actionDim),
		started: make(chan struct{}, 16),
	}
}

func (r *scriptedRunner) set(out sim.Vector, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out, r.err = out, err
}

func (r *scriptedRunner) Infer(ctx context.Context, obs sim.Vector) (sim.Vector, error) {
	r.mu.Lock()
	r.calls++
	block, out, err := r.block, r.out.Clone(), r.err
	r.mu.Unlock()

	select {
	case r.started <- struct{}{}:
	default:
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, &sim.InferenceError{Backend: "scripted", Err: ctx.Err()}
		}
	}
	if err != nil {
		return nil, &sim.InferenceError{Backend: "scripted", Err: err}
	}
	return out, nil
}

func (r *scriptedRunner) Metadata() policy.Metadata { return r.meta }

func (r *scriptedRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *scriptedRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *scriptedRunner) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// pendulumBinding binds a torque-driven pendulum observed through
// joint_pos and joint_vel.
func pendulumBinding(runner policy.Runner, scenario env.Config, decimation int) (*Binding, *physics.Engine, error) {
	eng, err := physics.New(models.NewPendulum(), integrators.NewRK4(), physics.Options{
		Timestep: 0.005,
		InitQPos: []float64{0.3},
	})
	if err != nil {
		return nil, nil, err
	}
	obs, err := observation.Bind([]observation.ComponentSpec{
		{Name: "joint_pos", History: 1},
		{Name: "joint_vel", History: 1},
	}, observation.BindContext{Physics: eng, JointNames: []string{"hinge"}})
	if err != nil {
		return nil, nil, err
	}
	act, err := action.Bind(action.Config{Mode: "torque"}, eng, []string{"hinge"}, 1)
	if err != nil {
		return nil, nil, err
	}
	e, err := env.New(scenario, nil)
	if err != nil {
		return nil, nil, err
	}
	e.OnSceneLoaded(eng)

	return &Binding{
		Name:         "pendulum-test",
		Physics:      eng,
		Observations: obs,
		Actions:      act,
		Env:          e,
		Runner:       runner,
		Commands:     command.New(map[string]float64{"velocity_x": 0}),
		Decimation:   decimation,
	}, eng, nil
}
