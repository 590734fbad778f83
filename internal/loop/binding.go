package loop

import (
	"fmt"

	"github.com/san-kum/policyloop/internal/action"
	"github.com/san-kum/policyloop/internal/command"
	"github.com/san-kum/policyloop/internal/env"
	"github.com/san-kum/policyloop/internal/observation"
	"github.com/san-kum/policyloop/internal/policy"
	"github.com/san-kum/policyloop/internal/sim"
)

// Binding is a fully resolved scene: every name lookup and dimension check
// has already passed.
type Binding struct {
	Name         string
	Physics      sim.Physics
	Observations *observation.Manager
	Actions      *action.Manager
	Env          env.Manager
	Runner       policy.Runner
	Commands     *command.Manager
	Decimation   int
}

func (b *Binding) Validate() error {
	if b == nil {
		return fmt.Errorf("nil binding")
	}
	switch {
	case b.Physics == nil:
		return fmt.Errorf("binding %s: no physics", b.Name)
	case b.Observations == nil:
		return fmt.Errorf("binding %s: no observation manager", b.Name)
	case b.Actions == nil:
		return fmt.Errorf("binding %s: no action manager", b.Name)
	case b.Env == nil:
		return fmt.Errorf("binding %s: no env manager", b.Name)
	case b.Runner == nil:
		return fmt.Errorf("binding %s: no policy runner", b.Name)
	case b.Decimation < 1:
		return fmt.Errorf("binding %s: decimation must be >= 1, got %d", b.Name, b.Decimation)
	}

	meta := b.Runner.Metadata()
	if meta.ObsDim != b.Observations.Len() {
		return &sim.DimensionMismatchError{What: "observation", Expected: meta.ObsDim, Got: b.Observations.Len()}
	}
	if meta.ActionDim != b.Actions.Dim() {
		return &sim.DimensionMismatchError{What: "action", Expected: meta.ActionDim, Got: b.Actions.Dim()}
	}
	return nil
}

// ControlDt is the simulated time advanced by one tick.
func (b *Binding) ControlDt() float64 {
	return b.Physics.Timestep() * float64(b.Decimation)
}
