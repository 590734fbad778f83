package integrators

import "github.com/san-kum/policyloop/internal/sim"

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn sim.Dynamics, x sim.Vector, u sim.Vector, t float64, dt float64) sim.Vector {
	dx := dyn.Derivative(x, u, t)
	result := make(sim.Vector, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result
}

// SemiImplicitEuler updates velocities first and integrates positions with
// the new velocities. It keeps stiff position actuators stable at the
// sub-step sizes the loop uses.
type SemiImplicitEuler struct{}

func NewSemiImplicitEuler() *SemiImplicitEuler {
	return &SemiImplicitEuler{}
}

func (s *SemiImplicitEuler) Step(dyn sim.Dynamics, x sim.Vector, u sim.Vector, t float64, dt float64) sim.Vector {
	n := len(x)
	half := n / 2
	dx := dyn.Derivative(x, u, t)
	result := make(sim.Vector, n)
	for i := 0; i < half; i++ {
		result[half+i] = x[half+i] + dt*dx[half+i]
		result[i] = x[i] + dt*result[half+i]
	}
	return result
}
