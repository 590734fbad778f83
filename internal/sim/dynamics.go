package sim

// Dynamics is an ODE system over generalised coordinates x = [q, qdot]
// driven by joint torques u.
type Dynamics interface {
	Derivative(x Vector, u Vector, t float64) Vector
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn Dynamics, x Vector, u Vector, t float64, dt float64) Vector
}
