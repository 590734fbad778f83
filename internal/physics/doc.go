// Package physics provides a small articulated physics engine that
// satisfies [sim.Physics].
//
// An [Engine] wraps a [models.System] and a [sim.Integrator]. Actuators map
// control values onto joint torques:
//
//   - [Motor]: torque = gear * ctrl
//   - [Position]: torque = kp * (ctrl - q) - kv * qdot
//
// The control loop treats the engine as opaque: it reads joint and body
// state, writes the control array and calls Step once per sub-step.
//
//	eng, err := physics.New(models.NewPendulum(), integrators.NewRK4(), physics.Options{Timestep: 0.005})
//	eng.Ctrl()[0] = 0.5
//	eng.Step()
package physics
