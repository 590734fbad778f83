package models

import (
	"math"

	"github.com/san-kum/policyloop/internal/sim"
)

// Pendulum hangs from a pivot; theta=0 points straight down.
type Pendulum struct {
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
	PivotZ  float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    DefaultMass,
		Length:  DefaultLength,
		Damping: 0.1,
		Gravity: DefaultGravity,
		PivotZ:  1.5,
	}
}

func (p *Pendulum) Name() string    { return "pendulum" }
func (p *Pendulum) StateDim() int   { return 2 }
func (p *Pendulum) ControlDim() int { return 1 }

func (p *Pendulum) Joints() []Joint { return []Joint{{Name: "hinge", Kind: Hinge}} }
func (p *Pendulum) Bodies() []string {
	return []string{"pole"}
}

func (p *Pendulum) Derivative(x sim.Vector, u sim.Vector, t float64) sim.Vector {
	theta := x[0]
	omega := x[1]

	torque := 0.0
	if len(u) > 0 {
		torque = u[0]
	}
	alpha := (-p.Damping*omega - p.Mass*p.Gravity*p.Length*math.Sin(theta) + torque) / (p.Mass * p.Length * p.Length)

	return sim.Vector{omega, alpha}
}

func (p *Pendulum) Poses(x sim.Vector, dst []Pose) {
	theta, omega := x[0], x[1]
	s, c := math.Sin(theta), math.Cos(theta)
	dst[0] = Pose{
		Position: sim.Vec3{p.Length * s, 0, p.PivotZ - p.Length*c},
		Pitch:    -theta,
		LinVel:   sim.Vec3{p.Length * c * omega, 0, p.Length * s * omega},
		AngVel:   sim.Vec3{0, -omega, 0},
	}
}

func (p *Pendulum) Energy(x sim.Vector) float64 {
	theta, omega := x[0], x[1]
	ke := 0.5 * p.Mass * p.Length * p.Length * omega * omega
	pe := p.Mass * p.Gravity * p.Length * (1 - math.Cos(theta))
	return ke + pe
}
