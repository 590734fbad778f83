package models

import (
	"math"

	"github.com/san-kum/policyloop/internal/sim"
)

// Acrobot is a two-link arm with point masses at the link ends, hanging from
// a fixed pivot. Joint angles are relative: q2 is the elbow angle.
type Acrobot struct {
	M1, M2  float64
	L1, L2  float64
	Damping float64
	Gravity float64
	PivotZ  float64
}

func NewAcrobot() *Acrobot {
	return &Acrobot{
		M1: DefaultMass, M2: DefaultMass,
		L1: DefaultLength, L2: DefaultLength,
		Damping: 0.05,
		Gravity: DefaultGravity,
		PivotZ:  2.5,
	}
}

func (a *Acrobot) Name() string    { return "acrobot" }
func (a *Acrobot) StateDim() int   { return 4 }
func (a *Acrobot) ControlDim() int { return 2 }

func (a *Acrobot) Joints() []Joint {
	return []Joint{{Name: "shoulder", Kind: Hinge}, {Name: "elbow", Kind: Hinge}}
}

func (a *Acrobot) Bodies() []string { return []string{"upper_arm", "forearm"} }

func (a *Acrobot) Derivative(x sim.Vector, u sim.Vector, t float64) sim.Vector {
	q1, q2, w1, w2 := x[0], x[1], x[2], x[3]
	m1, m2, l1, l2, g := a.M1, a.M2, a.L1, a.L2, a.Gravity

	tau1, tau2 := 0.0, 0.0
	if len(u) > 0 {
		tau1 = u[0]
	}
	if len(u) > 1 {
		tau2 = u[1]
	}

	c2 := math.Cos(q2)
	h := m2 * l1 * l2 * math.Sin(q2)

	m11 := (m1+m2)*l1*l1 + m2*l2*l2 + 2*m2*l1*l2*c2
	m12 := m2*l2*l2 + m2*l1*l2*c2
	m22 := m2 * l2 * l2

	cor1 := -h * (2*w1*w2 + w2*w2)
	cor2 := h * w1 * w1

	g1 := (m1+m2)*g*l1*math.Sin(q1) + m2*g*l2*math.Sin(q1+q2)
	g2 := m2 * g * l2 * math.Sin(q1+q2)

	r1 := tau1 - a.Damping*w1 - cor1 - g1
	r2 := tau2 - a.Damping*w2 - cor2 - g2

	det := m11*m22 - m12*m12
	acc1 := (m22*r1 - m12*r2) / det
	acc2 := (m11*r2 - m12*r1) / det

	return sim.Vector{w1, w2, acc1, acc2}
}

func (a *Acrobot) Poses(x sim.Vector, dst []Pose) {
	q1, q2, w1, w2 := x[0], x[1], x[2], x[3]
	s1, c1 := math.Sin(q1), math.Cos(q1)
	s12, c12 := math.Sin(q1+q2), math.Cos(q1+q2)

	p1 := sim.Vec3{a.L1 * s1, 0, a.PivotZ - a.L1*c1}
	v1 := sim.Vec3{a.L1 * c1 * w1, 0, a.L1 * s1 * w1}
	dst[0] = Pose{
		Position: p1,
		Pitch:    -q1,
		LinVel:   v1,
		AngVel:   sim.Vec3{0, -w1, 0},
	}
	dst[1] = Pose{
		Position: sim.Vec3{p1[0] + a.L2*s12, 0, p1[2] - a.L2*c12},
		Pitch:    -(q1 + q2),
		LinVel:   sim.Vec3{v1[0] + a.L2*c12*(w1+w2), 0, v1[2] + a.L2*s12*(w1+w2)},
		AngVel:   sim.Vec3{0, -(w1 + w2), 0},
	}
}

func (a *Acrobot) Energy(x sim.Vector) float64 {
	poses := make([]Pose, 2)
	a.Poses(x, poses)
	ke := 0.5*a.M1*poses[0].LinVel.Norm()*poses[0].LinVel.Norm() +
		0.5*a.M2*poses[1].LinVel.Norm()*poses[1].LinVel.Norm()
	pe := a.M1*a.Gravity*poses[0].Position[2] + a.M2*a.Gravity*poses[1].Position[2]
	return ke + pe
}
