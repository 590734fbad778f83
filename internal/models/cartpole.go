package models

import (
	"math"

	"github.com/san-kum/policyloop/internal/sim"
)

// CartPole is a pole hinged on a sliding cart; theta=0 is upright.
// State is [x, theta, xdot, omega].
type CartPole struct {
	CartMass   float64
	PoleMass   float64
	PoleLength float64
	Gravity    float64
}

func NewCartPole() *CartPole {
	return &CartPole{
		CartMass:   1.0,
		PoleMass:   0.1,
		PoleLength: 1.0,
		Gravity:    DefaultGravity,
	}
}

func (c *CartPole) Name() string    { return "cartpole" }
func (c *CartPole) StateDim() int   { return 4 }
func (c *CartPole) ControlDim() int { return 2 }

func (c *CartPole) Joints() []Joint {
	return []Joint{{Name: "slider", Kind: Slide}, {Name: "hinge", Kind: Hinge}}
}

func (c *CartPole) Bodies() []string { return []string{"cart", "pole"} }

func (c *CartPole) Derivative(x sim.Vector, u sim.Vector, t float64) sim.Vector {
	theta := x[1]
	vel := x[2]
	omega := x[3]

	force, hingeTorque := 0.0, 0.0
	if len(u) > 0 {
		force = u[0]
	}
	if len(u) > 1 {
		hingeTorque = u[1]
	}

	mc := c.CartMass
	mp := c.PoleMass
	l := c.PoleLength
	g := c.Gravity

	sint := math.Sin(theta)
	cost := math.Cos(theta)

	temp := (force + mp*l*omega*omega*sint) / (mc + mp)
	thetaacc := (g*sint - cost*temp + hingeTorque/(mp*l)) / (l * (4.0/3.0 - mp*cost*cost/(mc+mp)))
	xacc := temp - mp*l*thetaacc*cost/(mc+mp)

	return sim.Vector{vel, omega, xacc, thetaacc}
}

func (c *CartPole) Poses(x sim.Vector, dst []Pose) {
	pos, theta, vel, omega := x[0], x[1], x[2], x[3]
	s, co := math.Sin(theta), math.Cos(theta)
	l := c.PoleLength
	dst[0] = Pose{
		Position: sim.Vec3{pos, 0, 0},
		LinVel:   sim.Vec3{vel, 0, 0},
	}
	dst[1] = Pose{
		Position: sim.Vec3{pos + l*s, 0, l * co},
		Pitch:    theta,
		LinVel:   sim.Vec3{vel + l*co*omega, 0, -l * s * omega},
		AngVel:   sim.Vec3{0, omega, 0},
	}
}
