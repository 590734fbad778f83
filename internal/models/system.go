package models

import (
	"math"

	"github.com/san-kum/policyloop/internal/sim"
)

const (
	DefaultMass    = 1.0
	DefaultLength  = 1.0
	DefaultGravity = 9.81
)

type JointKind int

const (
	Hinge JointKind = iota
	Slide
)

type Joint struct {
	Name string
	Kind JointKind
}

// Pose is the world-frame state of one body. Models are planar in x-z, so
// orientation is a single pitch angle about +y.
type Pose struct {
	Position sim.Vec3
	Pitch    float64
	LinVel   sim.Vec3
	AngVel   sim.Vec3
}

func (p Pose) Quat() sim.Quat {
	half := p.Pitch / 2
	return sim.Quat{math.Cos(half), 0, math.Sin(half), 0}
}

// System is an articulated model with one degree of freedom per joint and
// state x = [q, qdot].
type System interface {
	sim.Dynamics
	Name() string
	Joints() []Joint
	Bodies() []string
	Poses(x sim.Vector, dst []Pose)
}

func NumJoints(s System) int {
	return len(s.Joints())
}
