package sim

// Vec3 is a world-frame position or angular velocity.
type Vec3 [3]float64

// Quat is a unit quaternion in (w, x, y, z) order.
type Quat [4]float64

// Physics is the handle the control loop reads state from and writes
// actuator controls into. It is owned by the physics engine; the loop never
// mutates joint state directly.
type Physics interface {
	Timestep() float64
	Time() float64

	NumJoints() int
	NumActuators() int
	NumBodies() int

	JointIndex(name string) (int, bool)
	ActuatorIndex(name string) (int, bool)
	BodyIndex(name string) (int, bool)
	JointNames() []string
	ActuatorNames() []string
	BodyNames() []string

	QPos() []float64
	QVel() []float64

	BodyPosition(i int) Vec3
	BodyOrientation(i int) Quat
	BodyAngularVelocity(i int) Vec3
	BodyLinearVelocity(i int) Vec3

	// Ctrl is the live actuator control array; writes take effect on the
	// next Step.
	Ctrl() []float64
	ActuatorJoint(i int) int
	ActuatorRange(i int) (lo, hi float64, limited bool)

	Step()
	Reset()
}

// RotateInverse rotates v by the conjugate of q, taking a world-frame
// vector into the body frame.
func (q Quat) RotateInverse(v Vec3) Vec3 {
	w, x, y, z := q[0], -q[1], -q[2], -q[3]
	// t = 2 * cross(q.xyz, v)
	tx := 2 * (y*v[2] - z*v[1])
	ty := 2 * (z*v[0] - x*v[2])
	tz := 2 * (x*v[1] - y*v[0])
	return Vec3{
		v[0] + w*tx + (y*tz - z*ty),
		v[1] + w*ty + (z*tx - x*tz),
		v[2] + w*tz + (x*ty - y*tx),
	}
}

func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func (a Vec3) Norm() float64 {
	return Vector(a[:]).Norm()
}
