package physics

import (
	"fmt"

	"github.com/san-kum/policyloop/internal/models"
	"github.com/san-kum/policyloop/internal/sim"
)

type ActuatorKind int

const (
	Motor ActuatorKind = iota
	Position
)

func ParseActuatorKind(s string) (ActuatorKind, error) {
	switch s {
	case "", "motor":
		return Motor, nil
	case "position":
		return Position, nil
	default:
		return Motor, fmt.Errorf("unknown actuator kind: %s", s)
	}
}

type Actuator struct {
	Name    string
	Joint   string
	Kind    ActuatorKind
	Gear    float64
	Kp      float64
	Kv      float64
	Range   [2]float64
	Limited bool
}

type Options struct {
	Timestep  float64
	Actuators []Actuator
	InitQPos  []float64
	InitQVel  []float64
}

// Engine advances a models.System with a fixed timestep.
type Engine struct {
	sys   models.System
	integ sim.Integrator
	dt    float64

	joints    []string
	bodies    []string
	actuators []Actuator
	actJoint  []int

	jointIdx map[string]int
	bodyIdx  map[string]int
	actIdx   map[string]int

	x0    sim.Vector
	x     sim.Vector
	ctrl  []float64
	tau   sim.Vector
	poses []models.Pose
	t     float64
	steps uint64
}

var _ sim.Physics = (*Engine)(nil)

// New builds an engine. With no actuators configured every joint gets a
// unit-gear motor named "<joint>_motor".
func New(sys models.System, integ sim.Integrator, opts Options) (*Engine, error) {
	if opts.Timestep <= 0 {
		return nil, fmt.Errorf("timestep must be positive, got %f", opts.Timestep)
	}

	e := &Engine{
		sys:      sys,
		integ:    integ,
		dt:       opts.Timestep,
		jointIdx: make(map[string]int),
		bodyIdx:  make(map[string]int),
		actIdx:   make(map[string]int),
	}

	for i, j := range sys.Joints() {
		e.joints = append(e.joints, j.Name)
		e.jointIdx[j.Name] = i
	}
	for i, b := range sys.Bodies() {
		e.bodies = append(e.bodies, b)
		e.bodyIdx[b] = i
	}

	acts := opts.Actuators
	if len(acts) == 0 {
		for _, j := range e.joints {
			acts = append(acts, Actuator{Name: j + "_motor", Joint: j, Kind: Motor, Gear: 1})
		}
	}
	for i, a := range acts {
		ji, ok := e.jointIdx[a.Joint]
		if !ok {
			return nil, fmt.Errorf("actuator %s: unknown joint %q", a.Name, a.Joint)
		}
		if _, dup := e.actIdx[a.Name]; dup {
			return nil, fmt.Errorf("duplicate actuator name: %s", a.Name)
		}
		if a.Gear == 0 {
			a.Gear = 1
		}
		e.actuators = append(e.actuators, a)
		e.actJoint = append(e.actJoint, ji)
		e.actIdx[a.Name] = i
	}

	nq := len(e.joints)
	if nq*2 != sys.StateDim() {
		return nil, fmt.Errorf("model %s: state dim %d does not match %d joints", sys.Name(), sys.StateDim(), nq)
	}

	e.x0 = make(sim.Vector, 2*nq)
	if len(opts.InitQPos) > 0 {
		if len(opts.InitQPos) != nq {
			return nil, fmt.Errorf("initial qpos has %d values, model has %d joints", len(opts.InitQPos), nq)
		}
		copy(e.x0[:nq], opts.InitQPos)
	}
	if len(opts.InitQVel) > 0 {
		if len(opts.InitQVel) != nq {
			return nil, fmt.Errorf("initial qvel has %d values, model has %d joints", len(opts.InitQVel), nq)
		}
		copy(e.x0[nq:], opts.InitQVel)
	}

	e.ctrl = make([]float64, len(e.actuators))
	e.tau = make(sim.Vector, nq)
	e.poses = make([]models.Pose, len(e.bodies))
	e.Reset()
	return e, nil
}

func (e *Engine) Model() models.System { return e.sys }
func (e *Engine) Timestep() float64    { return e.dt }
func (e *Engine) Time() float64        { return e.t }
func (e *Engine) Steps() uint64        { return e.steps }

func (e *Engine) NumJoints() int    { return len(e.joints) }
func (e *Engine) NumActuators() int { return len(e.actuators) }
func (e *Engine) NumBodies() int    { return len(e.bodies) }

func (e *Engine) JointIndex(name string) (int, bool) {
	i, ok := e.jointIdx[name]
	return i, ok
}

func (e *Engine) ActuatorIndex(name string) (int, bool) {
	i, ok := e.actIdx[name]
	return i, ok
}

func (e *Engine) BodyIndex(name string) (int, bool) {
	i, ok := e.bodyIdx[name]
	return i, ok
}

func (e *Engine) JointNames() []string { return append([]string(nil), e.joints...) }
func (e *Engine) BodyNames() []string  { return append([]string(nil), e.bodies...) }

func (e *Engine) ActuatorNames() []string {
	names := make([]string, len(e.actuators))
	for i, a := range e.actuators {
		names[i] = a.Name
	}
	return names
}

func (e *Engine) QPos() []float64 { return e.x[:len(e.joints)] }
func (e *Engine) QVel() []float64 { return e.x[len(e.joints):] }

// SetState overwrites joint positions and velocities.
func (e *Engine) SetState(qpos, qvel []float64) {
	nq := len(e.joints)
	copy(e.x[:nq], qpos)
	copy(e.x[nq:], qvel)
	e.sys.Poses(e.x, e.poses)
}

func (e *Engine) BodyPosition(i int) sim.Vec3        { return e.poses[i].Position }
func (e *Engine) BodyOrientation(i int) sim.Quat     { return e.poses[i].Quat() }
func (e *Engine) BodyAngularVelocity(i int) sim.Vec3 { return e.poses[i].AngVel }
func (e *Engine) BodyLinearVelocity(i int) sim.Vec3  { return e.poses[i].LinVel }

func (e *Engine) Ctrl() []float64          { return e.ctrl }
func (e *Engine) ActuatorJoint(i int) int  { return e.actJoint[i] }
func (e *Engine) Actuator(i int) Actuator  { return e.actuators[i] }
func (e *Engine) JointTorques() sim.Vector { return e.tau.Clone() }

func (e *Engine) ActuatorRange(i int) (float64, float64, bool) {
	a := e.actuators[i]
	return a.Range[0], a.Range[1], a.Limited
}

func (e *Engine) Step() {
	e.computeTorques()
	e.x = e.integ.Step(e.sys, e.x, e.tau, e.t, e.dt)
	e.t += e.dt
	e.steps++
	e.sys.Poses(e.x, e.poses)
}

func (e *Engine) Reset() {
	e.x = e.x0.Clone()
	for i := range e.ctrl {
		e.ctrl[i] = 0
	}
	for i := range e.tau {
		e.tau[i] = 0
	}
	e.t = 0
	e.steps = 0
	e.sys.Poses(e.x, e.poses)
}

func (e *Engine) computeTorques() {
	nq := len(e.joints)
	for i := range e.tau {
		e.tau[i] = 0
	}
	for i, a := range e.actuators {
		c := e.ctrl[i]
		if a.Limited {
			c = sim.Clamp(c, a.Range[0], a.Range[1])
		}
		j := e.actJoint[i]
		switch a.Kind {
		case Position:
			e.tau[j] += a.Kp*(c-e.x[j]) - a.Kv*e.x[nq+j]
		default:
			e.tau[j] += a.Gear * c
		}
	}
}
