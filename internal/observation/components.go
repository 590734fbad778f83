package observation

import (
	"fmt"
	"sort"

	"github.com/san-kum/policyloop/internal/sim"
)

// ComponentSpec is one entry of an observation layout.
type ComponentSpec struct {
	Name    string
	History int
	Scale   float64
	Body    string
	Fields  []string
}

// Component samples one slice of the observation from the tick context.
type Component interface {
	Name() string
	Width() int
	Sample(ctx *sim.Context, dst sim.Vector)
}

// BindContext is what a component may resolve against at bind time.
type BindContext struct {
	Physics    sim.Physics
	JointNames []string
	DefaultPos []float64
	ActionDim  int
	ObsDim     int
}

type Factory func(spec ComponentSpec, b *BindContext) (Component, error)

var components = map[string]Factory{
	"projected_gravity": newBodyVector(projectedGravity),
	"base_ang_vel":      newBodyVector(angularVelocity),
	"base_lin_vel":      newBodyVector(linearVelocity),
	"base_height":       newBaseHeight,
	"joint_pos":         newJointPos,
	"joint_vel":         newJointVel,
	"command":           newCommand,
	"last_action":       newLastAction,
}

// Register adds a component factory. It overwrites any factory already
// registered under name.
func Register(name string, f Factory) {
	components[name] = f
}

func Components() []string {
	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func configErr(spec ComponentSpec, format string, args ...interface{}) error {
	return &sim.ConfigurationError{Component: "observation " + spec.Name, Message: fmt.Sprintf(format, args...)}
}

func resolveBody(spec ComponentSpec, b *BindContext) (int, error) {
	if spec.Body == "" {
		if b.Physics.NumBodies() == 0 {
			return 0, configErr(spec, "model has no bodies")
		}
		return 0, nil
	}
	i, ok := b.Physics.BodyIndex(spec.Body)
	if !ok {
		return 0, configErr(spec, "unknown body %q", spec.Body)
	}
	return i, nil
}

// resolveJoints maps the policy joint order onto native joint indices.
func resolveJoints(spec ComponentSpec, b *BindContext) ([]int, error) {
	names := b.JointNames
	if len(names) == 0 {
		names = b.Physics.JointNames()
	}
	idx := make([]int, len(names))
	for i, name := range names {
		j, ok := b.Physics.JointIndex(name)
		if !ok {
			return nil, configErr(spec, "unknown joint %q", name)
		}
		idx[i] = j
	}
	return idx, nil
}

type bodyVector struct {
	name string
	body int
	read func(p sim.Physics, body int) sim.Vec3
}

func newBodyVector(read func(p sim.Physics, body int) sim.Vec3) Factory {
	return func(spec ComponentSpec, b *BindContext) (Component, error) {
		body, err := resolveBody(spec, b)
		if err != nil {
			return nil, err
		}
		return &bodyVector{name: spec.Name, body: body, read: read}, nil
	}
}

func (c *bodyVector) Name() string { return c.name }
func (c *bodyVector) Width() int   { return 3 }

func (c *bodyVector) Sample(ctx *sim.Context, dst sim.Vector) {
	v := c.read(ctx.Physics, c.body)
	copy(dst, v[:])
}

func projectedGravity(p sim.Physics, body int) sim.Vec3 {
	return p.BodyOrientation(body).RotateInverse(sim.Vec3{0, 0, -1})
}

func angularVelocity(p sim.Physics, body int) sim.Vec3 {
	return p.BodyOrientation(body).RotateInverse(p.BodyAngularVelocity(body))
}

func linearVelocity(p sim.Physics, body int) sim.Vec3 {
	return p.BodyOrientation(body).RotateInverse(p.BodyLinearVelocity(body))
}

type baseHeight struct{ body int }

func newBaseHeight(spec ComponentSpec, b *BindContext) (Component, error) {
	body, err := resolveBody(spec, b)
	if err != nil {
		return nil, err
	}
	return &baseHeight{body: body}, nil
}

func (c *baseHeight) Name() string { return "base_height" }
func (c *baseHeight) Width() int   { return 1 }

func (c *baseHeight) Sample(ctx *sim.Context, dst sim.Vector) {
	dst[0] = ctx.Physics.BodyPosition(c.body)[2]
}

type jointPos struct {
	joints   []int
	defaults []float64
}

func newJointPos(spec ComponentSpec, b *BindContext) (Component, error) {
	joints, err := resolveJoints(spec, b)
	if err != nil {
		return nil, err
	}
	defaults := make([]float64, len(joints))
	if len(b.DefaultPos) > 0 {
		if len(b.DefaultPos) != len(joints) {
			return nil, configErr(spec, "%d default positions for %d joints", len(b.DefaultPos), len(joints))
		}
		copy(defaults, b.DefaultPos)
	}
	return &jointPos{joints: joints, defaults: defaults}, nil
}

func (c *jointPos) Name() string { return "joint_pos" }
func (c *jointPos) Width() int   { return len(c.joints) }

func (c *jointPos) Sample(ctx *sim.Context, dst sim.Vector) {
	q := ctx.Physics.QPos()
	for i, j := range c.joints {
		dst[i] = q[j] - c.defaults[i]
	}
}

type jointVel struct{ joints []int }

func newJointVel(spec ComponentSpec, b *BindContext) (Component, error) {
	joints, err := resolveJoints(spec, b)
	if err != nil {
		return nil, err
	}
	return &jointVel{joints: joints}, nil
}

func (c *jointVel) Name() string { return "joint_vel" }
func (c *jointVel) Width() int   { return len(c.joints) }

func (c *jointVel) Sample(ctx *sim.Context, dst sim.Vector) {
	qd := ctx.Physics.QVel()
	for i, j := range c.joints {
		dst[i] = qd[j]
	}
}

type commandComponent struct{ fields []string }

func newCommand(spec ComponentSpec, b *BindContext) (Component, error) {
	if len(spec.Fields) == 0 {
		return nil, configErr(spec, "no command fields listed")
	}
	return &commandComponent{fields: append([]string(nil), spec.Fields...)}, nil
}

func (c *commandComponent) Name() string { return "command" }
func (c *commandComponent) Width() int   { return len(c.fields) }

func (c *commandComponent) Sample(ctx *sim.Context, dst sim.Vector) {
	for i, f := range c.fields {
		dst[i] = ctx.Commands.Get(f)
	}
}

type lastAction struct{ dim int }

func newLastAction(spec ComponentSpec, b *BindContext) (Component, error) {
	if b.ActionDim < 1 {
		return nil, configErr(spec, "action dimension unknown")
	}
	return &lastAction{dim: b.ActionDim}, nil
}

func (c *lastAction) Name() string { return "last_action" }
func (c *lastAction) Width() int   { return c.dim }

func (c *lastAction) Sample(ctx *sim.Context, dst sim.Vector) {
	n := copy(dst[:c.dim], ctx.LastAction)
	for i := n; i < c.dim; i++ {
		dst[i] = 0
	}
}
