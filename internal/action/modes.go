package action

import (
	"sort"

	"github.com/san-kum/policyloop/internal/sim"
)

// mode turns one raw policy output into an actuator control value.
type mode interface {
	name() string
	command(ctx *sim.Context, b *binding, raw float64) ActuatorCommand
}

var modes = map[string]func(cfg Config) mode{
	"position":  func(cfg Config) mode { return &positionMode{scale: cfg.Scale} },
	"torque":    func(cfg Config) mode { return &torqueMode{scale: cfg.Scale} },
	"impedance": func(cfg Config) mode { return &impedanceMode{scale: cfg.Scale} },
	"passive":   func(cfg Config) mode { return &passiveMode{hold: cfg.Hold} },
}

func Modes() []string {
	names := make([]string, 0, len(modes))
	for name := range modes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type positionMode struct{ scale float64 }

func (m *positionMode) name() string { return "position" }

func (m *positionMode) command(ctx *sim.Context, b *binding, raw float64) ActuatorCommand {
	target := sim.Clamp(b.defaultPos+raw*m.scale, b.lo, b.hi)
	if b.alpha < 1 && b.filtered {
		target = b.alpha*target + (1-b.alpha)*b.prev
	}
	b.prev = target
	b.filtered = true
	return ActuatorCommand{Kind: "position", Target: target, Value: target}
}

type torqueMode struct{ scale float64 }

func (m *torqueMode) name() string { return "torque" }

func (m *torqueMode) command(ctx *sim.Context, b *binding, raw float64) ActuatorCommand {
	tau := sim.Clamp(raw*m.scale, -b.limit, b.limit)
	return ActuatorCommand{Kind: "torque", Target: tau, Value: tau}
}

// impedanceMode computes a PD torque toward default + raw*scale. The
// torque is evaluated once per control tick and held over the sub-steps.
type impedanceMode struct{ scale float64 }

func (m *impedanceMode) name() string { return "impedance" }

func (m *impedanceMode) command(ctx *sim.Context, b *binding, raw float64) ActuatorCommand {
	target := b.defaultPos + raw*m.scale
	q := ctx.Physics.QPos()[b.joint]
	qd := ctx.Physics.QVel()[b.joint]
	tau := sim.Clamp(b.kp*(target-q)-b.kd*qd, -b.limit, b.limit)
	return ActuatorCommand{Kind: "impedance", Target: target, Value: tau, Stiffness: b.kp, Damping: b.kd}
}

// passiveMode ignores the policy. With hold set it keeps whatever control
// the actuator had, otherwise it writes zero.
type passiveMode struct{ hold bool }

func (m *passiveMode) name() string { return "passive" }

func (m *passiveMode) command(ctx *sim.Context, b *binding, raw float64) ActuatorCommand {
	v := 0.0
	if m.hold {
		v = ctx.Physics.Ctrl()[b.actuator]
	}
	return ActuatorCommand{Kind: "passive", Target: v, Value: v}
}
