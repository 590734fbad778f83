package env

import (
	"fmt"

	"github.com/san-kum/policyloop/internal/sim"
)

type noop struct{}

func (noop) resolve(sim.Physics) error      { return nil }
func (noop) measure(*sim.Context, *Episode) {}
func (noop) failed(*Episode) bool           { return false }
func (noop) succeeded(*Episode) bool        { return false }

func lookupBody(p sim.Physics, scenario, name string) (int, error) {
	if name == "" {
		if p.NumBodies() == 0 {
			return 0, &sim.MissingBodyError{Scenario: scenario, Body: "<first>"}
		}
		return 0, nil
	}
	i, ok := p.BodyIndex(name)
	if !ok {
		return 0, &sim.MissingBodyError{Scenario: scenario, Body: name}
	}
	return i, nil
}

// fall fails once the tracked body drops below MinHeight and succeeds
// after SuccessTime seconds when that is set.
type fall struct {
	bodyName    string
	minHeight   float64
	successTime float64
	body        int
}

func newFall(cfg Config) (scenario, error) {
	return &fall{bodyName: cfg.Body, minHeight: cfg.MinHeight, successTime: cfg.SuccessTime}, nil
}

func (f *fall) resolve(p sim.Physics) error {
	i, err := lookupBody(p, "fall", f.bodyName)
	f.body = i
	return err
}

func (f *fall) measure(ctx *sim.Context, ep *Episode) {
	ep.Metrics["height"] = ctx.Physics.BodyPosition(f.body)[2]
}

func (f *fall) failed(ep *Episode) bool {
	return ep.Metrics["height"] < f.minHeight
}

func (f *fall) succeeded(ep *Episode) bool {
	return f.successTime > 0 && ep.Elapsed >= f.successTime
}

// reach succeeds when the tracked body comes within Tolerance of Goal and
// fails when it strays more than MaxDistance from the reference body.
type reach struct {
	bodyName    string
	refName     string
	goal        sim.Vec3
	tolerance   float64
	maxDistance float64
	body        int
	ref         int
}

func newReach(cfg Config) (scenario, error) {
	if len(cfg.Goal) != 3 {
		return nil, &sim.ConfigurationError{Component: "scenario reach", Message: fmt.Sprintf("goal needs 3 coordinates, got %d", len(cfg.Goal))}
	}
	if cfg.Tolerance <= 0 {
		return nil, &sim.ConfigurationError{Component: "scenario reach", Message: "tolerance must be positive"}
	}
	return &reach{
		bodyName:    cfg.Body,
		refName:     cfg.ReferenceBody,
		goal:        sim.Vec3{cfg.Goal[0], cfg.Goal[1], cfg.Goal[2]},
		tolerance:   cfg.Tolerance,
		maxDistance: cfg.MaxDistance,
		ref:         -1,
	}, nil
}

func (r *reach) resolve(p sim.Physics) error {
	i, err := lookupBody(p, "reach", r.bodyName)
	if err != nil {
		return err
	}
	r.body = i
	r.ref = -1
	if r.refName != "" {
		j, err := lookupBody(p, "reach", r.refName)
		if err != nil {
			return err
		}
		r.ref = j
	}
	return nil
}

func (r *reach) measure(ctx *sim.Context, ep *Episode) {
	pos := ctx.Physics.BodyPosition(r.body)
	ep.Metrics["distance"] = pos.Sub(r.goal).Norm()
	if r.ref >= 0 {
		ep.Metrics["reference_distance"] = pos.Sub(ctx.Physics.BodyPosition(r.ref)).Norm()
	}
}

func (r *reach) failed(ep *Episode) bool {
	return r.ref >= 0 && r.maxDistance > 0 && ep.Metrics["reference_distance"] > r.maxDistance
}

func (r *reach) succeeded(ep *Episode) bool {
	return ep.Metrics["distance"] <= r.tolerance
}
