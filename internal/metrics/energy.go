package metrics

import (
	"github.com/san-kum/policyloop/internal/loop"
	"github.com/san-kum/policyloop/internal/models"
	"github.com/san-kum/policyloop/internal/sim"
)

type energetic interface {
	Energy(x sim.Vector) float64
}

type modelled interface {
	Model() models.System
}

// Energy averages the mechanical energy of models that report one. Frames
// from other physics handles are ignored.
type Energy struct {
	name    string
	total   float64
	samples int
	x       sim.Vector
}

func NewEnergy() *Energy {
	return &Energy{name: "energy"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(f loop.Frame) {
	m, ok := f.Physics.(modelled)
	if !ok {
		return
	}
	sys, ok := m.Model().(energetic)
	if !ok {
		return
	}
	e.x = append(e.x[:0], f.Physics.QPos()...)
	e.x = append(e.x, f.Physics.QVel()...)
	e.total += sys.Energy(e.x)
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.total / float64(e.samples)
}

func (e *Energy) Reset() {
	e.total = 0
	e.samples = 0
}
