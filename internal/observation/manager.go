// Package observation turns physics state into the flat vector a policy
// consumes.
//
// A Manager is built once per scene binding from an ordered list of
// components. Each component keeps its own HistoryBuffer; Build samples
// every component, pushes the sample, and concatenates the histories in
// declared order:
//
//	[c0(t-k+1) ... c0(t) | c1(t-k+1) ... c1(t) | ...]
//
// The output length is fixed for the lifetime of the binding.
package observation

import (
	"fmt"

	"github.com/san-kum/policyloop/internal/sim"
)

// Segment locates one component inside the observation vector.
type Segment struct {
	Name    string
	Offset  int
	Width   int
	History int
}

type entry struct {
	comp  Component
	hist  *HistoryBuffer
	scale float64
	pool  *sim.VectorPool
}

type Manager struct {
	entries []entry
	layout  []Segment
	dim     int
}

// Bind resolves every component against the physics model. All name
// lookups happen here; Build never fails.
func Bind(specs []ComponentSpec, b BindContext) (*Manager, error) {
	if b.Physics == nil {
		return nil, fmt.Errorf("observation bind: nil physics")
	}
	if len(specs) == 0 {
		return nil, &sim.ConfigurationError{Component: "observation", Message: "no components declared"}
	}

	m := &Manager{}
	for _, spec := range specs {
		factory, ok := components[spec.Name]
		if !ok {
			return nil, &sim.ConfigurationError{Component: "observation", Message: fmt.Sprintf("unknown component: %s", spec.Name)}
		}
		if spec.History < 1 {
			return nil, configErr(spec, "history must be >= 1, got %d", spec.History)
		}
		comp, err := factory(spec, &b)
		if err != nil {
			return nil, err
		}

		scale := spec.Scale
		if scale == 0 {
			scale = 1
		}
		w := comp.Width()
		m.entries = append(m.entries, entry{
			comp:  comp,
			hist:  NewHistoryBuffer(w, spec.History),
			scale: scale,
			pool:  sim.NewVectorPool(w),
		})
		m.layout = append(m.layout, Segment{Name: spec.Name, Offset: m.dim, Width: w, History: spec.History})
		m.dim += w * spec.History
	}

	if b.ObsDim > 0 && b.ObsDim != m.dim {
		return nil, &sim.DimensionMismatchError{What: "observation", Expected: b.ObsDim, Got: m.dim}
	}
	return m, nil
}

// Len is the length of every vector Build returns.
func (m *Manager) Len() int { return m.dim }

func (m *Manager) Layout() []Segment {
	return append([]Segment(nil), m.layout...)
}

// Build samples all components once and returns the concatenated history.
// Each call advances every history buffer, so two calls on the same state
// do not return the same vector.
func (m *Manager) Build(ctx *sim.Context) sim.Vector {
	out := make(sim.Vector, m.dim)
	off := 0
	for _, e := range m.entries {
		sample := e.pool.Get()
		e.comp.Sample(ctx, sample)
		if e.scale != 1 {
			for i := range sample {
				sample[i] *= e.scale
			}
		}
		e.hist.Push(sample)
		e.pool.Put(sample)

		n := e.hist.Width() * e.hist.Depth()
		e.hist.Emit(out[off : off+n])
		off += n
	}
	return out
}

// Reset clears history. Component bindings are kept.
func (m *Manager) Reset() {
	for _, e := range m.entries {
		e.hist.Reset()
	}
}
