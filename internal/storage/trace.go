package storage

import (
	"sync"

	"github.com/san-kum/policyloop/internal/loop"
)

// Trace is a per-tick table of joint positions, joint velocities and
// actuator controls.
type Trace struct {
	Columns []string    `json:"columns"`
	Times   []float64   `json:"times"`
	Rows    [][]float64 `json:"rows"`
}

// Column returns one column as a series, or nil if it does not exist.
func (t *Trace) Column(name string) []float64 {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]float64, 0, len(t.Rows))
	for _, row := range t.Rows {
		if idx < len(row) {
			out = append(out, row[idx])
		}
	}
	return out
}

// Recorder is a loop.Observer that appends every frame to a Trace.
type Recorder struct {
	mu    sync.Mutex
	trace Trace
	every uint64
}

// NewRecorder keeps one frame out of every `every` ticks.
func NewRecorder(every int) *Recorder {
	if every < 1 {
		every = 1
	}
	return &Recorder{every: uint64(every)}
}

func (r *Recorder) OnTick(f loop.Frame) {
	if f.Tick%r.every != 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p := f.Physics
	if r.trace.Columns == nil {
		for _, j := range p.JointNames() {
			r.trace.Columns = append(r.trace.Columns, "q:"+j)
		}
		for _, j := range p.JointNames() {
			r.trace.Columns = append(r.trace.Columns, "qd:"+j)
		}
		for _, a := range p.ActuatorNames() {
			r.trace.Columns = append(r.trace.Columns, "u:"+a)
		}
	}

	row := make([]float64, 0, len(r.trace.Columns))
	row = append(row, p.QPos()...)
	row = append(row, p.QVel()...)
	row = append(row, p.Ctrl()...)
	r.trace.Times = append(r.trace.Times, f.Time)
	r.trace.Rows = append(r.trace.Rows, row)
}

// Trace returns a copy of what has been recorded so far.
func (r *Recorder) Trace() *Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := &Trace{
		Columns: append([]string(nil), r.trace.Columns...),
		Times:   append([]float64(nil), r.trace.Times...),
		Rows:    make([][]float64, len(r.trace.Rows)),
	}
	for i, row := range r.trace.Rows {
		out.Rows[i] = append([]float64(nil), row...)
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace = Trace{}
}
