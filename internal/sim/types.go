package sim

import "math"

// Vector is the flat numeric layout shared by observations, actions and
// generalised coordinates.
type Vector []float64

func (v Vector) Clone() Vector {
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

func (v Vector) IsValid() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func (v Vector) Norm() float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func (v Vector) Add(o Vector) Vector {
	r := make(Vector, len(v))
	for i := range v {
		r[i] = v[i] + o[i]
	}
	return r
}

func (v Vector) Sub(o Vector) Vector {
	r := make(Vector, len(v))
	for i := range v {
		r[i] = v[i] - o[i]
	}
	return r
}

func (v Vector) Scale(k float64) Vector {
	r := make(Vector, len(v))
	for i := range v {
		r[i] = v[i] * k
	}
	return r
}

// Equal reports whether both vectors have the same length and elements.
func (v Vector) Equal(o Vector) bool {
	if len(v) != len(o) {
		return false
	}
	for i := range v {
		if v[i] != o[i] {
			return false
		}
	}
	return true
}

// Commands is a point-in-time copy of the externally set command state.
type Commands map[string]float64

func (c Commands) Get(name string) float64 {
	return c[name]
}

// Context is handed to every manager call. It replaces back-references to
// the loop: whatever a manager needs to read for one tick travels here.
type Context struct {
	Physics    Physics
	Commands   Commands
	LastAction Vector
	Dt         float64
	Tick       uint64
}

func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
