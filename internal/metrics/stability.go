package metrics

import (
	"math"

	"github.com/san-kum/policyloop/internal/loop"
)

// Stability is the fraction of ticks on which every joint position and
// velocity stayed within Limit. Worst is the largest excursion seen.
type Stability struct {
	Limit float64

	ticks    int
	unstable int
	worst    float64
}

func NewStability(limit float64) *Stability {
	return &Stability{Limit: limit}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(f loop.Frame) {
	s.ticks++
	excursion := math.Max(maxAbs(f.Physics.QPos()), maxAbs(f.Physics.QVel()))
	s.worst = math.Max(s.worst, excursion)
	if excursion > s.Limit {
		s.unstable++
	}
}

func maxAbs(vals []float64) float64 {
	m := 0.0
	for _, v := range vals {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

func (s *Stability) Value() float64 {
	if s.ticks == 0 {
		return 1
	}
	return float64(s.ticks-s.unstable) / float64(s.ticks)
}

func (s *Stability) Worst() float64 { return s.worst }

func (s *Stability) Reset() {
	s.ticks, s.unstable, s.worst = 0, 0, 0
}
