package models

import (
	"math"
	"testing"

	"github.com/san-kum/policyloop/internal/sim"
)

func TestAcrobotHangingEquilibrium(t *testing.T) {
	a := NewAcrobot()
	dx := a.Derivative(sim.Vector{0, 0, 0, 0}, sim.Vector{0, 0}, 0)
	for i, v := range dx {
		if math.Abs(v) > 1e-12 {
			t.Errorf("dx[%d] = %f, expected 0 at rest", i, v)
		}
	}
}

func TestAcrobotEnergyConservedWithoutDamping(t *testing.T) {
	a := NewAcrobot()
	a.Damping = 0

	x := sim.Vector{1.0, -0.5, 0, 0}
	e0 := a.Energy(x)

	dt := 0.001
	for i := 0; i < 2000; i++ {
		x = rk4(a, x, dt)
	}

	if drift := math.Abs(a.Energy(x)-e0) / math.Abs(e0); drift > 1e-3 {
		t.Errorf("energy drift too large: %e", drift)
	}
}

func TestCartPoleForcePushesCart(t *testing.T) {
	c := NewCartPole()
	dx := c.Derivative(sim.Vector{0, 0, 0, 0}, sim.Vector{1, 0}, 0)
	if dx[2] <= 0 {
		t.Errorf("positive force should accelerate cart forward, got %f", dx[2])
	}
	if dx[3] >= 0 {
		t.Errorf("cart acceleration should tip the pole backwards, got %f", dx[3])
	}
}

func rk4(d sim.Dynamics, x sim.Vector, dt float64) sim.Vector {
	k1 := d.Derivative(x, nil, 0)
	k2 := d.Derivative(x.Add(k1.Scale(dt/2)), nil, 0)
	k3 := d.Derivative(x.Add(k2.Scale(dt/2)), nil, 0)
	k4 := d.Derivative(x.Add(k3.Scale(dt)), nil, 0)
	out := make(sim.Vector, len(x))
	for i := range x {
		out[i] = x[i] + dt/6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return out
}
