package sim

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestVector_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		v     Vector
		valid bool
	}{
		{"empty", Vector{}, true},
		{"normal", Vector{1.0, 2.0, 3.0}, true},
		{"zeros", Vector{0.0, 0.0}, true},
		{"with NaN", Vector{1.0, math.NaN()}, false},
		{"with +Inf", Vector{1.0, math.Inf(1)}, false},
		{"with -Inf", Vector{1.0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestVector_Norm(t *testing.T) {
	tests := []struct {
		v        Vector
		expected float64
	}{
		{Vector{3, 4}, 5.0},
		{Vector{1, 0}, 1.0},
		{Vector{0, 0}, 0.0},
		{Vector{1, 1, 1, 1}, 2.0},
	}

	for _, tt := range tests {
		if got := tt.v.Norm(); math.Abs(got-tt.expected) > 1e-10 {
			t.Errorf("Norm(%v) = %v, want %v", tt.v, got, tt.expected)
		}
	}
}

func TestVector_Arithmetic(t *testing.T) {
	a := Vector{1, 2, 3}
	b := Vector{4, 5, 6}

	sum := a.Add(b)
	if !sum.Equal(Vector{5, 7, 9}) {
		t.Errorf("Add failed: got %v", sum)
	}

	diff := b.Sub(a)
	if !diff.Equal(Vector{3, 3, 3}) {
		t.Errorf("Sub failed: got %v", diff)
	}

	scaled := a.Scale(2)
	if !scaled.Equal(Vector{2, 4, 6}) {
		t.Errorf("Scale failed: got %v", scaled)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(2.0, -1, 1); got != 1 {
		t.Errorf("expected 1, got %f", got)
	}
	if got := Clamp(-3.0, -1, 1); got != -1 {
		t.Errorf("expected -1, got %f", got)
	}
	if got := Clamp(0.25, -1, 1); got != 0.25 {
		t.Errorf("expected 0.25, got %f", got)
	}
}

func TestQuat_RotateInverse(t *testing.T) {
	identity := Quat{1, 0, 0, 0}
	g := identity.RotateInverse(Vec3{0, 0, -1})
	if g != (Vec3{0, 0, -1}) {
		t.Errorf("identity rotation changed vector: %v", g)
	}

	// 90 degrees about y: body x axis points down in world.
	half := math.Pi / 4
	q := Quat{math.Cos(half), 0, math.Sin(half), 0}
	g = q.RotateInverse(Vec3{0, 0, -1})
	if math.Abs(g[0]-1) > 1e-9 || math.Abs(g[2]) > 1e-9 {
		t.Errorf("expected gravity along body +x, got %v", g)
	}
}

func TestVectorPool(t *testing.T) {
	pool := NewVectorPool(4)

	v1 := pool.Get()
	if len(v1) != 4 {
		t.Errorf("Pool returned wrong size: %d", len(v1))
	}

	v1[0] = 1.0
	v1[1] = 2.0
	pool.Put(v1)

	v2 := pool.Get()
	if v2[0] != 0 || v2[1] != 0 {
		t.Error("Pool did not reset vector")
	}
}

func TestVectorPool_GetAndCopy(t *testing.T) {
	pool := NewVectorPool(3)
	src := Vector{1, 2, 3}

	c := pool.GetAndCopy(src)
	if !c.Equal(src) {
		t.Errorf("GetAndCopy failed: got %v", c)
	}

	c[0] = 99
	if src[0] == 99 {
		t.Error("GetAndCopy did not create independent copy")
	}
}

func TestTickError(t *testing.T) {
	err := TickError{Time: 1.5, Tick: 150, Message: "test error"}
	expected := "tick 150 (t=1.5000): test error"
	if err.Error() != expected {
		t.Errorf("TickError.Error() = %q, want %q", err.Error(), expected)
	}
}

func TestInferenceError_Unwrap(t *testing.T) {
	cause := errors.New("backend exploded")
	err := fmt.Errorf("tick: %w", &InferenceError{Backend: "mlp", Err: cause})

	var ie *InferenceError
	if !errors.As(err, &ie) {
		t.Fatal("expected InferenceError in chain")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
}
