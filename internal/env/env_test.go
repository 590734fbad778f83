package env

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/policyloop/internal/integrators"
	"github.com/san-kum/policyloop/internal/models"
	"github.com/san-kum/policyloop/internal/physics"
	"github.com/san-kum/policyloop/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newEngine(t *testing.T, sys models.System, qpos ...float64) *physics.Engine {
	t.Helper()
	eng, err := physics.New(sys, integrators.NewRK4(), physics.Options{Timestep: 0.005, InitQPos: qpos})
	require.NoError(t, err)
	return eng
}

func tick(m Manager, ctx *sim.Context) {
	m.BeforeStep(ctx.Dt)
	m.AfterStep(ctx)
}

func TestWarmup(t *testing.T) {
	eng := newEngine(t, models.NewPendulum())
	m, err := New(Config{Type: "noop", WarmupTicks: 2}, nil)
	require.NoError(t, err)
	m.OnSceneLoaded(eng)
	ctx := &sim.Context{Physics: eng, Dt: 0.02}

	assert.Equal(t, Ready, m.Episode().Phase)
	tick(m, ctx)
	assert.Equal(t, Ready, m.Episode().Phase)
	tick(m, ctx)
	assert.Equal(t, Playing, m.Episode().Phase, "playing after exactly warmup ticks")

	ep := m.Episode()
	assert.Equal(t, uint64(2), ep.Ticks)
	assert.InDelta(t, 0.04, ep.Elapsed, 1e-12)
	assert.InDelta(t, 0.04, ep.Metrics["elapsed"], 1e-12)

	m.Reset()
	assert.Equal(t, Ready, m.Episode().Phase)
	tick(m, ctx)
	tick(m, ctx)
	assert.Equal(t, Playing, m.Episode().Phase, "warm-up restarts after reset")
}

func TestNoWarmup(t *testing.T) {
	eng := newEngine(t, models.NewPendulum(), math.Pi/2)
	m, err := New(Config{Type: "fall", Body: "pole", MinHeight: 1.6}, nil)
	require.NoError(t, err)
	m.OnSceneLoaded(eng)

	m.BeforeStep(0.02)
	assert.Equal(t, Playing, m.Episode().Phase)
	m.AfterStep(&sim.Context{Physics: eng, Dt: 0.02})
	assert.Equal(t, Failed, m.Episode().Phase, "first tick is guarded")
}

func TestFallFailsAndStaysTerminal(t *testing.T) {
	eng := newEngine(t, models.NewPendulum(), math.Pi/2)
	m, err := New(Config{Type: "fall", Body: "pole", MinHeight: 1.6}, nil)
	require.NoError(t, err)
	m.OnSceneLoaded(eng)
	ctx := &sim.Context{Physics: eng, Dt: 0.02}

	tick(m, ctx)
	assert.Equal(t, Failed, m.Episode().Phase)
	assert.InDelta(t, 1.5, m.Episode().Metrics["height"], 1e-9)

	eng.SetState([]float64{math.Pi}, []float64{0})
	tick(m, ctx)
	assert.Equal(t, Failed, m.Episode().Phase, "terminal phase holds until reset")

	m.Reset()
	ep := m.Episode()
	assert.Equal(t, Ready, ep.Phase)
	assert.Zero(t, ep.Ticks)
	assert.True(t, ep.GuardsEnabled)
}

func TestGuardsOnlyWhilePlaying(t *testing.T) {
	eng := newEngine(t, models.NewPendulum())
	m, err := New(Config{Type: "fall", Body: "pole", MinHeight: 2, WarmupTicks: 3}, nil)
	require.NoError(t, err)
	m.OnSceneLoaded(eng)
	ctx := &sim.Context{Physics: eng, Dt: 0.02}

	for i := 0; i < 2; i++ {
		tick(m, ctx)
		ep := m.Episode()
		assert.Equal(t, Ready, ep.Phase)
		assert.InDelta(t, 0.5, ep.Metrics["height"], 1e-9, "metrics update during warm-up")
	}
	tick(m, ctx)
	assert.Equal(t, Playing, m.Episode().Phase, "the tick completing warm-up is not guarded")
	tick(m, ctx)
	assert.Equal(t, Failed, m.Episode().Phase)
}

func TestFallSuccessTime(t *testing.T) {
	eng := newEngine(t, models.NewPendulum())
	m, err := New(Config{Type: "fall", Body: "pole", MinHeight: 0.1, SuccessTime: 0.05}, nil)
	require.NoError(t, err)
	m.OnSceneLoaded(eng)
	ctx := &sim.Context{Physics: eng, Dt: 0.02}

	tick(m, ctx)
	tick(m, ctx)
	assert.Equal(t, Playing, m.Episode().Phase)
	tick(m, ctx)
	assert.Equal(t, Success, m.Episode().Phase)
}

func TestReach(t *testing.T) {
	eng := newEngine(t, models.NewAcrobot())
	forearm, _ := eng.BodyIndex("forearm")
	goal := eng.BodyPosition(forearm)

	m, err := New(Config{
		Type: "reach", Body: "forearm", ReferenceBody: "upper_arm",
		Goal: goal[:], Tolerance: 0.05, MaxDistance: 3,
	}, nil)
	require.NoError(t, err)
	m.OnSceneLoaded(eng)

	tick(m, &sim.Context{Physics: eng, Dt: 0.02})
	ep := m.Episode()
	assert.Equal(t, Success, ep.Phase)
	assert.InDelta(t, 0, ep.Metrics["distance"], 1e-12)
	assert.InDelta(t, 1, ep.Metrics["reference_distance"], 1e-9)
}

func TestReachFailureWinsOverSuccess(t *testing.T) {
	eng := newEngine(t, models.NewAcrobot())
	forearm, _ := eng.BodyIndex("forearm")
	goal := eng.BodyPosition(forearm)

	m, err := New(Config{
		Type: "reach", Body: "forearm", ReferenceBody: "upper_arm",
		Goal: goal[:], Tolerance: 0.05, MaxDistance: 0.5,
	}, nil)
	require.NoError(t, err)
	m.OnSceneLoaded(eng)

	tick(m, &sim.Context{Physics: eng, Dt: 0.02})
	assert.Equal(t, Failed, m.Episode().Phase)
}

func TestMissingBodyDisablesGuards(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	eng := newEngine(t, models.NewPendulum(), math.Pi/2)

	m, err := New(Config{Type: "fall", Body: "torso", MinHeight: 10}, zap.New(core))
	require.NoError(t, err)
	m.OnSceneLoaded(eng)
	m.OnSceneLoaded(eng)

	ctx := &sim.Context{Physics: eng, Dt: 0.02}
	for i := 0; i < 5; i++ {
		tick(m, ctx)
	}

	ep := m.Episode()
	assert.False(t, ep.GuardsEnabled)
	assert.Equal(t, Playing, ep.Phase)
	assert.Equal(t, uint64(5), ep.Ticks)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "torso", logs.All()[0].ContextMap()["body"])
}

func TestMissingReferenceBody(t *testing.T) {
	eng := newEngine(t, models.NewAcrobot())
	s, err := newReach(Config{Body: "forearm", ReferenceBody: "base", Goal: []float64{0, 0, 0}, Tolerance: 1})
	require.NoError(t, err)

	var missing *sim.MissingBodyError
	require.True(t, errors.As(s.resolve(eng), &missing))
	assert.Equal(t, "base", missing.Body)
}

func TestNewErrors(t *testing.T) {
	var cfgErr *sim.ConfigurationError

	_, err := New(Config{Type: "teleport"}, nil)
	assert.True(t, errors.As(err, &cfgErr))

	_, err = New(Config{Type: "reach", Goal: []float64{1, 2}, Tolerance: 1}, nil)
	assert.True(t, errors.As(err, &cfgErr))

	_, err = New(Config{Type: "reach", Goal: []float64{1, 2, 3}}, nil)
	assert.True(t, errors.As(err, &cfgErr))

	_, err = New(Config{Type: "noop", WarmupTicks: -1}, nil)
	assert.True(t, errors.As(err, &cfgErr))
}

func TestEpisodeSnapshotIsACopy(t *testing.T) {
	eng := newEngine(t, models.NewPendulum())
	m, err := New(Config{Type: "fall", Body: "pole"}, nil)
	require.NoError(t, err)
	m.OnSceneLoaded(eng)
	tick(m, &sim.Context{Physics: eng, Dt: 0.02})

	ep := m.Episode()
	ep.Metrics["height"] = -100
	assert.NotEqual(t, -100.0, m.Episode().Metrics["height"])
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "playing", Playing.String())
	assert.True(t, Failed.Terminal())
	assert.False(t, Ready.Terminal())
	assert.Equal(t, []string{"fall", "noop", "reach"}, Scenarios())
}
