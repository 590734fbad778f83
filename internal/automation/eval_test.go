package automation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/policyloop/internal/config"
	"github.com/san-kum/policyloop/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func cartpole(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.GetPreset("cartpole", "balance")
	require.NotNil(t, cfg)
	return cfg
}

func TestEvaluateSuccess(t *testing.T) {
	cfg := cartpole(t)
	cfg.Scenario.SuccessTime = 1.0

	report, err := Evaluate(context.Background(), cfg, Options{Episodes: 4, Workers: 2, MaxTicks: 200})
	require.NoError(t, err)

	assert.Equal(t, "cartpole-balance", report.Scene)
	assert.Len(t, report.Episodes, 4)
	assert.Equal(t, 4, report.Successes)
	assert.Equal(t, 1.0, report.SuccessRate())
	for i, ep := range report.Episodes {
		assert.Equal(t, i, ep.Index)
		assert.True(t, ep.Ticks >= 50 && ep.Ticks <= 52, "ticks %d", ep.Ticks)
	}
	assert.Contains(t, report.MetricNames(), "control_effort")
}

func TestEvaluateFailure(t *testing.T) {
	cfg := config.GetPreset("pendulum", "upright")
	require.NotNil(t, cfg)
	cfg.Policy.Backend = "zero"
	cfg.Policy.Gains = nil

	report, err := Evaluate(context.Background(), cfg, Options{Episodes: 2, Workers: 2, MaxTicks: 500})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failures)
	assert.Equal(t, 0.0, report.SuccessRate())
	for _, ep := range report.Episodes {
		assert.Greater(t, ep.Ticks, uint64(25), "guards only run after warmup")
		assert.Less(t, ep.Ticks, uint64(500))
	}
}

func TestEvaluateTimeout(t *testing.T) {
	cfg := cartpole(t)

	report, err := Evaluate(context.Background(), cfg, Options{MaxTicks: 20})
	require.NoError(t, err)
	require.Len(t, report.Episodes, 1)
	assert.Equal(t, 1, report.Timeouts)
	assert.Equal(t, uint64(20), report.Episodes[0].Ticks)
	assert.Equal(t, 20.0, report.MeanTicks)
}

func TestEvaluateStoresRuns(t *testing.T) {
	st := storage.New(t.TempDir())
	require.NoError(t, st.Init())

	report, err := Evaluate(context.Background(), cartpole(t), Options{Episodes: 2, Workers: 2, MaxTicks: 30, Store: st})
	require.NoError(t, err)

	runs, err := st.List()
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	for _, ep := range report.Episodes {
		require.NotEmpty(t, ep.RunID)
		trace, err := st.LoadTrace(ep.RunID)
		require.NoError(t, err)
		assert.Len(t, trace.Rows, int(ep.Ticks))
		meta, err := st.Load(ep.RunID)
		require.NoError(t, err)
		assert.Equal(t, "cartpole", meta.Model)
		assert.Equal(t, "playing", meta.Outcome)
	}
}

func TestEvaluatePerturbIsSeeded(t *testing.T) {
	opts := Options{Episodes: 3, Workers: 3, MaxTicks: 40, Perturb: 0.05, Seed: 7}

	a, err := Evaluate(context.Background(), cartpole(t), opts)
	require.NoError(t, err)
	b, err := Evaluate(context.Background(), cartpole(t), opts)
	require.NoError(t, err)

	for i := range a.Episodes {
		assert.Equal(t, a.Episodes[i].Metrics["control_effort"], b.Episodes[i].Metrics["control_effort"])
	}
	assert.NotEqual(t, a.Episodes[0].Metrics["control_effort"], a.Episodes[1].Metrics["control_effort"])
}

func TestEvaluateBindError(t *testing.T) {
	cfg := cartpole(t)
	cfg.Policy.ObsDim = 3
	cfg.Policy.Gains = [][]float64{{1, 2, 3}}

	_, err := Evaluate(context.Background(), cfg, Options{Episodes: 2})
	assert.Error(t, err)
}

func TestEvaluateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Evaluate(ctx, cartpole(t), Options{Episodes: 2, MaxTicks: 10})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunPlan(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	plan := `
name: smoke
steps:
  - model: cartpole
    preset: balance
    episodes: 2
    max_ticks: 10
  - model: pendulum
    preset: impedance
    max_ticks: 5
`
	require.NoError(t, os.WriteFile(path, []byte(plan), 0644))

	p, err := LoadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, "smoke", p.Name)

	reports, err := RunPlan(context.Background(), p, Options{Workers: 2})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Len(t, reports[0].Episodes, 2)
	assert.Equal(t, "pendulum-impedance", reports[1].Scene)
	assert.Equal(t, uint64(5), reports[1].Episodes[0].Ticks)
}

func TestPlanErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("name: nothing\n"), 0644))
	_, err := LoadPlan(empty)
	assert.Error(t, err)

	_, err = LoadPlan(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = RunPlan(context.Background(), &Plan{Steps: []PlanStep{{Model: "pendulum", Preset: "nope"}}}, Options{})
	assert.Error(t, err)
}
