package loop

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/san-kum/policyloop/internal/env"
	"github.com/san-kum/policyloop/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestRunDropsTriggersDuringSlowTicks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	runner := newScriptedRunner(2, 1)
	runner.block = make(chan struct{})
	b, _, err := pendulumBinding(runner, env.Config{Type: "noop"}, 1)
	require.NoError(t, err)
	o, err := New(b, nil, Options{})
	require.NoError(t, err)
	require.NoError(t, o.Start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, time.Millisecond) }()

	<-runner.started
	time.Sleep(20 * time.Millisecond)
	close(runner.block)
	cancel()
	require.NoError(t, <-done)

	assert.Greater(t, o.Dropped(), uint64(0))
	require.NoError(t, o.Close())
}

func TestTickNonFiniteStateStops(t *testing.T) {
	runner := newScriptedRunner(2, 1)
	b, _, err := pendulumBinding(runner, env.Config{Type: "noop"}, 1)
	require.NoError(t, err)
	o, err := New(b, nil, Options{})
	require.NoError(t, err)
	require.NoError(t, o.Start())

	runner.set(sim.Vector{math.Inf(1)}, nil)
	err = o.Tick(context.Background())

	require.Error(t, err)
	var tickErr sim.TickError
	assert.ErrorAs(t, err, &tickErr)
	assert.Equal(t, Stopped, o.State())
}

func TestTickWaitingOnLockHonoursTeardown(t *testing.T) {
	tests := []struct {
		name     string
		teardown func(t *testing.T, o *Orchestrator)
	}{
		{"stop", func(t *testing.T, o *Orchestrator) { require.NoError(t, o.Stop()) }},
		{"pause", func(t *testing.T, o *Orchestrator) { require.NoError(t, o.Pause()) }},
		{"close", func(t *testing.T, o *Orchestrator) {
			go o.Close()
			require.Eventually(t, o.closed.Load, time.Second, time.Millisecond)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newScriptedRunner(2, 1)
			b, eng, err := pendulumBinding(runner, env.Config{Type: "noop"}, 1)
			require.NoError(t, err)
			o, err := New(b, nil, Options{})
			require.NoError(t, err)
			require.NoError(t, o.Start())

			o.tickMu.Lock()
			done := make(chan error, 1)
			go func() { done <- o.Tick(context.Background()) }()
			require.Eventually(t, o.inFlight.Load, time.Second, time.Millisecond)

			tt.teardown(t, o)
			o.tickMu.Unlock()

			require.NoError(t, <-done)
			assert.Equal(t, 0, runner.Calls())
			assert.Zero(t, eng.Time())
			assert.Equal(t, uint64(0), o.Params().Tick)
			o.Close()
		})
	}
}

func TestTickWaitingOnLockSkipsRebind(t *testing.T) {
	oldRunner := newScriptedRunner(2, 1)
	b, _, err := pendulumBinding(oldRunner, env.Config{Type: "noop"}, 1)
	require.NoError(t, err)
	o, err := New(b, nil, Options{})
	require.NoError(t, err)
	require.NoError(t, o.Start())

	newRunner := newScriptedRunner(2, 1)
	nb, neng, err := pendulumBinding(newRunner, env.Config{Type: "noop"}, 1)
	require.NoError(t, err)

	o.tickMu.Lock()
	done := make(chan error, 1)
	go func() { done <- o.Tick(context.Background()) }()
	require.Eventually(t, o.inFlight.Load, time.Second, time.Millisecond)
	rebound := make(chan error, 1)
	go func() { rebound <- o.Rebind(nb) }()
	require.Eventually(t, func() bool { return o.State() == Stopped }, time.Second, time.Millisecond)
	o.tickMu.Unlock()

	require.NoError(t, <-rebound)
	require.NoError(t, <-done)
	assert.Equal(t, 0, oldRunner.Calls())
	assert.Equal(t, 0, newRunner.Calls())
	assert.Zero(t, neng.Time())
	require.NoError(t, o.Close())
}

func TestObserversReadPhysicsWhileResetting(t *testing.T) {
	runner := newScriptedRunner(2, 1)
	b, _, err := pendulumBinding(runner, env.Config{Type: "noop"}, 2)
	require.NoError(t, err)
	o, err := New(b, nil, Options{})
	require.NoError(t, err)
	require.NoError(t, o.Start())

	var sum float64
	o.Subscribe(ObserverFunc(func(f Frame) {
		for _, q := range f.Physics.QPos() {
			sum += q
		}
		for _, qd := range f.Physics.QVel() {
			sum += qd
		}
	}))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			err := o.Tick(context.Background())
			if err != nil && err != ErrTickDropped {
				t.Errorf("unexpected tick error: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			o.Reset()
		}
	}()
	wg.Wait()

	assert.False(t, math.IsNaN(sum))
	assert.Equal(t, Running, o.State())
	require.NoError(t, o.Close())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "paused", Paused.String())
	assert.Equal(t, "stopped", Stopped.String())
}
