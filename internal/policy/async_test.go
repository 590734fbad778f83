package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/san-kum/policyloop/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gated blocks every Infer until release is closed.
type gated struct {
	started chan struct{}
	release chan struct{}
	closed  bool
}

func newGated() *gated {
	return &gated{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (g *gated) Infer(ctx context.Context, obs sim.Vector) (sim.Vector, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
		return sim.Vector{obs[0] * 2}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gated) Metadata() Metadata { return Metadata{Backend: "gated", ObsDim: 1, ActionDim: 1} }

func (g *gated) Close() error {
	g.closed = true
	return nil
}

func TestAsyncInfer(t *testing.T) {
	lin, err := NewLinear([][]float64{{-1}}, nil, []string{"hinge"})
	require.NoError(t, err)
	a := NewAsync(lin)
	defer a.Close()

	u, err := a.Infer(context.Background(), sim.Vector{3})
	require.NoError(t, err)
	assert.Equal(t, sim.Vector{3}, u)
	assert.Equal(t, lin.Metadata(), a.Metadata())
}

func TestAsyncWrapsBackendErrors(t *testing.T) {
	lin, err := NewLinear([][]float64{{-1}}, nil, nil)
	require.NoError(t, err)
	a := NewAsync(lin)
	defer a.Close()

	_, err = a.Infer(context.Background(), sim.Vector{1, 2})
	var infErr *sim.InferenceError
	assert.True(t, errors.As(err, &infErr))
}

func TestAsyncCancelDiscardsResult(t *testing.T) {
	g := newGated()
	a := NewAsync(g)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := a.Infer(ctx, sim.Vector{1})
		errc <- err
	}()

	<-g.started
	cancel()

	select {
	case err := <-errc:
		var infErr *sim.InferenceError
		require.True(t, errors.As(err, &infErr))
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Infer did not return after cancel")
	}

	require.NoError(t, a.Close())
	assert.True(t, g.closed)
}

func TestAsyncAfterClose(t *testing.T) {
	a := NewAsync(NewZero(1, 1, nil))
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	_, err := a.Infer(context.Background(), sim.Vector{0})
	assert.ErrorIs(t, err, ErrClosed)
}
