package policy

import (
	"context"
	"errors"
	"sync"

	"github.com/san-kum/policyloop/internal/sim"
)

var ErrClosed = errors.New("policy runner closed")

type request struct {
	ctx   context.Context
	obs   sim.Vector
	reply chan result
}

type result struct {
	out sim.Vector
	err error
}

// Async runs a backend on its own goroutine. Infer blocks the caller until
// the worker answers or ctx is done; an answer nobody waits for anymore is
// dropped.
type Async struct {
	inner Runner
	reqs  chan request
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func NewAsync(inner Runner) *Async {
	a := &Async{
		inner: inner,
		reqs:  make(chan request),
		done:  make(chan struct{}),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for {
		select {
		case <-a.done:
			return
		case req := <-a.reqs:
			if err := req.ctx.Err(); err != nil {
				req.reply <- result{err: err}
				continue
			}
			out, err := a.inner.Infer(req.ctx, req.obs)
			req.reply <- result{out: out, err: err}
		}
	}
}

func (a *Async) backend() string { return a.inner.Metadata().Backend }

func (a *Async) Infer(ctx context.Context, obs sim.Vector) (sim.Vector, error) {
	req := request{ctx: ctx, obs: obs.Clone(), reply: make(chan result, 1)}

	select {
	case a.reqs <- req:
	case <-ctx.Done():
		return nil, &sim.InferenceError{Backend: a.backend(), Err: ctx.Err()}
	case <-a.done:
		return nil, &sim.InferenceError{Backend: a.backend(), Err: ErrClosed}
	}

	select {
	case r := <-req.reply:
		if r.err != nil {
			var infErr *sim.InferenceError
			if !errors.As(r.err, &infErr) {
				r.err = &sim.InferenceError{Backend: a.backend(), Err: r.err}
			}
		}
		return r.out, r.err
	case <-ctx.Done():
		return nil, &sim.InferenceError{Backend: a.backend(), Err: ctx.Err()}
	}
}

func (a *Async) Metadata() Metadata { return a.inner.Metadata() }

// Reset forwards to the wrapped runner when it keeps state.
func (a *Async) Reset() {
	if r, ok := a.inner.(Resetter); ok {
		r.Reset()
	}
}

// Close stops the worker and closes the wrapped backend. It waits for an
// in-flight Infer to return.
func (a *Async) Close() error {
	var err error
	a.once.Do(func() {
		close(a.done)
		a.wg.Wait()
		err = a.inner.Close()
	})
	return err
}
