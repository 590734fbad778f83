// Package loop drives the fixed-decimation control schedule:
//
//	observe -> infer -> apply -> step physics x decimation -> check episode -> notify
//
// One Orchestrator owns one Binding at a time. Ticks never overlap: a
// trigger that arrives while a tick is in flight is dropped and counted.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/policyloop/internal/policy"
	"github.com/san-kum/policyloop/internal/sim"
	"go.uber.org/zap"
)

var (
	// ErrTickDropped is returned by Tick when another tick is in flight.
	ErrTickDropped = errors.New("tick dropped: previous tick still in flight")
	// ErrSuperseded is returned by Tick when the loop was torn down or
	// rebound while inference was running. The result is discarded.
	ErrSuperseded = errors.New("tick superseded by teardown")
	ErrClosed     = errors.New("orchestrator closed")
)

type Options struct {
	// AutoReset resets the scene after a tick that ends the episode.
	AutoReset bool
}

type Orchestrator struct {
	logger *zap.Logger
	opts   Options

	state    atomic.Int32
	inFlight atomic.Bool
	gen      atomic.Uint64
	closed   atomic.Bool

	dropped  atomic.Uint64
	failures atomic.Uint64

	// tickMu serialises a tick against Reset and Rebind.
	tickMu  sync.Mutex
	binding *Binding
	tick    uint64

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	params atomic.Pointer[Snapshot]

	obsMu     sync.RWMutex
	observers map[int]Observer
	nextObsID int
}

// New validates the binding and returns a stopped orchestrator.
func New(b *Binding, logger *zap.Logger, opts Options) (*Orchestrator, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		logger:    logger.Named("loop"),
		opts:      opts,
		binding:   b,
		observers: make(map[int]Observer),
	}
	o.publish(nil)
	o.logger.Info("scene bound",
		zap.String("scene", b.Name),
		zap.Int("obs_dim", b.Observations.Len()),
		zap.Int("action_dim", b.Actions.Dim()),
		zap.Int("decimation", b.Decimation),
		zap.String("scenario", b.Env.Name()),
	)
	return o, nil
}

func (o *Orchestrator) State() State { return State(o.state.Load()) }

func (o *Orchestrator) transition(from []State, to State) error {
	if o.closed.Load() {
		return ErrClosed
	}
	for {
		cur := o.state.Load()
		ok := false
		for _, f := range from {
			if State(cur) == f {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("cannot go from %s to %s", State(cur), to)
		}
		if o.state.CompareAndSwap(cur, int32(to)) {
			o.republishState()
			return nil
		}
	}
}

func (o *Orchestrator) Start() error  { return o.transition([]State{Stopped, Running}, Running) }
func (o *Orchestrator) Pause() error  { return o.transition([]State{Running, Paused}, Paused) }
func (o *Orchestrator) Resume() error { return o.transition([]State{Paused, Running}, Running) }
func (o *Orchestrator) Stop() error {
	return o.transition([]State{Stopped, Running, Paused}, Stopped)
}

// Binding returns the current binding. It must not be mutated.
func (o *Orchestrator) Binding() *Binding {
	o.tickMu.Lock()
	defer o.tickMu.Unlock()
	return o.binding
}

// Subscribe registers an observer and returns a function removing it.
func (o *Orchestrator) Subscribe(obs Observer) func() {
	o.obsMu.Lock()
	id := o.nextObsID
	o.nextObsID++
	o.observers[id] = obs
	o.obsMu.Unlock()

	return func() {
		o.obsMu.Lock()
		delete(o.observers, id)
		o.obsMu.Unlock()
	}
}

// Params returns the last published runtime parameters.
func (o *Orchestrator) Params() Snapshot {
	return *o.params.Load()
}

func (o *Orchestrator) Dropped() uint64           { return o.dropped.Load() }
func (o *Orchestrator) InferenceFailures() uint64 { return o.failures.Load() }

// Tick runs one control step. It is a no-op unless the loop is running.
// Observers are notified before the tick lock is released, so the physics
// handle in the frame cannot be reset under them.
func (o *Orchestrator) Tick(ctx context.Context) error {
	if o.State() != Running {
		return nil
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		o.dropped.Add(1)
		return ErrTickDropped
	}
	defer o.inFlight.Store(false)

	o.tickMu.Lock()
	defer o.tickMu.Unlock()
	// Stop, Rebind or Close may have run while this trigger waited.
	if o.State() != Running || o.closed.Load() {
		return nil
	}

	frame, err := o.step(ctx)
	if err != nil {
		return err
	}

	o.obsMu.RLock()
	for _, obs := range o.observers {
		obs.OnTick(frame)
	}
	o.obsMu.RUnlock()

	if o.opts.AutoReset && frame.Episode.Phase.Terminal() {
		o.resetLocked()
	}
	return nil
}

// step must run with tickMu held.
func (o *Orchestrator) step(ctx context.Context) (Frame, error) {
	gen := o.gen.Load()
	b := o.binding
	dt := b.ControlDt()

	b.Env.BeforeStep(dt)

	sctx := &sim.Context{
		Physics:    b.Physics,
		Commands:   o.snapshotCommands(b),
		LastAction: b.Actions.LastAction(),
		Dt:         dt,
		Tick:       o.tick + 1,
	}
	obs := b.Observations.Build(sctx)

	inferCtx, cancel := context.WithCancel(ctx)
	o.cancelMu.Lock()
	o.cancel = cancel
	o.cancelMu.Unlock()

	start := time.Now()
	act, inferErr := b.Runner.Infer(inferCtx, obs)
	latency := time.Since(start)

	o.cancelMu.Lock()
	o.cancel = nil
	o.cancelMu.Unlock()
	cancel()

	if o.gen.Load() != gen {
		return Frame{}, ErrSuperseded
	}

	if inferErr != nil {
		o.failures.Add(1)
		o.logger.Warn("inference failed, keeping previous commands",
			zap.Uint64("tick", sctx.Tick),
			zap.Error(inferErr),
		)
	} else if _, err := b.Actions.Apply(sctx, act); err != nil {
		o.stopLocked()
		return Frame{}, sim.TickError{Time: b.Physics.Time(), Tick: sctx.Tick, Message: err.Error()}
	}

	for i := 0; i < b.Decimation; i++ {
		b.Physics.Step()
	}
	if !sim.Vector(b.Physics.QPos()).IsValid() || !sim.Vector(b.Physics.QVel()).IsValid() {
		o.stopLocked()
		return Frame{}, sim.TickError{Time: b.Physics.Time(), Tick: sctx.Tick, Message: "physics state is not finite"}
	}

	b.Env.AfterStep(sctx)
	o.tick = sctx.Tick

	frame := Frame{
		Tick:             o.tick,
		Time:             b.Physics.Time(),
		Physics:          b.Physics,
		Observation:      obs,
		Action:           act,
		Commands:         b.Actions.Commands(),
		Episode:          b.Env.Episode(),
		InferenceLatency: latency,
		InferenceErr:     inferErr,
	}
	o.publish(&frame)
	return frame, nil
}

func (o *Orchestrator) snapshotCommands(b *Binding) sim.Commands {
	if b.Commands == nil {
		return sim.Commands{}
	}
	return b.Commands.Snapshot()
}

func (o *Orchestrator) stopLocked() {
	o.state.Store(int32(Stopped))
	o.logger.Error("loop stopped after tick failure", zap.Uint64("tick", o.tick+1))
}

// publish must run with tickMu held.
func (o *Orchestrator) publish(f *Frame) {
	b := o.binding
	s := &Snapshot{
		Scene:             b.Name,
		Tick:              o.tick,
		Time:              b.Physics.Time(),
		State:             o.State(),
		Episode:           b.Env.Episode(),
		Commands:          o.snapshotCommands(b),
		Action:            b.Actions.LastAction(),
		Dropped:           o.dropped.Load(),
		InferenceFailures: o.failures.Load(),
	}
	if f != nil && f.Action != nil {
		s.Action = f.Action.Clone()
	}
	o.params.Store(s)
}

func (o *Orchestrator) republishState() {
	for {
		old := o.params.Load()
		s := *old
		s.State = o.State()
		if o.params.CompareAndSwap(old, &s) {
			return
		}
	}
}

// Reset returns physics, episode, observation history and action filters
// to their post-bind condition. Name lookups are not redone.
func (o *Orchestrator) Reset() {
	o.tickMu.Lock()
	defer o.tickMu.Unlock()
	o.resetLocked()
}

func (o *Orchestrator) resetLocked() {
	b := o.binding
	b.Physics.Reset()
	b.Env.Reset()
	b.Observations.Reset()
	b.Actions.Reset()
	if r, ok := b.Runner.(policy.Resetter); ok {
		r.Reset()
	}
	o.tick = 0
	o.publish(nil)
}

// Rebind stops the loop and swaps in a new scene. An inference still
// running for the old binding is cancelled and its result dropped. The
// old runner is closed.
func (o *Orchestrator) Rebind(b *Binding) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if o.closed.Load() {
		return ErrClosed
	}
	o.supersede()
	o.state.Store(int32(Stopped))

	o.tickMu.Lock()
	defer o.tickMu.Unlock()
	old := o.binding
	o.binding = b
	o.tick = 0
	o.publish(nil)

	if old.Runner != b.Runner {
		if err := old.Runner.Close(); err != nil {
			o.logger.Warn("closing previous runner", zap.Error(err))
		}
	}
	o.logger.Info("scene rebound", zap.String("scene", b.Name))
	return nil
}

func (o *Orchestrator) supersede() {
	o.gen.Add(1)
	o.cancelMu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.cancelMu.Unlock()
}

// Close tears the loop down. Results of an inference in flight are
// discarded, and the runner is closed once that tick has returned.
func (o *Orchestrator) Close() error {
	if !o.closed.CompareAndSwap(false, true) {
		return nil
	}
	o.supersede()
	o.state.Store(int32(Stopped))

	o.tickMu.Lock()
	defer o.tickMu.Unlock()
	o.republishState()
	return o.binding.Runner.Close()
}

// Run triggers a tick every period until ctx is done or a tick fails
// fatally. Each trigger runs on its own goroutine, so a slow tick causes
// the following triggers to be dropped rather than queued.
func (o *Orchestrator) Run(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %s", period)
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	fatal := make(chan error, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-fatal:
			return err
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := o.Tick(ctx)
				if err == nil || errors.Is(err, ErrTickDropped) || errors.Is(err, ErrSuperseded) {
					return
				}
				select {
				case fatal <- err:
				default:
				}
			}()
		}
	}
}
