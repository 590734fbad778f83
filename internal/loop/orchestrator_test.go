package loop

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/policyloop/internal/env"
	"github.com/san-kum/policyloop/internal/sim"
)

var _ = Describe("Orchestrator", func() {
	var (
		runner *scriptedRunner
		b      *Binding
		o      *Orchestrator
		ctx    context.Context
	)

	bind := func(scenario env.Config, decimation int) {
		var err error
		b, _, err = pendulumBinding(runner, scenario, decimation)
		Expect(err).NotTo(HaveOccurred())
		o, err = New(b, nil, Options{})
		Expect(err).NotTo(HaveOccurred())
	}

	engineSteps := func() uint64 {
		return b.Physics.(interface{ Steps() uint64 }).Steps()
	}

	BeforeEach(func() {
		ctx = context.Background()
		runner = newScriptedRunner(2, 1)
		bind(env.Config{Type: "noop"}, 4)
	})

	Describe("state machine", func() {
		It("starts stopped and ignores ticks", func() {
			Expect(o.State()).To(Equal(Stopped))
			Expect(o.Tick(ctx)).To(Succeed())
			Expect(engineSteps()).To(BeZero())
			Expect(runner.Calls()).To(BeZero())
		})

		It("moves through running, paused and stopped", func() {
			Expect(o.Start()).To(Succeed())
			Expect(o.State()).To(Equal(Running))

			Expect(o.Pause()).To(Succeed())
			Expect(o.State()).To(Equal(Paused))
			Expect(o.Tick(ctx)).To(Succeed())
			Expect(engineSteps()).To(BeZero())

			Expect(o.Resume()).To(Succeed())
			Expect(o.Tick(ctx)).To(Succeed())
			Expect(engineSteps()).To(Equal(uint64(4)))

			Expect(o.Stop()).To(Succeed())
			Expect(o.State()).To(Equal(Stopped))
			Expect(o.Params().State).To(Equal(Stopped))
		})

		It("rejects pausing a stopped loop", func() {
			Expect(o.Pause()).NotTo(Succeed())
			Expect(o.Resume()).NotTo(Succeed())
		})
	})

	Describe("ticking", func() {
		BeforeEach(func() {
			Expect(o.Start()).To(Succeed())
		})

		It("runs one inference and decimation physics steps per tick", func() {
			Expect(o.Tick(ctx)).To(Succeed())
			Expect(runner.Calls()).To(Equal(1))
			Expect(engineSteps()).To(Equal(uint64(4)))
			Expect(b.Physics.Time()).To(BeNumerically("~", 0.02, 1e-12))
		})

		It("writes the applied action into the actuator controls", func() {
			runner.set(sim.Vector{1.5}, nil)
			Expect(o.Tick(ctx)).To(Succeed())
			Expect(b.Physics.Ctrl()[0]).To(Equal(1.5))
			Expect(o.Params().Action).To(Equal(sim.Vector{1.5}))
		})

		It("keeps the previous controls when inference fails", func() {
			runner.set(sim.Vector{2}, nil)
			Expect(o.Tick(ctx)).To(Succeed())

			runner.set(nil, errors.New("backend exploded"))
			Expect(o.Tick(ctx)).To(Succeed())

			Expect(b.Physics.Ctrl()[0]).To(Equal(2.0))
			Expect(o.InferenceFailures()).To(Equal(uint64(1)))
			Expect(o.Params().InferenceFailures).To(Equal(uint64(1)))
			Expect(engineSteps()).To(Equal(uint64(8)))
			Expect(o.State()).To(Equal(Running))
		})

		It("publishes runtime parameters and notifies observers once per tick", func() {
			var frames []Frame
			unsubscribe := o.Subscribe(ObserverFunc(func(f Frame) { frames = append(frames, f) }))

			for i := 0; i < 3; i++ {
				Expect(o.Tick(ctx)).To(Succeed())
				Expect(o.Params().Tick).To(Equal(uint64(i + 1)))
			}
			Expect(frames).To(HaveLen(3))
			Expect(frames[2].Tick).To(Equal(uint64(3)))
			Expect(frames[2].Observation).To(HaveLen(2))
			Expect(frames[2].Commands).To(HaveLen(1))
			Expect(frames[2].Episode.Ticks).To(Equal(uint64(3)))

			unsubscribe()
			Expect(o.Tick(ctx)).To(Succeed())
			Expect(frames).To(HaveLen(3))
		})

		It("passes command state to the tick context", func() {
			Expect(b.Commands.Set("velocity_x", 0.7)).To(Succeed())
			Expect(o.Tick(ctx)).To(Succeed())
			Expect(o.Params().Commands).To(HaveKeyWithValue("velocity_x", 0.7))
		})

		It("stops on an action of the wrong shape", func() {
			runner.set(sim.Vector{1, 2}, nil)
			err := o.Tick(ctx)

			var tickErr sim.TickError
			Expect(errors.As(err, &tickErr)).To(BeTrue())
			Expect(tickErr.Tick).To(Equal(uint64(1)))
			Expect(o.State()).To(Equal(Stopped))
			Expect(engineSteps()).To(BeZero())
		})
	})

	Describe("re-entrancy", func() {
		It("drops a trigger while a tick is in flight", func() {
			Expect(o.Start()).To(Succeed())
			runner.block = make(chan struct{})

			done := make(chan error, 1)
			go func() { done <- o.Tick(ctx) }()
			Eventually(runner.started).Should(Receive())

			Expect(o.Tick(ctx)).To(MatchError(ErrTickDropped))
			Expect(o.Dropped()).To(Equal(uint64(1)))

			close(runner.block)
			Eventually(done).Should(Receive(BeNil()))
			Expect(runner.Calls()).To(Equal(1))
			Expect(engineSteps()).To(Equal(uint64(4)))
		})
	})

	Describe("teardown", func() {
		It("discards the result of an inference superseded by Close", func() {
			Expect(o.Start()).To(Succeed())
			runner.set(sim.Vector{3}, nil)
			runner.block = make(chan struct{})

			done := make(chan error, 1)
			go func() { done <- o.Tick(ctx) }()
			Eventually(runner.started).Should(Receive())

			Expect(o.Close()).To(Succeed())
			Eventually(done).Should(Receive(MatchError(ErrSuperseded)))

			Expect(b.Physics.Ctrl()[0]).To(BeZero())
			Expect(engineSteps()).To(BeZero())
			Expect(runner.Closed()).To(BeTrue())
			Expect(o.State()).To(Equal(Stopped))
			Expect(o.Start()).To(MatchError(ErrClosed))
		})

		It("rebinds to a new scene and closes the old runner", func() {
			Expect(o.Start()).To(Succeed())
			Expect(o.Tick(ctx)).To(Succeed())

			next := newScriptedRunner(2, 1)
			nb, _, err := pendulumBinding(next, env.Config{Type: "noop"}, 2)
			Expect(err).NotTo(HaveOccurred())

			Expect(o.Rebind(nb)).To(Succeed())
			Expect(runner.Closed()).To(BeTrue())
			Expect(o.State()).To(Equal(Stopped))
			Expect(o.Params().Tick).To(BeZero())

			Expect(o.Start()).To(Succeed())
			Expect(o.Tick(ctx)).To(Succeed())
			Expect(next.Calls()).To(Equal(1))
			Expect(nb.Physics.(interface{ Steps() uint64 }).Steps()).To(Equal(uint64(2)))
		})
	})

	Describe("reset", func() {
		It("returns to the post-bind condition", func() {
			Expect(o.Start()).To(Succeed())
			runner.set(sim.Vector{1}, nil)
			for i := 0; i < 5; i++ {
				Expect(o.Tick(ctx)).To(Succeed())
			}

			o.Reset()

			Expect(b.Physics.Time()).To(BeZero())
			Expect(b.Physics.QPos()[0]).To(Equal(0.3))
			Expect(b.Env.Episode().Ticks).To(BeZero())
			Expect(b.Actions.LastAction()).To(Equal(sim.Vector{0}))
			Expect(o.Params().Tick).To(BeZero())
			Expect(o.State()).To(Equal(Running))
		})

		It("resets automatically at the end of an episode when asked", func() {
			var err error
			b, _, err = pendulumBinding(runner, env.Config{Type: "fall", Body: "pole", MinHeight: 10}, 1)
			Expect(err).NotTo(HaveOccurred())
			o, err = New(b, nil, Options{AutoReset: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(o.Start()).To(Succeed())

			var last Frame
			o.Subscribe(ObserverFunc(func(f Frame) { last = f }))
			Expect(o.Tick(ctx)).To(Succeed())

			Expect(last.Episode.Phase).To(Equal(env.Failed))
			Expect(b.Env.Episode().Phase).To(Equal(env.Ready))
			Expect(b.Physics.Time()).To(BeZero())
		})
	})

	Describe("binding", func() {
		It("refuses a binding whose dimensions disagree with the policy", func() {
			bad := newScriptedRunner(3, 1)
			nb, _, err := pendulumBinding(bad, env.Config{Type: "noop"}, 4)
			Expect(err).NotTo(HaveOccurred())

			lo, err := New(nb, nil, Options{})
			Expect(lo).To(BeNil())
			var dimErr *sim.DimensionMismatchError
			Expect(errors.As(err, &dimErr)).To(BeTrue())
		})

		It("refuses decimation below one", func() {
			b.Decimation = 0
			Expect(b.Validate()).NotTo(Succeed())
		})
	})

	Describe("Run", func() {
		It("ticks on a period until the context ends", func() {
			Expect(o.Start()).To(Succeed())
			runCtx, cancel := context.WithTimeout(ctx, 60*time.Millisecond)
			defer cancel()

			Expect(o.Run(runCtx, 2*time.Millisecond)).To(Succeed())
			Expect(o.Params().Tick).To(BeNumerically(">", 0))
		})

		It("rejects a non-positive period", func() {
			Expect(o.Run(ctx, 0)).NotTo(Succeed())
		})
	})
})
