package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/san-kum/policyloop/internal/automation"
	"github.com/san-kum/policyloop/internal/loop"
	"github.com/san-kum/policyloop/internal/metrics"
	"github.com/san-kum/policyloop/internal/server"
	"github.com/san-kum/policyloop/internal/storage"
	"github.com/san-kum/policyloop/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func runScene(cmd *cobra.Command, args []string) error {
	o, cfg, err := loadOrchestrator(cmd, args, loop.Options{})
	if err != nil {
		return err
	}
	defer o.Close()

	limit := ticks
	if limit < 1 {
		limit = cfg.MaxTicks
	}
	if limit < 1 {
		limit = automation.DefaultMaxTicks
	}

	set := metrics.Default()
	rec := storage.NewRecorder(1)
	o.Subscribe(set)
	o.Subscribe(rec)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := o.Start(); err != nil {
		return err
	}
	if realtime {
		err = runRealtime(ctx, o, uint64(limit))
	} else {
		err = runFast(ctx, o, limit)
	}
	if err != nil {
		return err
	}

	p := o.Params()
	fmt.Printf("scene: %s\n", cfg.Name)
	fmt.Printf("ticks: %d (%.2fs simulated)\n", p.Tick, p.Time)
	fmt.Printf("outcome: %s\n", p.Episode.Phase)
	if p.Dropped > 0 || p.InferenceFailures > 0 {
		fmt.Printf("dropped: %d, inference failures: %d\n", p.Dropped, p.InferenceFailures)
	}
	values := set.Values()
	for _, name := range set.Names() {
		fmt.Printf("  %-20s %.4f\n", name, values[name])
	}

	if noSave {
		return nil
	}
	st := storage.New(settings.DataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(storage.RunMetadata{
		Scene:      cfg.Name,
		Model:      cfg.Model,
		Timestep:   cfg.Timestep,
		Decimation: cfg.Decimation,
		Ticks:      p.Tick,
		Integrator: cfg.Integrator,
		Policy:     cfg.Policy.Backend,
		Scenario:   cfg.Scenario.Type,
		Outcome:    p.Episode.Phase.String(),
		Metrics:    values,
	}, rec.Trace())
	if err != nil {
		return err
	}
	fmt.Printf("saved: %s\n", runID)
	return nil
}

func runFast(ctx context.Context, o *loop.Orchestrator, limit int) error {
	for i := 0; i < limit; i++ {
		if ctx.Err() != nil {
			return nil
		}
		if err := o.Tick(ctx); err != nil {
			return err
		}
		if o.Params().Episode.Phase.Terminal() {
			return nil
		}
	}
	return nil
}

// runRealtime lets Run trigger ticks on the settings tick rate and stops it
// once the episode ends or the tick limit is reached.
func runRealtime(ctx context.Context, o *loop.Orchestrator, limit uint64) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	unsubscribe := o.Subscribe(loop.ObserverFunc(func(f loop.Frame) {
		if f.Tick >= limit || f.Episode.Phase.Terminal() {
			select {
			case <-done:
			default:
				close(done)
			}
		}
	}))
	defer unsubscribe()

	go func() {
		select {
		case <-done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return o.Run(ctx, settings.TickRate)
}

func runLive(cmd *cobra.Command, args []string) error {
	o, _, err := loadOrchestrator(cmd, args, loop.Options{AutoReset: true})
	if err != nil {
		return err
	}
	defer o.Close()

	return tui.Run(o, tui.Options{Period: time.Duration(period * float64(time.Second))})
}

func runServe(cmd *cobra.Command, args []string) error {
	o, _, err := loadOrchestrator(cmd, args, loop.Options{AutoReset: true})
	if err != nil {
		return err
	}
	defer o.Close()

	srv := server.New(o, settings.Server, logger)
	if start {
		if err := o.Start(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return o.Run(gctx, settings.TickRate)
	})
	g.Go(func() error {
		return srv.Listen(settings.Server.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", zap.Error(context.Cause(gctx)))
		return srv.Shutdown()
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
