package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/san-kum/policyloop/internal/automation"
	"github.com/san-kum/policyloop/internal/scene"
	"github.com/san-kum/policyloop/internal/storage"
	"github.com/spf13/cobra"
)

func runEval(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := automation.Options{
		Episodes: episodes,
		MaxTicks: ticks,
		Workers:  workers,
		Seed:     seed,
		Perturb:  perturb,
		Registry: scene.NewRegistry(),
		Logger:   logger,
	}
	if opts.Workers < 1 {
		opts.Workers = settings.Eval.Workers
	}
	if saveRuns {
		st := storage.New(settings.DataDir)
		if err := st.Init(); err != nil {
			return err
		}
		opts.Store = st
	}

	if planFile != "" {
		plan, err := automation.LoadPlan(planFile)
		if err != nil {
			return err
		}
		fmt.Printf("plan: %s (%d steps)\n", plan.Name, len(plan.Steps))
		reports, err := automation.RunPlan(ctx, plan, opts)
		for _, r := range reports {
			printReport(r)
		}
		return err
	}

	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	report, err := automation.Evaluate(ctx, cfg, opts)
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

func runTune(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(params))
	ranges := make([][]float64, 0, len(params))
	for _, p := range params {
		name, vals, err := automation.ParseRange(p)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}
	g, err := automation.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	opts := automation.Options{
		Episodes: episodes,
		MaxTicks: ticks,
		Workers:  workers,
		Seed:     seed,
		Perturb:  perturb,
		Logger:   logger,
	}
	if opts.Workers < 1 {
		opts.Workers = settings.Eval.Workers
	}

	res, err := g.Search(ctx, cfg, opts, metric)
	if err != nil {
		return err
	}
	fmt.Printf("scene: %s, %d candidates\n", cfg.Name, res.Tried)
	fmt.Printf("best %s: %.4f\n", metric, res.Score)
	for _, name := range names {
		fmt.Printf("  %s = %g\n", name, res.Params[name])
	}
	return nil
}

func printReport(r *automation.Report) {
	fmt.Printf("\nscene: %s\n", r.Scene)
	fmt.Printf("episodes: %d  success: %d  failed: %d  timeout: %d  (%.0f%% success)\n",
		len(r.Episodes), r.Successes, r.Failures, r.Timeouts, 100*r.SuccessRate())
	fmt.Printf("mean ticks: %.1f\n", r.MeanTicks)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tMEAN")
	for _, name := range r.MetricNames() {
		fmt.Fprintf(w, "%s\t%.4f\n", name, r.Metrics[name])
	}
	w.Flush()

	if len(r.Episodes) > 0 && r.Episodes[0].RunID != "" {
		fmt.Println("stored runs:")
		for _, ep := range r.Episodes {
			fmt.Printf("  %d %s %s\n", ep.Index, ep.Phase, ep.RunID)
		}
	}
}
