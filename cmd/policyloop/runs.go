package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/policyloop/internal/analysis"
	"github.com/san-kum/policyloop/internal/config"
	"github.com/san-kum/policyloop/internal/storage"
	"github.com/spf13/cobra"
)

const maxPlots = 6

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(settings.DataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tTIME\tTICKS\tDT\tPOLICY\tOUTCOME")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4fs\t%s\t%s\n",
			run.ID,
			run.Scene,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Ticks,
			run.Timestep*float64(run.Decimation),
			run.Policy,
			run.Outcome,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(settings.DataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	trace, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}
	if len(trace.Rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s (%s)\n", meta.Scene, meta.Outcome)
	fmt.Printf("samples: %d\n\n", len(trace.Rows))

	selected := columns
	if len(selected) == 0 {
		for _, c := range trace.Columns {
			if strings.HasPrefix(c, "q:") || strings.HasPrefix(c, "u:") {
				selected = append(selected, c)
			}
		}
	}
	if len(selected) > maxPlots {
		selected = selected[:maxPlots]
	}

	for _, name := range selected {
		data := trace.Column(name)
		if data == nil {
			return fmt.Errorf("unknown column %q (available: %v)", name, trace.Columns)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(name),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st := storage.New(settings.DataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	trace, err := st.LoadTrace(args[0])
	if err != nil {
		return err
	}
	dt := meta.Timestep * float64(meta.Decimation)
	if dt <= 0 {
		return fmt.Errorf("run %s has no control dt", meta.ID)
	}

	selected := columns
	if len(selected) == 0 {
		for _, c := range trace.Columns {
			if strings.HasPrefix(c, "q:") {
				selected = append(selected, c)
			}
		}
	}

	fmt.Printf("run: %s (%d samples at %.1f Hz)\n", meta.ID, len(trace.Rows), 1/dt)
	for _, name := range selected {
		data := trace.Column(name)
		if data == nil {
			return fmt.Errorf("unknown column %q (available: %v)", name, trace.Columns)
		}
		s, err := analysis.Compute(data, 1/dt)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Printf("\n%s\n", name)
		for _, p := range s.Peaks(peaks) {
			fmt.Printf("  %8.3f Hz  amplitude %.4f\n", p.Freq, p.Amplitude)
		}
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(settings.DataDir)
	if outFile == "" {
		return st.ExportJSON(os.Stdout, args[0])
	}
	if err := st.ExportJSONFile(outFile, args[0]); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outFile)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	models := config.ListModels()
	if len(args) > 0 {
		models = args[:1]
	}
	for _, model := range models {
		presets := config.ListPresets(model)
		if len(presets) == 0 {
			fmt.Printf("no presets for model: %s\n", model)
			continue
		}
		fmt.Printf("presets for %s:\n", model)
		for _, p := range presets {
			cfg := config.GetPreset(model, p)
			fmt.Printf("  %-12s %s, %s policy, %s actions, %s scenario\n",
				p, cfg.Name, cfg.Policy.Backend, cfg.Action.Mode, cfg.Scenario.Type)
		}
	}
	return nil
}
