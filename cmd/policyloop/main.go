package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/san-kum/policyloop/internal/config"
	"github.com/san-kum/policyloop/internal/observability"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	settingsFile string
	dataDir      string
	logLevel     string

	configFile string
	preset     string
	policyPath string
	asyncInfer bool
	decimation int
	timestep   float64
	integrator string

	ticks    int
	realtime bool
	noSave   bool
	period   float64
	start    bool

	episodes int
	workers  int
	perturb  float64
	seed     int64
	planFile string
	saveRuns bool

	columns []string
	outFile string

	params []string
	metric string
	peaks  int

	settings *config.Settings
	logger   *zap.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "policyloop",
		Short:         "closed-loop policy runner for simulated robots",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "settings file (default ./policyloop.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run a scene headless and record it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScene,
	}
	sceneFlags(runCmd)
	runCmd.Flags().IntVar(&ticks, "ticks", 0, "control ticks to run (default: scene max_ticks or 1000)")
	runCmd.Flags().BoolVar(&realtime, "realtime", false, "trigger ticks from the settings tick rate")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "run a scene in the terminal viewer",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	sceneFlags(liveCmd)
	liveCmd.Flags().Float64Var(&period, "period", 0, "seconds between ticks (default: control dt)")

	serveCmd := &cobra.Command{
		Use:   "serve [model]",
		Short: "run a scene and serve params, commands and frames over HTTP",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runServe,
	}
	sceneFlags(serveCmd)
	serveCmd.Flags().BoolVar(&start, "start", true, "start the loop immediately")

	evalCmd := &cobra.Command{
		Use:   "eval [model]",
		Short: "evaluate a policy over many headless episodes",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEval,
	}
	sceneFlags(evalCmd)
	evalCmd.Flags().IntVar(&episodes, "episodes", 0, "episodes to run (default: scene episodes or 1)")
	evalCmd.Flags().IntVar(&ticks, "max-ticks", 0, "tick limit per episode")
	evalCmd.Flags().IntVar(&workers, "workers", 0, "parallel episodes (default: settings eval.workers)")
	evalCmd.Flags().Float64Var(&perturb, "perturb", 0, "initial joint position noise")
	evalCmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	evalCmd.Flags().StringVar(&planFile, "plan", "", "evaluation plan file (yaml)")
	evalCmd.Flags().BoolVar(&saveRuns, "save", false, "store every episode")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&columns, "column", nil, "columns to plot (default: joint positions and controls)")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	tuneCmd := &cobra.Command{
		Use:   "tune [model]",
		Short: "grid-search policy parameters against an episode metric",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTune,
	}
	sceneFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&params, "param", nil, "parameter values, e.g. gain.0.0=10,20,30 (repeatable)")
	tuneCmd.Flags().StringVar(&metric, "metric", "control_effort", "metric to minimise")
	tuneCmd.Flags().IntVar(&episodes, "episodes", 0, "episodes per candidate")
	tuneCmd.Flags().IntVar(&ticks, "max-ticks", 0, "tick limit per episode")
	tuneCmd.Flags().IntVar(&workers, "workers", 0, "parallel episodes")
	tuneCmd.Flags().Float64Var(&perturb, "perturb", 0, "initial joint position noise")
	tuneCmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	_ = tuneCmd.MarkFlagRequired("param")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringSliceVar(&columns, "column", nil, "columns to analyse (default: joint positions)")
	analyzeCmd.Flags().IntVar(&peaks, "peaks", 3, "peaks to report per column")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list scene presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	rootCmd.AddCommand(runCmd, liveCmd, serveCmd, evalCmd, tuneCmd, listCmd, plotCmd, analyzeCmd, exportCmd, presetsCmd)

	err := rootCmd.Execute()
	if logger != nil {
		if err != nil {
			logger.Error("command failed", zap.Error(err))
		}
		observability.Sync()
	} else if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	if err != nil {
		os.Exit(1)
	}
}

func sceneFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "scene config file (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "scene preset for the model")
	cmd.Flags().StringVar(&policyPath, "policy", "", "MLP policy file (json)")
	cmd.Flags().BoolVar(&asyncInfer, "async", false, "run inference on a worker goroutine")
	cmd.Flags().IntVar(&decimation, "decimation", 0, "physics steps per control tick")
	cmd.Flags().Float64Var(&timestep, "timestep", 0, "physics timestep")
	cmd.Flags().StringVar(&integrator, "integrator", "", "integrator")
}

// setup loads .env, settings and the logger before any command runs.
func setup(cmd *cobra.Command) error {
	_ = godotenv.Load()

	v, err := config.NewViper(settingsFile)
	if err != nil {
		return err
	}
	if err := v.BindPFlag("data_dir", cmd.Flags().Lookup("data")); err != nil {
		return err
	}
	if err := v.BindPFlag("logger.level", cmd.Flags().Lookup("log-level")); err != nil {
		return err
	}

	settings, err = config.LoadSettings(v)
	if err != nil {
		return err
	}

	observability.InitializeLogger(settings.Logger)
	logger = observability.GetLogger()
	return nil
}
