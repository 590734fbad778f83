package main

import (
	"fmt"

	"github.com/san-kum/policyloop/internal/config"
	"github.com/san-kum/policyloop/internal/loop"
	"github.com/san-kum/policyloop/internal/scene"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// resolveConfig picks the scene config from --config, or from the model
// argument and --preset, then applies flag overrides.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	case len(args) == 0:
		cfg = config.DefaultConfig()
	default:
		model := args[0]
		name := preset
		if name == "" {
			names := config.ListPresets(model)
			if len(names) == 0 {
				return nil, fmt.Errorf("unknown model: %s (available: %v)", model, config.ListModels())
			}
			name = names[0]
		}
		cfg = config.GetPreset(model, name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets(model))
		}
	}

	if policyPath != "" {
		cfg.Policy.Backend = "mlp"
		cfg.Policy.Path = policyPath
	}
	if cmd.Flags().Changed("async") {
		cfg.Policy.Async = asyncInfer
	}
	if cmd.Flags().Changed("decimation") {
		cfg.Decimation = decimation
	}
	if cmd.Flags().Changed("timestep") {
		cfg.Timestep = timestep
	}
	if cmd.Flags().Changed("integrator") {
		cfg.Integrator = integrator
	}
	return cfg, cfg.Validate()
}

func loadOrchestrator(cmd *cobra.Command, args []string, opts loop.Options) (*loop.Orchestrator, *config.Config, error) {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return nil, nil, err
	}
	b, s, err := scene.NewRegistry().Load(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	o, err := loop.New(b, logger, opts)
	if err != nil {
		s.Runner.Close()
		return nil, nil, err
	}
	logger.Info("scene loaded",
		zap.String("scene", cfg.Name),
		zap.String("model", cfg.Model),
		zap.String("policy", cfg.Policy.Backend),
		zap.Int("obs_dim", b.Observations.Len()),
		zap.Int("action_dim", b.Actions.Dim()),
		zap.Float64("control_dt", b.ControlDt()),
	)
	return o, cfg, nil
}
