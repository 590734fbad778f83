package automation

import (
	"context"
	"fmt"
	"os"

	"github.com/san-kum/policyloop/internal/config"
	"gopkg.in/yaml.v3"
)

// Plan is a scripted batch of evaluations.
type Plan struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Steps       []PlanStep `yaml:"steps"`
}

// PlanStep names a scene either by preset or by config file.
type PlanStep struct {
	Model    string  `yaml:"model,omitempty"`
	Preset   string  `yaml:"preset,omitempty"`
	Config   string  `yaml:"config,omitempty"`
	Episodes int     `yaml:"episodes"`
	MaxTicks int     `yaml:"max_ticks"`
	Perturb  float64 `yaml:"perturb"`
	Seed     int64   `yaml:"seed"`
}

func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, err
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("plan %s has no steps", path)
	}
	return &plan, nil
}

func (s PlanStep) Resolve() (*config.Config, error) {
	if s.Config != "" {
		return config.Load(s.Config)
	}
	cfg := config.GetPreset(s.Model, s.Preset)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset: %s/%s", s.Model, s.Preset)
	}
	return cfg, nil
}

// RunPlan evaluates every step in order. base supplies the worker count,
// registry, store and logger shared by all steps.
func RunPlan(ctx context.Context, plan *Plan, base Options) ([]*Report, error) {
	reports := make([]*Report, 0, len(plan.Steps))
	for i, step := range plan.Steps {
		cfg, err := step.Resolve()
		if err != nil {
			return reports, fmt.Errorf("step %d: %w", i+1, err)
		}
		opts := base
		opts.Episodes = step.Episodes
		opts.MaxTicks = step.MaxTicks
		opts.Perturb = step.Perturb
		opts.Seed = step.Seed

		report, err := Evaluate(ctx, cfg, opts)
		if err != nil {
			return reports, fmt.Errorf("step %d: %w", i+1, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}
