package config

import (
	"math"
	"sort"
)

var Presets = map[string]map[string]*Config{
	"pendulum": {
		"upright": DefaultConfig(),
		"impedance": {
			Name: "pendulum-impedance", Model: "pendulum", Integrator: "rk4",
			Timestep: DefaultTimestep, Decimation: DefaultDecimation,
			Initial: InitialConfig{QPos: []float64{1.0}},
			Policy: PolicyConfig{
				Backend: "linear", ObsDim: 2, ActionDim: 1, JointNames: []string{"hinge"},
				Gains: [][]float64{{0, 0}}, Bias: []float64{0.5},
			},
			Observations: []ObservationEntry{
				{Name: "joint_pos", History: 1},
				{Name: "joint_vel", History: 1},
			},
			Action: ActionConfig{
				Mode: "impedance", Scale: 1.0, DefaultPos: []float64{0},
				Stiffness: []float64{40}, Damping: []float64{4}, TorqueLimits: []float64{20},
			},
			Scenario: ScenarioConfig{Type: "noop", WarmupTicks: DefaultWarmupTicks},
		},
		"pid": {
			Name: "pendulum-pid", Model: "pendulum", Integrator: "rk4",
			Timestep: DefaultTimestep, Decimation: DefaultDecimation,
			Initial: InitialConfig{QPos: []float64{math.Pi - 0.2}},
			Policy: PolicyConfig{
				Backend: "pid", ObsDim: 2, ActionDim: 1, JointNames: []string{"hinge"},
				Gains: [][]float64{{31.62, 2.0, 10.0}},
			},
			Observations: []ObservationEntry{
				{Name: "joint_pos", History: 1},
				{Name: "joint_vel", History: 1},
			},
			Action: ActionConfig{
				Mode: "torque", Scale: 1.0, DefaultPos: []float64{math.Pi}, TorqueLimits: []float64{15},
			},
			Scenario: ScenarioConfig{Type: "fall", WarmupTicks: DefaultWarmupTicks, Body: "pole", MinHeight: 1.5},
		},
		"free": {
			Name: "pendulum-free", Model: "pendulum", Integrator: "rk4",
			Timestep: DefaultTimestep, Decimation: DefaultDecimation,
			Initial: InitialConfig{QPos: []float64{2.5}},
			Policy: PolicyConfig{
				Backend: "zero", ObsDim: 15, ActionDim: 1, JointNames: []string{"hinge"},
			},
			Observations: []ObservationEntry{
				{Name: "projected_gravity", History: 1, Body: "pole"},
				{Name: "base_ang_vel", History: 1, Body: "pole"},
				{Name: "base_height", History: 1, Body: "pole"},
				{Name: "joint_pos", History: 3},
				{Name: "joint_vel", History: 3},
				{Name: "last_action", History: 2},
			},
			Action:   ActionConfig{Mode: "passive", Scale: 1.0},
			Scenario: ScenarioConfig{Type: "noop", WarmupTicks: DefaultWarmupTicks},
		},
	},
	"cartpole": {
		"balance": {
			Name: "cartpole-balance", Model: "cartpole", Integrator: "rk4",
			Timestep: DefaultTimestep, Decimation: DefaultDecimation,
			Initial: InitialConfig{QPos: []float64{0, 0.1}},
			Policy: PolicyConfig{
				Backend: "linear", ObsDim: 4, ActionDim: 1, JointNames: []string{"slider"},
				Gains: [][]float64{{-1, -30, -2, -7}},
			},
			Observations: []ObservationEntry{
				{Name: "joint_pos", History: 1},
				{Name: "joint_vel", History: 1},
			},
			Action: ActionConfig{Mode: "torque", Scale: 1.0, TorqueLimits: []float64{20}},
			Scenario: ScenarioConfig{
				Type: "fall", WarmupTicks: DefaultWarmupTicks,
				Body: "pole", MinHeight: 0.8, SuccessTime: 20,
			},
		},
		"track": {
			Name: "cartpole-track", Model: "cartpole", Integrator: "rk4",
			Timestep: DefaultTimestep, Decimation: DefaultDecimation,
			Policy: PolicyConfig{
				Backend: "linear", ObsDim: 5, ActionDim: 1, JointNames: []string{"slider"},
				Gains: [][]float64{{-1, -30, -2, -7, 1}},
			},
			Observations: []ObservationEntry{
				{Name: "joint_pos", History: 1},
				{Name: "joint_vel", History: 1},
				{Name: "command", History: 1, Fields: []string{"target_x"}},
			},
			Action:   ActionConfig{Mode: "torque", Scale: 1.0, TorqueLimits: []float64{20}},
			Commands: map[string]float64{"target_x": 0},
			Scenario: ScenarioConfig{
				Type: "fall", WarmupTicks: DefaultWarmupTicks,
				Body: "pole", MinHeight: 0.8,
			},
		},
	},
	"acrobot": {
		"reach": {
			Name: "acrobot-reach", Model: "acrobot", Integrator: "rk4",
			Timestep: DefaultTimestep, Decimation: DefaultDecimation,
			Policy: PolicyConfig{
				Backend: "linear", ObsDim: 4, ActionDim: 2, JointNames: []string{"shoulder", "elbow"},
				Gains: [][]float64{{0, 0, 0, 0}, {0, 0, 0, 0}}, Bias: []float64{0.6, 0.4},
			},
			Observations: []ObservationEntry{
				{Name: "joint_pos", History: 1},
				{Name: "joint_vel", History: 1},
			},
			Action: ActionConfig{
				Mode: "impedance", Scale: 1.0, DefaultPos: []float64{0, 0},
				Stiffness: []float64{80}, Damping: []float64{8}, TorqueLimits: []float64{40, 20},
			},
			Scenario: ScenarioConfig{
				Type: "reach", WarmupTicks: DefaultWarmupTicks,
				Body: "forearm", ReferenceBody: "upper_arm",
				Goal: []float64{1.4, 0, 1.14}, Tolerance: 0.3, MaxDistance: 3,
			},
		},
		"passive": {
			Name: "acrobot-passive", Model: "acrobot", Integrator: "rk4",
			Timestep: DefaultTimestep, Decimation: DefaultDecimation,
			Initial: InitialConfig{QPos: []float64{math.Pi / 2, 0}},
			Policy: PolicyConfig{
				Backend: "zero", ObsDim: 4, ActionDim: 2, JointNames: []string{"shoulder", "elbow"},
			},
			Observations: []ObservationEntry{
				{Name: "joint_pos", History: 1},
				{Name: "joint_vel", History: 1},
			},
			Action:   ActionConfig{Mode: "passive", Scale: 1.0},
			Scenario: ScenarioConfig{Type: "noop", WarmupTicks: DefaultWarmupTicks},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListModels() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
