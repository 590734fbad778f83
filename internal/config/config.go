package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTimestep    = 0.005
	DefaultDecimation  = 4
	DefaultWarmupTicks = 25
	DefaultActionScale = 1.0
	DefaultIntegrator  = "rk4"
)

// Config describes one scene/policy binding.
type Config struct {
	Name         string             `yaml:"name"`
	Model        string             `yaml:"model"`
	Integrator   string             `yaml:"integrator"`
	Timestep     float64            `yaml:"timestep"`
	Decimation   int                `yaml:"decimation"`
	Episodes     int                `yaml:"episodes,omitempty"`
	MaxTicks     int                `yaml:"max_ticks,omitempty"`
	Actuators    []ActuatorConfig   `yaml:"actuators,omitempty"`
	Initial      InitialConfig      `yaml:"initial"`
	Policy       PolicyConfig       `yaml:"policy"`
	Observations []ObservationEntry `yaml:"observations"`
	Action       ActionConfig       `yaml:"action"`
	Commands     map[string]float64 `yaml:"commands,omitempty"`
	Scenario     ScenarioConfig     `yaml:"scenario"`
}

type ActuatorConfig struct {
	Name  string    `yaml:"name"`
	Joint string    `yaml:"joint"`
	Kind  string    `yaml:"kind"`
	Gear  float64   `yaml:"gear,omitempty"`
	Kp    float64   `yaml:"kp,omitempty"`
	Kv    float64   `yaml:"kv,omitempty"`
	Range []float64 `yaml:"range,omitempty"`
}

type InitialConfig struct {
	QPos []float64 `yaml:"qpos,omitempty"`
	QVel []float64 `yaml:"qvel,omitempty"`
}

// PolicyConfig carries the policy metadata the loop validates at bind time
// plus backend-specific parameters. Gains is the K matrix for linear
// policies and one [kp, ki, kd] row per joint for pid.
type PolicyConfig struct {
	Backend    string      `yaml:"backend"`
	Path       string      `yaml:"path,omitempty"`
	ObsDim     int         `yaml:"obs_dim"`
	ActionDim  int         `yaml:"action_dim"`
	JointNames []string    `yaml:"joint_names"`
	Gains      [][]float64 `yaml:"gains,omitempty"`
	Bias       []float64   `yaml:"bias,omitempty"`
	Targets    []float64   `yaml:"targets,omitempty"`
	Async      bool        `yaml:"async,omitempty"`
}

type ObservationEntry struct {
	Name    string   `yaml:"name"`
	History int      `yaml:"history"`
	Scale   float64  `yaml:"scale,omitempty"`
	Body    string   `yaml:"body,omitempty"`
	Fields  []string `yaml:"fields,omitempty"`
}

type ActionConfig struct {
	Mode         string    `yaml:"mode"`
	Scale        float64   `yaml:"scale"`
	Clip         []float64 `yaml:"clip,omitempty"`
	FilterAlpha  float64   `yaml:"filter_alpha,omitempty"`
	DefaultPos   []float64 `yaml:"default_pos,omitempty"`
	Stiffness    []float64 `yaml:"stiffness,omitempty"`
	Damping      []float64 `yaml:"damping,omitempty"`
	TorqueLimits []float64 `yaml:"torque_limits,omitempty"`
	Hold         bool      `yaml:"hold,omitempty"`
}

type ScenarioConfig struct {
	Type          string    `yaml:"type"`
	WarmupTicks   int       `yaml:"warmup_ticks"`
	Body          string    `yaml:"body,omitempty"`
	ReferenceBody string    `yaml:"reference_body,omitempty"`
	MinHeight     float64   `yaml:"min_height,omitempty"`
	SuccessTime   float64   `yaml:"success_time,omitempty"`
	Goal          []float64 `yaml:"goal,omitempty"`
	Tolerance     float64   `yaml:"tolerance,omitempty"`
	MaxDistance   float64   `yaml:"max_distance,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Name:       "pendulum-upright",
		Model:      "pendulum",
		Integrator: DefaultIntegrator,
		Timestep:   DefaultTimestep,
		Decimation: DefaultDecimation,
		Initial:    InitialConfig{QPos: []float64{math.Pi - 0.2}},
		Policy: PolicyConfig{
			Backend:    "linear",
			ObsDim:     2,
			ActionDim:  1,
			JointNames: []string{"hinge"},
			Gains:      [][]float64{{31.62, 10.0}},
		},
		Observations: []ObservationEntry{
			{Name: "joint_pos", History: 1},
			{Name: "joint_vel", History: 1},
		},
		Action: ActionConfig{
			Mode:         "torque",
			Scale:        DefaultActionScale,
			DefaultPos:   []float64{math.Pi},
			TorqueLimits: []float64{15},
		},
		Scenario: ScenarioConfig{
			Type:        "fall",
			WarmupTicks: DefaultWarmupTicks,
			Body:        "pole",
			MinHeight:   1.5,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	// Lists replace rather than merge, so start from empty ones.
	cfg.Observations = nil
	cfg.Initial = InitialConfig{}
	cfg.Policy = PolicyConfig{}
	cfg.Action = ActionConfig{Scale: DefaultActionScale}
	cfg.Scenario = ScenarioConfig{Type: "noop", WarmupTicks: DefaultWarmupTicks}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the fields that can be checked without a physics model.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Timestep <= 0 {
		return fmt.Errorf("timestep must be positive, got %f", c.Timestep)
	}
	if c.Decimation < 1 {
		return fmt.Errorf("decimation must be >= 1, got %d", c.Decimation)
	}
	if c.Policy.Backend == "" {
		return fmt.Errorf("policy backend is required")
	}
	if c.Policy.ActionDim != len(c.Policy.JointNames) {
		return fmt.Errorf("policy declares %d actions for %d joints", c.Policy.ActionDim, len(c.Policy.JointNames))
	}
	for i, o := range c.Observations {
		if o.Name == "" {
			return fmt.Errorf("observation %d has no name", i)
		}
		if o.History < 1 {
			return fmt.Errorf("observation %s: history must be >= 1, got %d", o.Name, o.History)
		}
	}
	if c.Action.FilterAlpha < 0 || c.Action.FilterAlpha > 1 {
		return fmt.Errorf("filter_alpha must be in [0, 1], got %f", c.Action.FilterAlpha)
	}
	if len(c.Action.Clip) != 0 && len(c.Action.Clip) != 2 {
		return fmt.Errorf("clip must be [lo, hi]")
	}
	if c.Scenario.WarmupTicks < 0 {
		return fmt.Errorf("warmup_ticks must be >= 0")
	}
	return nil
}

// ControlDt is the simulated time covered by one control tick.
func (c *Config) ControlDt() float64 {
	return c.Timestep * float64(c.Decimation)
}

func (c *Config) Clone() *Config {
	data, err := yaml.Marshal(c)
	if err != nil {
		panic(err)
	}
	out := &Config{}
	if err := yaml.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}
