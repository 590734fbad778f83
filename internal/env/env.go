// Package env tracks episode progress for a bound scene: warm-up, the
// playing phase and the terminal success/failure conditions.
package env

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/policyloop/internal/sim"
	"go.uber.org/zap"
)

type Phase int

const (
	Ready Phase = iota
	Playing
	Success
	Failed
)

func (p Phase) String() string {
	switch p {
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func (p Phase) Terminal() bool { return p == Success || p == Failed }

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Episode is a snapshot of the episode state.
type Episode struct {
	Phase         Phase              `json:"phase"`
	Ticks         uint64             `json:"ticks"`
	Elapsed       float64            `json:"elapsed"`
	Metrics       map[string]float64 `json:"metrics"`
	GuardsEnabled bool               `json:"guards_enabled"`
}

type Manager interface {
	Name() string
	OnSceneLoaded(p sim.Physics)
	BeforeStep(dt float64)
	AfterStep(ctx *sim.Context)
	Reset()
	Episode() Episode
}

type Config struct {
	Type          string
	WarmupTicks   int
	Body          string
	ReferenceBody string
	MinHeight     float64
	SuccessTime   float64
	Goal          []float64
	Tolerance     float64
	MaxDistance   float64
}

// scenario supplies the body lookups, measurements and guards of one
// environment variant.
type scenario interface {
	resolve(p sim.Physics) error
	measure(ctx *sim.Context, ep *Episode)
	failed(ep *Episode) bool
	succeeded(ep *Episode) bool
}

type Factory func(cfg Config) (scenario, error)

var scenarios = map[string]Factory{
	"noop":  func(Config) (scenario, error) { return noop{}, nil },
	"fall":  newFall,
	"reach": newReach,
}

func Scenarios() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the environment manager for cfg.Type.
func New(cfg Config, logger *zap.Logger) (Manager, error) {
	if cfg.Type == "" {
		cfg.Type = "noop"
	}
	factory, ok := scenarios[cfg.Type]
	if !ok {
		return nil, &sim.ConfigurationError{Component: "scenario", Message: fmt.Sprintf("unknown type: %s", cfg.Type)}
	}
	if cfg.WarmupTicks < 0 {
		return nil, &sim.ConfigurationError{Component: "scenario", Message: "warmup_ticks must be >= 0"}
	}
	s, err := factory(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &episodic{
		name:     cfg.Type,
		warmup:   uint64(cfg.WarmupTicks),
		scenario: s,
		logger:   logger.Named("env"),
		ep:       Episode{Metrics: map[string]float64{}},
	}, nil
}

type episodic struct {
	name     string
	warmup   uint64
	scenario scenario
	logger   *zap.Logger
	warned   bool
	ep       Episode
}

func (e *episodic) Name() string { return e.name }

// OnSceneLoaded resolves named bodies. A missing body disables the guards
// for the lifetime of this manager; it is logged once and not returned.
func (e *episodic) OnSceneLoaded(p sim.Physics) {
	err := e.scenario.resolve(p)
	if err == nil {
		e.ep.GuardsEnabled = true
		return
	}
	e.ep.GuardsEnabled = false
	if !e.warned {
		e.warned = true
		var missing *sim.MissingBodyError
		if errors.As(err, &missing) {
			e.logger.Warn("scenario guards disabled", zap.String("scenario", missing.Scenario), zap.String("body", missing.Body))
		} else {
			e.logger.Warn("scenario guards disabled", zap.Error(err))
		}
	}
}

func (e *episodic) BeforeStep(dt float64) {
	e.ep.Ticks++
	e.ep.Elapsed += dt
	if e.ep.Phase == Ready && e.warmup == 0 {
		e.ep.Phase = Playing
	}
}

func (e *episodic) AfterStep(ctx *sim.Context) {
	e.ep.Metrics["elapsed"] = e.ep.Elapsed
	e.ep.Metrics["ticks"] = float64(e.ep.Ticks)
	if e.ep.GuardsEnabled {
		e.scenario.measure(ctx, &e.ep)
		if e.ep.Phase == Playing {
			if e.scenario.failed(&e.ep) {
				e.ep.Phase = Failed
			} else if e.scenario.succeeded(&e.ep) {
				e.ep.Phase = Success
			}
		}
	}
	// The tick that completes warm-up is not guarded; the next one is.
	if e.ep.Phase == Ready && e.ep.Ticks >= e.warmup {
		e.ep.Phase = Playing
	}
}

func (e *episodic) Reset() {
	e.ep = Episode{Metrics: map[string]float64{}, GuardsEnabled: e.ep.GuardsEnabled}
}

func (e *episodic) Episode() Episode {
	out := e.ep
	out.Metrics = make(map[string]float64, len(e.ep.Metrics))
	for k, v := range e.ep.Metrics {
		out.Metrics[k] = v
	}
	return out
}
