// Package automation runs scenes headless, many episodes at a time.
package automation

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/san-kum/policyloop/internal/config"
	"github.com/san-kum/policyloop/internal/env"
	"github.com/san-kum/policyloop/internal/loop"
	"github.com/san-kum/policyloop/internal/metrics"
	"github.com/san-kum/policyloop/internal/scene"
	"github.com/san-kum/policyloop/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultEpisodes = 1
	DefaultMaxTicks = 1000
)

type Options struct {
	Episodes int
	MaxTicks int
	Workers  int
	Seed     int64
	// Perturb adds uniform noise in [-Perturb, Perturb] to the initial
	// joint positions of each episode.
	Perturb  float64
	Registry *scene.Registry
	Store    *storage.Store
	Logger   *zap.Logger
}

type EpisodeResult struct {
	Index   int                `json:"index"`
	Phase   env.Phase          `json:"phase"`
	Ticks   uint64             `json:"ticks"`
	Time    float64            `json:"time"`
	Metrics map[string]float64 `json:"metrics"`
	RunID   string             `json:"run_id,omitempty"`
}

type Report struct {
	Scene     string             `json:"scene"`
	Episodes  []EpisodeResult    `json:"episodes"`
	Successes int                `json:"successes"`
	Failures  int                `json:"failures"`
	Timeouts  int                `json:"timeouts"`
	MeanTicks float64            `json:"mean_ticks"`
	Metrics   map[string]float64 `json:"metrics"`
}

func (r *Report) SuccessRate() float64 {
	if len(r.Episodes) == 0 {
		return 0
	}
	return float64(r.Successes) / float64(len(r.Episodes))
}

// Evaluate runs opts.Episodes independent episodes of cfg over a bounded
// worker pool. An episode ends when its phase is terminal or after
// MaxTicks ticks. The first tick error cancels the remaining episodes.
func Evaluate(ctx context.Context, cfg *config.Config, opts Options) (*Report, error) {
	opts = withDefaults(cfg, opts)

	results := make([]EpisodeResult, opts.Episodes)
	var storeMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i := 0; i < opts.Episodes; i++ {
		i := i
		rng := rand.New(rand.NewSource(opts.Seed + int64(i)))
		g.Go(func() error {
			res, err := runEpisode(gctx, cfg.Clone(), opts, rng, &storeMu)
			if err != nil {
				return fmt.Errorf("episode %d: %w", i, err)
			}
			res.Index = i
			results[i] = *res
			opts.Logger.Debug("episode finished",
				zap.Int("episode", i),
				zap.Stringer("phase", res.Phase),
				zap.Uint64("ticks", res.Ticks),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summarize(cfg.Name, results), nil
}

func withDefaults(cfg *config.Config, opts Options) Options {
	if opts.Episodes < 1 {
		opts.Episodes = cfg.Episodes
	}
	if opts.Episodes < 1 {
		opts.Episodes = DefaultEpisodes
	}
	if opts.MaxTicks < 1 {
		opts.MaxTicks = cfg.MaxTicks
	}
	if opts.MaxTicks < 1 {
		opts.MaxTicks = DefaultMaxTicks
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Registry == nil {
		opts.Registry = scene.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return opts
}

func runEpisode(ctx context.Context, cfg *config.Config, opts Options, rng *rand.Rand, storeMu *sync.Mutex) (*EpisodeResult, error) {
	b, s, err := opts.Registry.Load(cfg, opts.Logger)
	if err != nil {
		return nil, err
	}
	if opts.Perturb > 0 {
		qpos := append([]float64(nil), s.Engine.QPos()...)
		for j := range qpos {
			qpos[j] += (rng.Float64()*2 - 1) * opts.Perturb
		}
		s.Engine.SetState(qpos, s.Engine.QVel())
	}

	o, err := loop.New(b, opts.Logger, loop.Options{})
	if err != nil {
		s.Runner.Close()
		return nil, err
	}
	defer o.Close()

	set := metrics.Default()
	o.Subscribe(set)
	var rec *storage.Recorder
	if opts.Store != nil {
		rec = storage.NewRecorder(1)
		o.Subscribe(rec)
	}

	if err := o.Start(); err != nil {
		return nil, err
	}
	for i := 0; i < opts.MaxTicks; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := o.Tick(ctx); err != nil {
			return nil, err
		}
		if o.Params().Episode.Phase.Terminal() {
			break
		}
	}

	p := o.Params()
	res := &EpisodeResult{
		Phase:   p.Episode.Phase,
		Ticks:   p.Tick,
		Time:    p.Time,
		Metrics: set.Values(),
	}

	if rec != nil {
		storeMu.Lock()
		defer storeMu.Unlock()
		id, err := opts.Store.Save(storage.RunMetadata{
			Scene:      cfg.Name,
			Model:      cfg.Model,
			Timestep:   cfg.Timestep,
			Decimation: cfg.Decimation,
			Ticks:      p.Tick,
			Integrator: cfg.Integrator,
			Policy:     cfg.Policy.Backend,
			Scenario:   cfg.Scenario.Type,
			Outcome:    p.Episode.Phase.String(),
			Metrics:    res.Metrics,
		}, rec.Trace())
		if err != nil {
			return nil, err
		}
		res.RunID = id
	}
	return res, nil
}

func summarize(name string, results []EpisodeResult) *Report {
	r := &Report{Scene: name, Episodes: results, Metrics: make(map[string]float64)}
	if len(results) == 0 {
		return r
	}
	var ticks float64
	for _, res := range results {
		switch res.Phase {
		case env.Success:
			r.Successes++
		case env.Failed:
			r.Failures++
		default:
			r.Timeouts++
		}
		ticks += float64(res.Ticks)
		for k, v := range res.Metrics {
			r.Metrics[k] += v
		}
	}
	n := float64(len(results))
	r.MeanTicks = ticks / n
	for k := range r.Metrics {
		r.Metrics[k] /= n
	}
	return r
}

// MetricNames returns the report's metric names in order.
func (r *Report) MetricNames() []string {
	names := make([]string, 0, len(r.Metrics))
	for k := range r.Metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
