package automation

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/policyloop/internal/config"
)

// GridSearch tries every combination of parameter values and keeps the
// one with the lowest mean metric. Candidates with a failed episode are
// skipped.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, fmt.Errorf("grid search needs one value range per parameter")
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("parameter %s has no values", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

type SearchResult struct {
	Params map[string]float64
	Score  float64
	Tried  int
}

func (g *GridSearch) Search(ctx context.Context, base *config.Config, opts Options, metric string) (*SearchResult, error) {
	opts = withDefaults(base, opts)
	res := &SearchResult{Score: math.Inf(1)}
	err := g.searchRecursive(ctx, 0, make(map[string]float64), base, opts, metric, res)
	if err != nil {
		return nil, err
	}
	if res.Params == nil {
		return res, fmt.Errorf("no candidate completed without a failed episode")
	}
	return res, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, base *config.Config, opts Options, metric string, res *SearchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		cfg := base.Clone()
		for name, v := range current {
			if err := SetParam(cfg, name, v); err != nil {
				return err
			}
		}
		res.Tried++
		report, err := Evaluate(ctx, cfg, opts)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			opts.Logger.Sugar().Debugw("candidate rejected", "params", current, "error", err)
			return nil
		}
		if report.Failures > 0 {
			return nil
		}
		val, ok := report.Metrics[metric]
		if !ok {
			return fmt.Errorf("unknown metric: %s", metric)
		}
		if val < res.Score {
			res.Score = val
			res.Params = make(map[string]float64, len(current))
			for k, v := range current {
				res.Params[k] = v
			}
		}
		return nil
	}

	name := g.paramNames[depth]
	for _, v := range g.ranges[depth] {
		next := make(map[string]float64, len(current)+1)
		for k, cv := range current {
			next[k] = cv
		}
		next[name] = v
		if err := g.searchRecursive(ctx, depth+1, next, base, opts, metric, res); err != nil {
			return err
		}
	}
	return nil
}

// SetParam writes one tunable value into cfg. Names are gain.<row>.<col>,
// bias.<i>, target.<i>, action.scale and action.filter_alpha.
func SetParam(cfg *config.Config, name string, v float64) error {
	parts := strings.Split(name, ".")
	index := func(i int) (int, error) {
		if len(parts) <= i {
			return 0, fmt.Errorf("parameter %s: missing index", name)
		}
		return strconv.Atoi(parts[i])
	}

	switch parts[0] {
	case "gain":
		row, err := index(1)
		if err != nil {
			return err
		}
		col, err := index(2)
		if err != nil {
			return err
		}
		if row < 0 || row >= len(cfg.Policy.Gains) || col < 0 || col >= len(cfg.Policy.Gains[row]) {
			return fmt.Errorf("parameter %s: out of range", name)
		}
		cfg.Policy.Gains[row][col] = v
	case "bias", "target":
		i, err := index(1)
		if err != nil {
			return err
		}
		vec := &cfg.Policy.Bias
		if parts[0] == "target" {
			vec = &cfg.Policy.Targets
		}
		if len(*vec) == 0 {
			*vec = make([]float64, cfg.Policy.ActionDim)
		}
		if i < 0 || i >= len(*vec) {
			return fmt.Errorf("parameter %s: out of range", name)
		}
		(*vec)[i] = v
	case "action":
		switch name {
		case "action.scale":
			cfg.Action.Scale = v
		case "action.filter_alpha":
			cfg.Action.FilterAlpha = v
		default:
			return fmt.Errorf("unknown parameter: %s", name)
		}
	default:
		return fmt.Errorf("unknown parameter: %s", name)
	}
	return nil
}

// ParseRange reads "name=v1,v2,v3" into a parameter name and its values.
func ParseRange(s string) (string, []float64, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("expected name=v1,v2,..., got %q", s)
	}
	var vals []float64
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return "", nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		vals = append(vals, v)
	}
	return name, vals, nil
}
