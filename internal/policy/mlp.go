package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/san-kum/policyloop/internal/sim"
	"gonum.org/v1/gonum/mat"
)

// LayerFile is one dense layer as stored on disk. Weights are row-major,
// one row per output unit.
type LayerFile struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation,omitempty"`
}

// MLPFile is the JSON weight format read by the mlp backend.
type MLPFile struct {
	JointNames []string    `json:"joint_names,omitempty"`
	Activation string      `json:"activation,omitempty"`
	ObsMean    []float64   `json:"obs_mean,omitempty"`
	ObsStd     []float64   `json:"obs_std,omitempty"`
	Layers     []LayerFile `json:"layers"`
}

var activations = map[string]func(float64) float64{
	"elu": func(x float64) float64 {
		if x > 0 {
			return x
		}
		return math.Exp(x) - 1
	},
	"tanh": math.Tanh,
	"relu": func(x float64) float64 { return math.Max(0, x) },
	"identity": func(x float64) float64 {
		return x
	},
}

type layer struct {
	w   *mat.Dense
	b   *mat.VecDense
	act func(float64) float64
}

// MLP is a feed-forward network evaluated with gonum.
type MLP struct {
	layers []layer
	mean   []float64
	std    []float64
	meta   Metadata

	in  *mat.VecDense
	out []*mat.VecDense
}

// NewMLP builds the network. Hidden layers default to f.Activation (elu when
// unset); the output layer defaults to identity.
func NewMLP(f MLPFile) (*MLP, error) {
	if len(f.Layers) == 0 {
		return nil, fmt.Errorf("network has no layers")
	}
	hidden := f.Activation
	if hidden == "" {
		hidden = "elu"
	}

	m := &MLP{}
	prev := -1
	for i, lf := range f.Layers {
		rows := len(lf.Weights)
		if rows == 0 {
			return nil, fmt.Errorf("layer %d has no weights", i)
		}
		cols := len(lf.Weights[0])
		if prev >= 0 && cols != prev {
			return nil, fmt.Errorf("layer %d expects %d inputs, previous layer has %d outputs", i, cols, prev)
		}
		data := make([]float64, 0, rows*cols)
		for r, row := range lf.Weights {
			if len(row) != cols {
				return nil, fmt.Errorf("layer %d row %d has %d columns, expected %d", i, r, len(row), cols)
			}
			data = append(data, row...)
		}
		if len(lf.Bias) != rows {
			return nil, fmt.Errorf("layer %d has %d biases for %d units", i, len(lf.Bias), rows)
		}

		name := lf.Activation
		if name == "" {
			name = hidden
			if i == len(f.Layers)-1 {
				name = "identity"
			}
		}
		act, ok := activations[name]
		if !ok {
			return nil, fmt.Errorf("layer %d: unknown activation %q", i, name)
		}

		m.layers = append(m.layers, layer{
			w:   mat.NewDense(rows, cols, data),
			b:   mat.NewVecDense(rows, append([]float64(nil), lf.Bias...)),
			act: act,
		})
		m.out = append(m.out, mat.NewVecDense(rows, nil))
		if prev < 0 {
			m.meta.ObsDim = cols
		}
		prev = rows
	}
	m.meta.ActionDim = prev
	m.meta.Backend = "mlp"
	m.meta.JointNames = append([]string(nil), f.JointNames...)

	if len(f.ObsMean) > 0 || len(f.ObsStd) > 0 {
		if len(f.ObsMean) != m.meta.ObsDim || len(f.ObsStd) != m.meta.ObsDim {
			return nil, fmt.Errorf("normalisation needs %d means and stds", m.meta.ObsDim)
		}
		m.mean = append([]float64(nil), f.ObsMean...)
		m.std = append([]float64(nil), f.ObsStd...)
	}
	m.in = mat.NewVecDense(m.meta.ObsDim, nil)
	return m, nil
}

func LoadMLP(path string) (*MLP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f MLPFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return NewMLP(f)
}

func newMLPFromConfig(cfg Config) (Runner, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("mlp backend needs a weights path")
	}
	m, err := LoadMLP(cfg.Path)
	if err != nil {
		return nil, err
	}
	if len(cfg.JointNames) > 0 {
		m.meta.JointNames = append([]string(nil), cfg.JointNames...)
	}
	return m, nil
}

// Infer is not safe for concurrent use; it reuses per-layer buffers.
func (m *MLP) Infer(ctx context.Context, obs sim.Vector) (sim.Vector, error) {
	if err := checkInput("mlp", obs, m.meta.ObsDim); err != nil {
		return nil, err
	}
	for i, x := range obs {
		if m.mean != nil {
			std := m.std[i]
			if std == 0 {
				std = 1
			}
			x = (x - m.mean[i]) / std
		}
		m.in.SetVec(i, x)
	}

	x := m.in
	for i, l := range m.layers {
		y := m.out[i]
		y.MulVec(l.w, x)
		y.AddVec(y, l.b)
		for j := 0; j < y.Len(); j++ {
			y.SetVec(j, l.act(y.AtVec(j)))
		}
		x = y
	}

	out := make(sim.Vector, x.Len())
	for i := range out {
		out[i] = x.AtVec(i)
	}
	if err := checkOutput("mlp", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MLP) Metadata() Metadata { return m.meta }
func (m *MLP) Close() error       { return nil }
