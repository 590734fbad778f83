package policy

import (
	"context"

	"github.com/san-kum/policyloop/internal/sim"
)

// Zero always outputs zeros. It drives passive scenes.
type Zero struct {
	meta Metadata
}

func NewZero(obsDim, actionDim int, jointNames []string) *Zero {
	return &Zero{meta: Metadata{Backend: "zero", ObsDim: obsDim, ActionDim: actionDim, JointNames: append([]string(nil), jointNames...)}}
}

func newZeroFromConfig(cfg Config) (Runner, error) {
	return NewZero(cfg.ObsDim, cfg.ActionDim, cfg.JointNames), nil
}

func (z *Zero) Infer(ctx context.Context, obs sim.Vector) (sim.Vector, error) {
	if err := checkInput("zero", obs, z.meta.ObsDim); err != nil {
		return nil, err
	}
	return make(sim.Vector, z.meta.ActionDim), nil
}

func (z *Zero) Metadata() Metadata { return z.meta }
func (z *Zero) Close() error       { return nil }
