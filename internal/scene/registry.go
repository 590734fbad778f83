package scene

import (
	"fmt"
	"sort"

	"github.com/san-kum/policyloop/internal/integrators"
	"github.com/san-kum/policyloop/internal/models"
	"github.com/san-kum/policyloop/internal/sim"
)

type Registry struct {
	models      map[string]func() models.System
	integrators map[string]func() sim.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		models:      make(map[string]func() models.System),
		integrators: make(map[string]func() sim.Integrator),
	}

	r.models["pendulum"] = func() models.System { return models.NewPendulum() }
	r.models["cartpole"] = func() models.System { return models.NewCartPole() }
	r.models["acrobot"] = func() models.System { return models.NewAcrobot() }

	r.integrators["euler"] = func() sim.Integrator { return integrators.NewEuler() }
	r.integrators["semi_implicit_euler"] = func() sim.Integrator { return integrators.NewSemiImplicitEuler() }
	r.integrators["rk4"] = func() sim.Integrator { return integrators.NewRK4() }

	return r
}

func (r *Registry) RegisterModel(name string, fn func() models.System) {
	r.models[name] = fn
}

func (r *Registry) GetModel(name string) (models.System, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetIntegrator(name string) (sim.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListModels() []string {
	return sortedKeys(r.models)
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

func sortedKeys[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
