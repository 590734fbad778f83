package sim

import "fmt"

// ConfigurationError reports an observation or action spec that does not
// fit the bound physics model. It is raised at bind time only.
type ConfigurationError struct {
	Component string
	Message   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Component, e.Message)
}

// DimensionMismatchError reports a resolved vector length that disagrees
// with the policy metadata.
type DimensionMismatchError struct {
	What     string
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s dimension mismatch: policy expects %d, resolved %d", e.What, e.Expected, e.Got)
}

// ShapeError reports an action vector whose length differs from the
// actuator mapping established at bind.
type ShapeError struct {
	Expected int
	Got      int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("action shape: expected %d values, got %d", e.Expected, e.Got)
}

// InferenceError wraps a failure of the policy backend during one tick.
type InferenceError struct {
	Backend string
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference (%s): %v", e.Backend, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// MissingBodyError reports a scenario guard naming a body the physics model
// does not have.
type MissingBodyError struct {
	Scenario string
	Body     string
}

func (e *MissingBodyError) Error() string {
	return fmt.Sprintf("scenario %s: body %q not found", e.Scenario, e.Body)
}

type TickError struct {
	Time    float64
	Tick    uint64
	Message string
}

func (e TickError) Error() string {
	return fmt.Sprintf("tick %d (t=%.4f): %s", e.Tick, e.Time, e.Message)
}
