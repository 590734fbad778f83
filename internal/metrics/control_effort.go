package metrics

import (
	"math"
	"sort"

	"github.com/san-kum/policyloop/internal/loop"
)

// ControlEffort is the mean over ticks of the summed absolute actuator
// commands. Per-actuator means and the largest single command are kept
// alongside.
type ControlEffort struct {
	ticks  int
	total  float64
	byName map[string]float64
	peak   float64
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{byName: make(map[string]float64)}
}

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(f loop.Frame) {
	c.ticks++
	for _, cmd := range f.Commands {
		v := math.Abs(cmd.Value)
		c.total += v
		c.byName[cmd.Actuator] += v
		c.peak = math.Max(c.peak, v)
	}
}

func (c *ControlEffort) Value() float64 {
	if c.ticks == 0 {
		return 0
	}
	return c.total / float64(c.ticks)
}

// ByActuator returns the mean absolute command of each actuator.
func (c *ControlEffort) ByActuator() map[string]float64 {
	out := make(map[string]float64, len(c.byName))
	for name, sum := range c.byName {
		out[name] = sum / float64(c.ticks)
	}
	return out
}

// Actuators lists the actuators seen so far, sorted.
func (c *ControlEffort) Actuators() []string {
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *ControlEffort) Peak() float64 { return c.peak }

func (c *ControlEffort) Reset() {
	c.ticks = 0
	c.total = 0
	c.peak = 0
	c.byName = make(map[string]float64)
}
