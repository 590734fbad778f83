package loop

import (
	"fmt"
	"time"

	"github.com/san-kum/policyloop/internal/action"
	"github.com/san-kum/policyloop/internal/env"
	"github.com/san-kum/policyloop/internal/sim"
)

type State int32

const (
	Stopped State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Snapshot is the runtime parameter set published once per tick. Readers
// get their own copy and may keep it.
type Snapshot struct {
	Scene             string       `json:"scene"`
	Tick              uint64       `json:"tick"`
	Time              float64      `json:"time"`
	State             State        `json:"state"`
	Episode           env.Episode  `json:"episode"`
	Commands          sim.Commands `json:"commands"`
	Action            sim.Vector   `json:"action"`
	Dropped           uint64       `json:"dropped"`
	InferenceFailures uint64       `json:"inference_failures"`
}

// Frame is handed to render-sync observers after every completed tick.
// Physics is the live handle and is only valid for the duration of
// OnTick; observers must not step or reset it.
type Frame struct {
	Tick             uint64
	Time             float64
	Physics          sim.Physics
	Observation      sim.Vector
	Action           sim.Vector
	Commands         []action.ActuatorCommand
	Episode          env.Episode
	InferenceLatency time.Duration
	InferenceErr     error
}

// Observer is notified while the tick lock is held. OnTick must not call
// Reset, Rebind, Close or Binding on the orchestrator that notifies it.
type Observer interface {
	OnTick(f Frame)
}

type ObserverFunc func(f Frame)

func (fn ObserverFunc) OnTick(f Frame) { fn(f) }
