package server

import (
	"encoding/json"

	"github.com/san-kum/policyloop/internal/action"
	"github.com/san-kum/policyloop/internal/env"
	"github.com/san-kum/policyloop/internal/loop"
	"github.com/san-kum/policyloop/internal/sim"
)

// Message is the envelope for everything sent over the websocket, in both
// directions.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	TypeScene    = "scene"
	TypeFrame    = "frame"
	TypeParams   = "params"
	TypeError    = "error"
	TypeCommands = "commands"
	TypeControl  = "control"
)

func encode(msgType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: msgType, Data: data})
}

type BodyPose struct {
	Name        string   `json:"name"`
	Position    sim.Vec3 `json:"position"`
	Orientation sim.Quat `json:"orientation"`
}

// FrameMessage is what a remote viewer needs to draw one tick.
type FrameMessage struct {
	Tick        uint64                   `json:"tick"`
	Time        float64                  `json:"time"`
	QPos        []float64                `json:"qpos"`
	QVel        []float64                `json:"qvel"`
	Bodies      []BodyPose               `json:"bodies"`
	Action      sim.Vector               `json:"action"`
	Commands    []action.ActuatorCommand `json:"commands"`
	Episode     env.Episode              `json:"episode"`
	LatencyMs   float64                  `json:"latency_ms"`
	InferenceOK bool                     `json:"inference_ok"`
}

func newFrameMessage(f loop.Frame) FrameMessage {
	p := f.Physics
	names := p.BodyNames()
	bodies := make([]BodyPose, len(names))
	for i, name := range names {
		bodies[i] = BodyPose{Name: name, Position: p.BodyPosition(i), Orientation: p.BodyOrientation(i)}
	}
	return FrameMessage{
		Tick:        f.Tick,
		Time:        f.Time,
		QPos:        append([]float64(nil), p.QPos()...),
		QVel:        append([]float64(nil), p.QVel()...),
		Bodies:      bodies,
		Action:      f.Action.Clone(),
		Commands:    f.Commands,
		Episode:     f.Episode,
		LatencyMs:   float64(f.InferenceLatency.Microseconds()) / 1000,
		InferenceOK: f.InferenceErr == nil,
	}
}

type Segment struct {
	Name    string `json:"name"`
	Offset  int    `json:"offset"`
	Width   int    `json:"width"`
	History int    `json:"history"`
}

// SceneInfo describes the bound scene.
type SceneInfo struct {
	Name          string    `json:"name"`
	Scenario      string    `json:"scenario"`
	ControlDt     float64   `json:"control_dt"`
	Decimation    int       `json:"decimation"`
	Joints        []string  `json:"joints"`
	Actuators     []string  `json:"actuators"`
	Bodies        []string  `json:"bodies"`
	ActionMode    string    `json:"action_mode"`
	ActionDim     int       `json:"action_dim"`
	Observation   []Segment `json:"observation"`
	CommandFields []string  `json:"command_fields"`
}

func newSceneInfo(b *loop.Binding) SceneInfo {
	layout := b.Observations.Layout()
	segs := make([]Segment, len(layout))
	for i, s := range layout {
		segs[i] = Segment{Name: s.Name, Offset: s.Offset, Width: s.Width, History: s.History}
	}
	info := SceneInfo{
		Name:        b.Name,
		Scenario:    b.Env.Name(),
		ControlDt:   b.ControlDt(),
		Decimation:  b.Decimation,
		Joints:      b.Physics.JointNames(),
		Actuators:   b.Physics.ActuatorNames(),
		Bodies:      b.Physics.BodyNames(),
		ActionMode:  b.Actions.Mode(),
		ActionDim:   b.Actions.Dim(),
		Observation: segs,
	}
	if b.Commands != nil {
		info.CommandFields = b.Commands.Fields()
	}
	return info
}

type CommandsRequest struct {
	Values map[string]float64 `json:"values"`
}

type ControlRequest struct {
	Action string `json:"action"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
