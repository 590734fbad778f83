package metrics

import (
	"time"

	"github.com/san-kum/policyloop/internal/loop"
)

// InferenceLatency is the mean policy inference time in milliseconds.
type InferenceLatency struct {
	total   time.Duration
	max     time.Duration
	samples int
}

func NewInferenceLatency() *InferenceLatency {
	return &InferenceLatency{}
}

func (l *InferenceLatency) Name() string { return "inference_latency_ms" }

func (l *InferenceLatency) Observe(f loop.Frame) {
	l.total += f.InferenceLatency
	if f.InferenceLatency > l.max {
		l.max = f.InferenceLatency
	}
	l.samples++
}

func (l *InferenceLatency) Value() float64 {
	if l.samples == 0 {
		return 0
	}
	return float64(l.total) / float64(l.samples) / float64(time.Millisecond)
}

func (l *InferenceLatency) Max() time.Duration { return l.max }

func (l *InferenceLatency) Reset() {
	l.total = 0
	l.max = 0
	l.samples = 0
}
