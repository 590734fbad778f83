package observation

import "github.com/san-kum/policyloop/internal/sim"

// HistoryBuffer keeps the most recent Depth samples of one component.
// It never holds more than Depth samples; the oldest is evicted on push.
type HistoryBuffer struct {
	width int
	slots []sim.Vector
	head  int
	n     int
}

func NewHistoryBuffer(width, depth int) *HistoryBuffer {
	if depth < 1 {
		depth = 1
	}
	slots := make([]sim.Vector, depth)
	for i := range slots {
		slots[i] = make(sim.Vector, width)
	}
	return &HistoryBuffer{width: width, slots: slots}
}

func (h *HistoryBuffer) Width() int { return h.width }
func (h *HistoryBuffer) Depth() int { return len(h.slots) }
func (h *HistoryBuffer) Len() int   { return h.n }

// Push copies sample into the buffer.
func (h *HistoryBuffer) Push(sample sim.Vector) {
	copy(h.slots[h.head], sample)
	h.head = (h.head + 1) % len(h.slots)
	if h.n < len(h.slots) {
		h.n++
	}
}

// At returns the i-th stored sample, oldest first.
func (h *HistoryBuffer) At(i int) sim.Vector {
	start := (h.head - h.n + len(h.slots)) % len(h.slots)
	return h.slots[(start+i)%len(h.slots)]
}

// Emit writes Depth*Width values into dst, oldest sample first. Until the
// buffer is full the missing leading samples are zero.
func (h *HistoryBuffer) Emit(dst sim.Vector) {
	pad := (len(h.slots) - h.n) * h.width
	for i := 0; i < pad; i++ {
		dst[i] = 0
	}
	off := pad
	for i := 0; i < h.n; i++ {
		copy(dst[off:off+h.width], h.At(i))
		off += h.width
	}
}

func (h *HistoryBuffer) Reset() {
	for _, s := range h.slots {
		for i := range s {
			s[i] = 0
		}
	}
	h.head = 0
	h.n = 0
}
