package state

import (
	"sync"

	"github.com/san-kum/revkit/internal/motor"
)

// HistoryCapacity is the number of samples kept for display and export.
const HistoryCapacity = 100

// History is a fixed-capacity FIFO of recent samples. The oldest sample is
// evicted first once the buffer is full.
type History struct {
	mu    sync.Mutex
	buf   []motor.Sample
	start int
	n     int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = HistoryCapacity
	}
	return &History{buf: make([]motor.Sample, capacity)}
}

func (h *History) Append(s motor.Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = s
		h.n++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

// Snapshot returns a copy of the buffered samples, oldest first.
func (h *History) Snapshot() []motor.Sample {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]motor.Sample, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n
}

func (h *History) Cap() int {
	return len(h.buf)
}

// Series splits the buffered samples into plot-ready columns.
func (h *History) Series() (measurement, setpoint, command []float64) {
	snap := h.Snapshot()
	measurement = make([]float64, len(snap))
	setpoint = make([]float64, len(snap))
	command = make([]float64, len(snap))
	for i, s := range snap {
		measurement[i] = s.Measurement
		setpoint[i] = s.Setpoint
		command[i] = float64(s.Command)
	}
	return measurement, setpoint, command
}
