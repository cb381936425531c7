package window

import "fmt"

// RollingBuffer keeps the most recent reduced windows, strictly FIFO:
// appending at capacity evicts the oldest entry before the new one lands.
type RollingBuffer struct {
	capacity int
	windows  []*Matrix
}

func NewRollingBuffer(capacity int) (*RollingBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("rolling buffer capacity must be > 0, got %d", capacity)
	}
	return &RollingBuffer{capacity: capacity}, nil
}

// Push appends w, evicting the oldest window first when at capacity.
func (b *RollingBuffer) Push(w *Matrix) {
	if len(b.windows) == b.capacity {
		copy(b.windows, b.windows[1:])
		b.windows = b.windows[:len(b.windows)-1]
	}
	b.windows = append(b.windows, w)
}

func (b *RollingBuffer) Len() int {
	return len(b.windows)
}

func (b *RollingBuffer) Capacity() int {
	return b.capacity
}

// Windows returns the buffered windows, oldest first. The slice is shared;
// callers must not retain it across a Push.
func (b *RollingBuffer) Windows() []*Matrix {
	return b.windows
}

// MeanDifference fills out[i] with the average over all buffered windows of
// (window row 0, bin i) - reference[i]. This is the working histogram of the
// ensemble restraint: the time-averaged excess of the simulated distribution
// over the experimental one.
func (b *RollingBuffer) MeanDifference(reference []float64, out []float64) error {
	if len(b.windows) == 0 {
		return fmt.Errorf("no windows buffered")
	}
	for _, w := range b.windows {
		if w.Cols() != len(reference) {
			return fmt.Errorf("window has %d bins, reference has %d", w.Cols(), len(reference))
		}
	}
	if len(out) != len(reference) {
		return fmt.Errorf("output has %d bins, reference has %d", len(out), len(reference))
	}
	n := float64(len(b.windows))
	for i := range out {
		out[i] = 0
	}
	for _, w := range b.windows {
		for i := range out {
			out[i] += (w.At(0, i) - reference[i]) / n
		}
	}
	return nil
}
