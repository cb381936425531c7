// Package stats holds the windowed statistics used by the adaptive
// restraints: an incremental mean/variance accumulator and a Gaussian
// blur-to-grid density estimator.
package stats

// Running accumulates the mean and variance of a stream of scalar samples
// within one window.
//
// The variance recurrence is
//
//	j        = n + 1
//	diff     = x - mean
//	variance = variance + (j-1)*diff*diff/j
//	mean     = mean + diff/j
//
// with diff taken against the pre-update mean. This is the recurrence the
// BRER controller was calibrated against; it is not the textbook Welford
// update and must not be replaced with one, since that would change the
// controller's gradient proxy and therefore its alpha trajectory.
type Running struct {
	mean     float64
	variance float64
	n        int
}

// NewRunning seeds the accumulator with an initial mean and no dispersion,
// matching the controller's window reset (mean = most recent distance,
// variance = 0).
func NewRunning(mean float64) *Running {
	return &Running{mean: mean}
}

// Add folds one sample into the window.
func (r *Running) Add(x float64) {
	j := float64(r.n + 1)
	diff := x - r.mean
	r.variance = r.variance + (j-1)*diff*diff/j
	r.mean = r.mean + diff/j
	r.n++
}

// Reset restarts the window with a fresh seed mean.
func (r *Running) Reset(mean float64) {
	r.mean = mean
	r.variance = 0
	r.n = 0
}

func (r *Running) Mean() float64 {
	return r.mean
}

func (r *Running) Variance() float64 {
	return r.variance
}

// Count returns the number of samples folded in since the last reset.
func (r *Running) Count() int {
	return r.n
}
