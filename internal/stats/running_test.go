package stats

import (
	"math"
	"testing"
)

func TestRunningConstantStreamHasZeroVariance(t *testing.T) {
	r := NewRunning(2.5)
	for i := 0; i < 50; i++ {
		r.Add(2.5)
	}
	if r.Variance() != 0 {
		t.Fatalf("variance of constant stream: got %g", r.Variance())
	}
	if r.Mean() != 2.5 {
		t.Fatalf("mean: got %g", r.Mean())
	}
	if r.Count() != 50 {
		t.Fatalf("count: got %d", r.Count())
	}
}

func TestRunningMatchesReferenceRecurrence(t *testing.T) {
	// Hand-rolled reference for the exact recurrence, seeded like the
	// controller: mean starts at the first observed distance.
	samples := []float64{3.0, 3.2, 2.8, 3.1, 2.9, 3.05}

	mean := samples[0]
	variance := 0.0
	r := NewRunning(samples[0])
	for i, x := range samples[1:] {
		j := float64(i + 1)
		diff := x - mean
		variance += (j - 1) * diff * diff / j
		mean += diff / j

		r.Add(x)
		if math.Abs(r.Mean()-mean) > 1e-14 {
			t.Fatalf("mean after sample %d: got %.15f want %.15f", i, r.Mean(), mean)
		}
		if math.Abs(r.Variance()-variance) > 1e-14 {
			t.Fatalf("variance after sample %d: got %.15f want %.15f", i, r.Variance(), variance)
		}
	}
}

func TestRunningFirstSampleLeavesVarianceZero(t *testing.T) {
	// j == 1 for the first Add, so the (j-1) factor zeroes the variance
	// term regardless of how far the sample sits from the seed mean.
	r := NewRunning(0)
	r.Add(100)
	if r.Variance() != 0 {
		t.Fatalf("variance after first sample: got %g", r.Variance())
	}
	if r.Mean() != 100 {
		t.Fatalf("mean after first sample: got %g", r.Mean())
	}
}

func TestRunningReset(t *testing.T) {
	r := NewRunning(1)
	r.Add(2)
	r.Add(4)
	r.Reset(7)
	if r.Mean() != 7 || r.Variance() != 0 || r.Count() != 0 {
		t.Fatalf("after reset: mean=%g variance=%g count=%d", r.Mean(), r.Variance(), r.Count())
	}
}
