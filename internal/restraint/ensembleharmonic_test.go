package restraint

import (
	"math"
	"testing"

	"github.com/kassonlab/brer-md/internal/model"
	"github.com/kassonlab/brer-md/internal/stats"
	"github.com/kassonlab/brer-md/internal/window"
)

// identityReduce stands in for the host collective in single-replica tests.
func identityReduce(send, recv *window.Matrix) error {
	copy(recv.Data(), send.Data())
	return nil
}

func peakedParams() EnsembleHarmonicParams {
	return EnsembleHarmonicParams{
		NBins:              10,
		BinWidth:           1.0,
		MinDist:            0,
		MaxDist:            10,
		Experimental:       []float64{0, 1, 0, 0, 0, 0, 0, 0, 0, 0},
		NSamples:           1,
		SamplePeriod:       0.001,
		NWindows:           1,
		WindowUpdatePeriod: 0.001,
		K:                  100,
		Sigma:              1.0,
	}
}

func TestNewEnsembleHarmonicValidation(t *testing.T) {
	base := peakedParams()
	bad := []func(*EnsembleHarmonicParams){
		func(p *EnsembleHarmonicParams) { p.NBins = 0 },
		func(p *EnsembleHarmonicParams) { p.BinWidth = 0 },
		func(p *EnsembleHarmonicParams) { p.MinDist = 11 },
		func(p *EnsembleHarmonicParams) { p.Experimental = []float64{1, 2} },
		func(p *EnsembleHarmonicParams) { p.NSamples = 0 },
		func(p *EnsembleHarmonicParams) { p.SamplePeriod = 0 },
		func(p *EnsembleHarmonicParams) { p.NWindows = 0 },
		func(p *EnsembleHarmonicParams) { p.WindowUpdatePeriod = 0 },
		func(p *EnsembleHarmonicParams) { p.Sigma = 0 },
	}
	for i, mutate := range bad {
		p := base
		mutate(&p)
		if _, err := NewEnsembleHarmonic(p); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestEnsembleHarmonicHistogramForce(t *testing.T) {
	e, err := NewEnsembleHarmonic(peakedParams())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	e1 := model.Vector{X: 1}
	e2 := model.Vector{Y: 1}

	// Before any sampling the working histogram is empty and the force is
	// zero wherever the particles are.
	if got := e.Evaluate(e1, e1, 0).Force.Norm(); got != 0 {
		t.Fatalf("coincident force before update: got %g", got)
	}
	if got := e.Evaluate(e1, e2, 0).Force.Norm(); got != 0 {
		t.Fatalf("force before update: got %g", got)
	}
	if got := e.Evaluate(e1, e1.Neg(), 0).Force.Norm(); got != 0 {
		t.Fatalf("force before update: got %g", got)
	}

	// Establish a history of the sites being 2.0 apart.
	res := Resources{Reduce: identityReduce}
	if err := e.Update(e1, model.Vector{X: 3}, 0.001, res); err != nil {
		t.Fatalf("update: %v", err)
	}
	if e.Histogram() == nil {
		t.Fatal("working histogram not published after window boundary")
	}

	// Sites are now driven toward each other where the sampled
	// distribution exceeds the experimental one.
	force := e.Evaluate(e1, model.Vector{X: 3}, 0.001).Force
	if force.X <= 0 {
		t.Fatalf("expected positive x force pulling sites together, got %+v", force)
	}
	force = e.Evaluate(model.Vector{X: 3}, e1, 0.001).Force
	if force.X >= 0 {
		t.Fatalf("expected reversed force with swapped sites, got %+v", force)
	}

	// Coincident sites stay force-free after the histogram fills in.
	if got := e.Evaluate(e1, e1, 0.001).Force.Norm(); got != 0 {
		t.Fatalf("coincident force after update: got %g", got)
	}
}

func TestEnsembleHarmonicFlatBottom(t *testing.T) {
	p := peakedParams()
	p.MinDist = 5
	p.MaxDist = 5
	p.Experimental = []float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}
	e, err := NewEnsembleHarmonic(p)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	e1 := model.Vector{X: 1}

	// R = 2, below the flat-bottom region: drive the distance up, which
	// pushes the first site away from the second.
	force := e.Evaluate(e1, model.Vector{X: 3}, 0.001).Force
	if force.X >= 0 {
		t.Fatalf("below minDist: expected negative x force, got %+v", force)
	}
	// R = 6, above the region: drive the distance down.
	force = e.Evaluate(e1, model.Vector{X: 7}, 0.001).Force
	if force.X <= 0 {
		t.Fatalf("above maxDist: expected positive x force, got %+v", force)
	}
}

func TestEnsembleHarmonicRollingWindowEviction(t *testing.T) {
	p := peakedParams()
	p.NWindows = 2
	p.SamplePeriod = 0.5
	p.WindowUpdatePeriod = 1.0
	p.Experimental = make([]float64, p.NBins) // zero reference isolates the window average
	e, err := NewEnsembleHarmonic(p)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	res := Resources{Reduce: identityReduce}
	origin := model.Vector{}
	// Five window boundaries with different sampled distances; only the
	// last two may survive in the working histogram. Every window holds at
	// least one sample at its distance; call times sit well past each
	// boundary so the schedule comparisons have slack.
	distances := []float64{2, 3, 4, 8, 8}
	for i, d := range distances {
		for _, ts := range []float64{float64(i) + 0.75, float64(i) + 1.2} {
			if err := e.Update(model.Vector{X: d}, origin, ts, res); err != nil {
				t.Fatalf("update %d at %g: %v", i, ts, err)
			}
		}
	}

	// With both surviving windows sampled at R=8, the working histogram
	// equals the blurred density of a single sample at 8.
	blur, _ := stats.NewBlurToGrid(p.BinWidth, p.Sigma)
	want := make([]float64, p.NBins)
	blur.Apply([]float64{8}, want)

	got := e.Histogram()
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("bin %d: got %g want %g (older windows not evicted?)", i, got[i], want[i])
		}
	}
}

func TestEnsembleHarmonicWindowNeedsReduceHandle(t *testing.T) {
	e, err := NewEnsembleHarmonic(peakedParams())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := e.Update(model.Vector{X: 1}, model.Vector{}, 0.001, Resources{}); err == nil {
		t.Fatal("expected error for missing reduction handle at a window boundary")
	}
}
