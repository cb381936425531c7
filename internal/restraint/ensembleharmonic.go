package restraint

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/kassonlab/brer-md/internal/model"
	"github.com/kassonlab/brer-md/internal/schedule"
	"github.com/kassonlab/brer-md/internal/stats"
	"github.com/kassonlab/brer-md/internal/window"
)

// EnsembleHarmonicParams configures the cross-replica histogram-matching
// restraint.
type EnsembleHarmonicParams struct {
	Sites              [2]int    `json:"sites"`
	NBins              int       `json:"nbins"`
	BinWidth           float64   `json:"binwidth"`
	MinDist            float64   `json:"min_dist"`
	MaxDist            float64   `json:"max_dist"`
	Experimental       []float64 `json:"experimental"`
	NSamples           int       `json:"nsamples"`
	SamplePeriod       float64   `json:"sample_period"`
	NWindows           int       `json:"nwindows"`
	WindowUpdatePeriod float64   `json:"window_update_period"`
	K                  float64   `json:"k"`
	Sigma              float64   `json:"sigma"`
}

func (p EnsembleHarmonicParams) validate() error {
	if p.NBins <= 0 {
		return fmt.Errorf("ensemble restraint bin count must be > 0, got %d", p.NBins)
	}
	if p.BinWidth <= 0 {
		return fmt.Errorf("ensemble restraint bin width must be > 0, got %g", p.BinWidth)
	}
	if p.MinDist > p.MaxDist {
		return fmt.Errorf("ensemble restraint min distance %g exceeds max distance %g", p.MinDist, p.MaxDist)
	}
	if len(p.Experimental) != p.NBins {
		return fmt.Errorf("ensemble restraint reference histogram has %d bins, want %d", len(p.Experimental), p.NBins)
	}
	if p.NSamples <= 0 {
		return fmt.Errorf("ensemble restraint samples per window must be > 0, got %d", p.NSamples)
	}
	if p.SamplePeriod <= 0 {
		return fmt.Errorf("ensemble restraint sample period must be > 0, got %g", p.SamplePeriod)
	}
	if p.NWindows <= 0 {
		return fmt.Errorf("ensemble restraint window count must be > 0, got %d", p.NWindows)
	}
	if p.WindowUpdatePeriod <= 0 {
		return fmt.Errorf("ensemble restraint window update period must be > 0, got %g", p.WindowUpdatePeriod)
	}
	if p.Sigma <= 0 {
		return fmt.Errorf("ensemble restraint smoothing width must be > 0, got %g", p.Sigma)
	}
	return nil
}

// EnsembleHarmonic biases the pair distance toward an experimental
// distance distribution shared across an ensemble of replicas. Outside
// [minDist, maxDist] it is a flat-bottom restoring potential; inside, the
// force follows the working histogram: the rolling average over recent
// windows of the cross-replica sampled distribution minus the experimental
// one.
//
// Update keeps two critical sections, one around the sample buffer and one
// around the window buffer; the window-boundary path takes the window lock
// first and then the sample lock. Evaluate never takes either: it reads an
// immutable working-histogram snapshot published at each window boundary.
type EnsembleHarmonic struct {
	sites        [2]int
	nBins        int
	binWidth     float64
	minDist      float64
	maxDist      float64
	experimental []float64
	k            float64
	sigma        float64

	blur      *stats.BlurToGrid
	histogram atomic.Pointer[[]float64]

	samplesMu sync.Mutex
	samples   []float64
	sampling  *schedule.Sampler

	windowsMu sync.Mutex
	rolling   *window.RollingBuffer
	windowing *schedule.Sampler
}

func NewEnsembleHarmonic(p EnsembleHarmonicParams) (*EnsembleHarmonic, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	blur, err := stats.NewBlurToGrid(p.BinWidth, p.Sigma)
	if err != nil {
		return nil, err
	}
	rolling, err := window.NewRollingBuffer(p.NWindows)
	if err != nil {
		return nil, err
	}
	sampling, err := schedule.NewSampler(p.SamplePeriod)
	if err != nil {
		return nil, err
	}
	windowing, err := schedule.NewSampler(p.WindowUpdatePeriod)
	if err != nil {
		return nil, err
	}
	// Both grids are anchored at the start of the simulation clock.
	sampling.Start(0)
	windowing.Start(0)
	return &EnsembleHarmonic{
		sites:        p.Sites,
		nBins:        p.NBins,
		binWidth:     p.BinWidth,
		minDist:      p.MinDist,
		maxDist:      p.MaxDist,
		experimental: append([]float64(nil), p.Experimental...),
		k:            p.K,
		sigma:        p.Sigma,
		blur:         blur,
		samples:      make([]float64, 0, p.NSamples),
		sampling:     sampling,
		rolling:      rolling,
		windowing:    windowing,
	}, nil
}

func (e *EnsembleHarmonic) Sites() [2]int {
	return e.sites
}

// Histogram returns the current working histogram snapshot, or nil before
// the first window boundary.
func (e *EnsembleHarmonic) Histogram() []float64 {
	if h := e.histogram.Load(); h != nil {
		return *h
	}
	return nil
}

func (e *EnsembleHarmonic) Evaluate(p1, p2 model.Vector, _ float64) model.ForceEnergy {
	d, r := pairDistance(p1, p2)

	var out model.ForceEnergy
	if r == 0 {
		// Force direction is undefined at zero separation.
		return out
	}

	var f float64
	switch {
	case r > e.maxDist:
		f = e.k * (e.maxDist - r)
	case r < e.minDist:
		f = e.k * (e.minDist - r)
	default:
		hist := e.Histogram()
		if hist == nil {
			return out
		}
		normConst := math.Sqrt(2*math.Pi) * math.Pow(e.sigma, 3)
		sum := 0.0
		for n, h := range hist {
			x := float64(n)*e.binWidth - r
			sum += h * x / normConst * math.Exp(-0.5*(x/e.sigma)*(x/e.sigma))
		}
		f = -e.k * sum
	}
	out.Force = d.Scale(f / r)
	return out
}

func (e *EnsembleHarmonic) Update(p1, p2 model.Vector, t float64, res Resources) error {
	_, r := pairDistance(p1, p2)

	e.samplesMu.Lock()
	if e.sampling.Due(t) {
		e.samples = append(e.samples, r)
		e.sampling.Advance()
	}
	e.samplesMu.Unlock()

	// Window lock before sample lock; the boundary path reads and resets
	// the sample buffer while holding both.
	e.windowsMu.Lock()
	defer e.windowsMu.Unlock()
	e.samplesMu.Lock()
	defer e.samplesMu.Unlock()
	if !e.windowing.Due(t) {
		return nil
	}
	if res.Reduce == nil {
		return fmt.Errorf("ensemble restraint window update requires a reduction handle")
	}

	smoothed, err := window.NewMatrix(1, e.nBins)
	if err != nil {
		return err
	}
	e.blur.Apply(e.samples, smoothed.Data())

	reduced, err := window.NewMatrix(1, e.nBins)
	if err != nil {
		return err
	}
	if err := res.Reduce(smoothed, reduced); err != nil {
		return fmt.Errorf("ensemble reduction failed: %w", err)
	}
	e.rolling.Push(reduced)

	working := make([]float64, e.nBins)
	if err := e.rolling.MeanDifference(e.experimental, working); err != nil {
		return err
	}
	e.histogram.Store(&working)

	// The window grid stays anchored at time zero; the sample grid is
	// re-anchored at the boundary to clean up scheduling slack.
	e.windowing.Advance()
	e.samples = e.samples[:0]
	e.sampling.Reset(t)
	return nil
}
