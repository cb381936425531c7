package restraint

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/kassonlab/brer-md/internal/model"
	"github.com/kassonlab/brer-md/internal/paramlog"
	"github.com/kassonlab/brer-md/internal/schedule"
	"github.com/kassonlab/brer-md/internal/stats"
)

// BRERParams configures the training-phase adaptive coupling controller.
type BRERParams struct {
	Sites     [2]int  `json:"sites"`
	Alpha     float64 `json:"alpha"`
	A         float64 `json:"a"`
	Tau       float64 `json:"tau"`
	NSamples  int     `json:"num_samples"`
	Target    float64 `json:"target"`
	Tolerance float64 `json:"tolerance"`
	LogFile   string  `json:"parameter_filename"`
}

func (p BRERParams) validate() error {
	if p.A <= 0 {
		return fmt.Errorf("brer restraint energy scale A must be > 0, got %g", p.A)
	}
	if p.Tau <= 0 {
		return fmt.Errorf("brer restraint window duration tau must be > 0, got %g", p.Tau)
	}
	if p.NSamples <= 0 {
		return fmt.Errorf("brer restraint samples per window must be > 0, got %d", p.NSamples)
	}
	if p.Target == 0 {
		return fmt.Errorf("brer restraint target must be nonzero")
	}
	if p.Tolerance <= 0 {
		return fmt.Errorf("brer restraint tolerance must be > 0, got %g", p.Tolerance)
	}
	return nil
}

// BRER tunes the coupling constant alpha with an Adagrad-style update once
// per window of tau time units. Within a window it accumulates the mean and
// variance of the pair distance; at the window boundary the gradient proxy
// g = (1 - mean/target)*variance drives the alpha step with learning rate
// A/sqrt(sum of squared gradients). Training stops when consecutive alpha
// values agree within the tolerance (rescaled by A once, at first use).
//
// The force law is energy = alpha*R/target with force -(alpha/target/R)*d
// for R != 0. Unlike Linear there is no zero-force case at R == target;
// the reference controller behaves the same way.
type BRER struct {
	sites        [2]int
	a            float64
	tau          float64
	nSamples     int
	samplePeriod float64
	target       float64
	tolerance    float64
	logFile      string

	// alphaBits carries the working alpha from Update to concurrent
	// Evaluate calls.
	alphaBits atomic.Uint64

	alpha     float64
	alphaPrev float64
	alphaMax  float64
	g         float64
	gsqrsum   float64
	eta       float64
	converged bool

	running        *stats.Running
	sampler        *schedule.Sampler
	windowStart    float64
	nextUpdateTime float64
	initialized    bool
	log            *paramlog.Writer
}

func NewBRER(p BRERParams) (*BRER, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	samplePeriod := p.Tau / float64(p.NSamples)
	sampler, err := schedule.NewSampler(samplePeriod)
	if err != nil {
		return nil, err
	}
	b := &BRER{
		sites:        p.Sites,
		a:            p.A,
		tau:          p.Tau,
		nSamples:     p.NSamples,
		samplePeriod: samplePeriod,
		target:       p.Target,
		tolerance:    p.Tolerance,
		logFile:      p.LogFile,
		alpha:        p.Alpha,
		running:      stats.NewRunning(0),
		sampler:      sampler,
	}
	b.alphaBits.Store(math.Float64bits(p.Alpha))
	return b, nil
}

func (b *BRER) Sites() [2]int {
	return b.sites
}

// Alpha returns the current coupling constant. Safe to call concurrently
// with Update.
func (b *BRER) Alpha() float64 {
	return math.Float64frombits(b.alphaBits.Load())
}

// Converged reports whether training has finished.
func (b *BRER) Converged() bool {
	return b.converged
}

// Mean returns the window-local mean distance accumulated so far.
func (b *BRER) Mean() float64 {
	return b.running.Mean()
}

// Variance returns the window-local variance accumulated so far.
func (b *BRER) Variance() float64 {
	return b.running.Variance()
}

func (b *BRER) Evaluate(p1, p2 model.Vector, _ float64) model.ForceEnergy {
	d, r := pairDistance(p1, p2)
	alpha := b.Alpha()

	out := model.ForceEnergy{Energy: alpha * r / b.target}
	if r != 0 {
		out.Force = d.Scale(-(alpha / b.target / r))
	}
	return out
}

func (b *BRER) Update(p1, p2 model.Vector, t float64, res Resources) error {
	if b.converged {
		return nil
	}
	_, r := pairDistance(p1, p2)

	if !b.initialized {
		b.sampler.Start(t)
		b.windowStart = t
		b.nextUpdateTime = t + b.tau
		b.running.Reset(r)
		// The configured tolerance is a fraction of the maximum energy
		// input; scale it to the controller's units exactly once.
		b.tolerance *= b.a
		b.log = paramlog.Create(b.logFile,
			[]string{"time", "R", "target", "converged", "alpha", "alpha_max", "g", "eta"})
		b.writeRow(t, r)
		b.initialized = true
	}

	if b.sampler.Due(t) {
		b.running.Add(r)
		b.sampler.Advance()
	}

	if t >= b.nextUpdateTime {
		b.g = (1 - b.running.Mean()/b.target) * b.running.Variance()
		b.gsqrsum += b.g * b.g
		b.eta = b.a / math.Sqrt(b.gsqrsum)
		b.alphaPrev = b.alpha
		b.alpha = b.alphaPrev - b.eta*b.g
		b.alphaBits.Store(math.Float64bits(b.alpha))
		if math.Abs(b.alpha) > b.alphaMax {
			b.alphaMax = math.Abs(b.alpha)
		}

		b.running.Reset(r)
		b.windowStart = t
		b.nextUpdateTime = b.windowStart + float64(b.nSamples)*b.samplePeriod
		b.sampler.Reset(t)
		b.writeRow(t, r)

		if math.Abs(b.alpha-b.alphaPrev) < b.tolerance {
			b.converged = true
			b.writeRow(t, r)
			b.log.Close()
			if res.Stop == nil {
				return fmt.Errorf("brer converged but no stop signal was provided")
			}
			res.Stop()
		}
	}
	return nil
}

func (b *BRER) writeRow(t, r float64) {
	b.log.WriteRow(t, r, b.target, b.converged, b.alpha, b.alphaMax, b.g, b.eta)
}

// Close releases the log handle if convergence never closed it.
func (b *BRER) Close() {
	b.log.Close()
}
