package restraint

import (
	"fmt"
	"math"

	"github.com/kassonlab/brer-md/internal/model"
	"github.com/kassonlab/brer-md/internal/paramlog"
	"github.com/kassonlab/brer-md/internal/schedule"
)

// LinearStopParams configures the convergence-phase LinearStop restraint.
type LinearStopParams struct {
	Sites        [2]int  `json:"sites"`
	Alpha        float64 `json:"alpha"`
	Target       float64 `json:"target"`
	Tolerance    float64 `json:"tolerance"`
	SamplePeriod float64 `json:"sample_period"`
	LogFile      string  `json:"logging_filename"`
}

func (p LinearStopParams) validate() error {
	if p.Target == 0 {
		return fmt.Errorf("linearstop restraint target must be nonzero")
	}
	if p.Tolerance <= 0 {
		return fmt.Errorf("linearstop restraint tolerance must be > 0, got %g", p.Tolerance)
	}
	if p.SamplePeriod <= 0 {
		return fmt.Errorf("linearstop restraint sample period must be > 0, got %g", p.SamplePeriod)
	}
	return nil
}

// LinearStop applies the same force law as Linear and watches the pair
// distance. Once |R - target| falls inside the tolerance it writes a final
// log row, closes the log, and asks the host to stop the simulation. The
// stop signal is issued exactly once; afterwards Update is a no-op.
type LinearStop struct {
	sites     [2]int
	alpha     float64
	target    float64
	tolerance float64
	logFile   string

	sampler    *schedule.Sampler
	log        *paramlog.Writer
	started    bool
	stopCalled bool
}

func NewLinearStop(p LinearStopParams) (*LinearStop, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	sampler, err := schedule.NewSampler(p.SamplePeriod)
	if err != nil {
		return nil, err
	}
	return &LinearStop{
		sites:     p.Sites,
		alpha:     p.Alpha,
		target:    p.Target,
		tolerance: p.Tolerance,
		logFile:   p.LogFile,
		sampler:   sampler,
	}, nil
}

func (l *LinearStop) Sites() [2]int {
	return l.sites
}

// Stopped reports whether the convergence stop signal has been issued.
func (l *LinearStop) Stopped() bool {
	return l.stopCalled
}

func (l *LinearStop) Evaluate(p1, p2 model.Vector, _ float64) model.ForceEnergy {
	d, r := pairDistance(p1, p2)

	out := model.ForceEnergy{Energy: l.alpha / l.target * r}
	if r != 0 && r != l.target {
		coeff := l.alpha / l.target / r
		if r > l.target {
			coeff = -coeff
		}
		out.Force = d.Scale(coeff)
	}
	return out
}

func (l *LinearStop) Update(p1, p2 model.Vector, t float64, res Resources) error {
	if l.stopCalled {
		return nil
	}
	_, r := pairDistance(p1, p2)
	converged := math.Abs(r-l.target) < l.tolerance

	if !l.started {
		l.sampler.Start(t)
		l.log = paramlog.Open(l.logFile, []string{"time", "R", "target", "alpha"})
		l.log.WriteRow(t, r, l.target, l.alpha)
		l.started = true
	}

	if !converged && l.sampler.Due(t) {
		l.log.WriteRow(t, r, l.target, l.alpha)
		l.sampler.Advance()
	}

	if converged {
		l.stopCalled = true
		l.log.WriteRow(t, r, l.target, l.alpha)
		l.log.Close()
		if res.Stop == nil {
			return fmt.Errorf("linearstop converged but no stop signal was provided")
		}
		res.Stop()
	}
	return nil
}

// Close releases the log handle if convergence never closed it.
func (l *LinearStop) Close() {
	l.log.Close()
}
