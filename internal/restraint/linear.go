package restraint

import (
	"fmt"

	"github.com/kassonlab/brer-md/internal/model"
	"github.com/kassonlab/brer-md/internal/paramlog"
	"github.com/kassonlab/brer-md/internal/schedule"
)

// LinearParams configures the production-phase Linear restraint.
type LinearParams struct {
	Sites        [2]int  `json:"sites"`
	Alpha        float64 `json:"alpha"`
	Target       float64 `json:"target"`
	SamplePeriod float64 `json:"sample_period"`
	LogFile      string  `json:"logging_filename"`
}

func (p LinearParams) validate() error {
	if p.Target == 0 {
		return fmt.Errorf("linear restraint target must be nonzero")
	}
	if p.SamplePeriod <= 0 {
		return fmt.Errorf("linear restraint sample period must be > 0, got %g", p.SamplePeriod)
	}
	return nil
}

// Linear applies a constant-magnitude force alpha/target directed to pull
// the pair distance toward target, with energy alpha*R/target. It logs the
// instantaneous distance on a fixed schedule and runs for the externally
// controlled simulation duration; there is no convergence logic.
type Linear struct {
	sites   [2]int
	alpha   float64
	target  float64
	logFile string

	sampler *schedule.Sampler
	log     *paramlog.Writer
	started bool
}

func NewLinear(p LinearParams) (*Linear, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	sampler, err := schedule.NewSampler(p.SamplePeriod)
	if err != nil {
		return nil, err
	}
	return &Linear{
		sites:   p.Sites,
		alpha:   p.Alpha,
		target:  p.Target,
		logFile: p.LogFile,
		sampler: sampler,
	}, nil
}

func (l *Linear) Sites() [2]int {
	return l.sites
}

func (l *Linear) Evaluate(p1, p2 model.Vector, _ float64) model.ForceEnergy {
	d, r := pairDistance(p1, p2)

	out := model.ForceEnergy{Energy: l.alpha * r / l.target}
	// Direction is undefined at zero separation and the pair is at
	// equilibrium exactly at the target distance.
	if r != 0 && r != l.target {
		coeff := l.alpha / l.target / r
		if r > l.target {
			coeff = -coeff
		}
		out.Force = d.Scale(coeff)
	}
	return out
}

func (l *Linear) Update(p1, p2 model.Vector, t float64, _ Resources) error {
	_, r := pairDistance(p1, p2)

	if !l.started {
		l.sampler.Start(t)
		l.log = paramlog.Open(l.logFile, []string{"time", "R", "target", "alpha"})
		l.log.WriteRow(t, r, l.target, l.alpha)
		l.started = true
	}

	if l.sampler.Due(t) {
		l.log.WriteRow(t, r, l.target, l.alpha)
		l.sampler.Advance()
	}
	return nil
}

// Close releases the log handle at simulation teardown.
func (l *Linear) Close() {
	l.log.Close()
}
