// Package restraint implements the pairwise biasing potentials applied
// between two sites of a simulated system: the constant-rate Linear bias,
// its convergence-gated LinearStop variant, the self-tuning BRER coupling
// controller, and the cross-replica histogram-matching EnsembleHarmonic
// restraint.
//
// Evaluate is called by the host on every force evaluation, possibly from
// several worker threads at once, and never mutates persistent state.
// Update is called at most once per step on one coordinating worker and
// owns all mutation; anything Evaluate needs from Update is published
// through atomics.
package restraint

import (
	"fmt"

	"github.com/kassonlab/brer-md/internal/ensemble"
	"github.com/kassonlab/brer-md/internal/model"
)

// Resources is the per-call handle the host supplies to Update. It is not
// retained beyond the call.
type Resources struct {
	// Reduce performs the blocking cross-replica element-wise sum. Only
	// the ensemble restraint uses it.
	Reduce ensemble.ReduceFn
	// Stop asks the host to end the simulation after the current step.
	// Fire and forget; each restraint issues it at most once.
	Stop func()
}

// Restraint is one pairwise bias attached to a running simulation.
type Restraint interface {
	// Sites returns the indices of the two restrained sites.
	Sites() [2]int
	// Evaluate returns the force on the first site and the bias energy
	// for the current positions. Pure with respect to persistent state.
	Evaluate(p1, p2 model.Vector, t float64) model.ForceEnergy
	// Update advances the restraint's sampling and control state. Called
	// once per step on the coordinating worker only.
	Update(p1, p2 model.Vector, t float64, res Resources) error
}

// Kind selects a restraint flavor in the factory.
type Kind string

const (
	KindLinear           Kind = "linear"
	KindLinearStop       Kind = "linearstop"
	KindBRER             Kind = "brer"
	KindEnsembleHarmonic Kind = "ensemble"
)

// Config is the tagged construction request for one restraint: exactly the
// parameter set matching Kind must be present.
type Config struct {
	Kind             Kind
	Linear           *LinearParams
	LinearStop       *LinearStopParams
	BRER             *BRERParams
	EnsembleHarmonic *EnsembleHarmonicParams
}

// New builds a restraint from cfg. Missing or invalid parameters are a
// construction-time error; nothing is validated later.
func New(cfg Config) (Restraint, error) {
	switch cfg.Kind {
	case KindLinear:
		if cfg.Linear == nil {
			return nil, fmt.Errorf("linear restraint requires linear parameters")
		}
		return NewLinear(*cfg.Linear)
	case KindLinearStop:
		if cfg.LinearStop == nil {
			return nil, fmt.Errorf("linearstop restraint requires linearstop parameters")
		}
		return NewLinearStop(*cfg.LinearStop)
	case KindBRER:
		if cfg.BRER == nil {
			return nil, fmt.Errorf("brer restraint requires brer parameters")
		}
		return NewBRER(*cfg.BRER)
	case KindEnsembleHarmonic:
		if cfg.EnsembleHarmonic == nil {
			return nil, fmt.Errorf("ensemble restraint requires ensemble parameters")
		}
		return NewEnsembleHarmonic(*cfg.EnsembleHarmonic)
	default:
		return nil, fmt.Errorf("unknown restraint kind %q", cfg.Kind)
	}
}

// pairDistance returns p1-p2 and its norm.
func pairDistance(p1, p2 model.Vector) (model.Vector, float64) {
	d := p1.Sub(p2)
	return d, d.Norm()
}
