package brer

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kassonlab/brer-md/internal/ensemble"
	"github.com/kassonlab/brer-md/internal/model"
	"github.com/kassonlab/brer-md/internal/pairdata"
	"github.com/kassonlab/brer-md/internal/restraint"
	"github.com/kassonlab/brer-md/internal/rundata"
)

// Step is one trajectory frame: the simulation time and the positions of
// both restrained sites for every pair, keyed by pair name.
type Step struct {
	Time      float64
	Positions map[string][2]model.Vector
}

// TrajectorySource yields trajectory frames in time order. Next returns
// false when the trajectory is exhausted.
type TrajectorySource interface {
	Next(ctx context.Context) (Step, bool, error)
}

type sliceTrajectory struct {
	steps []Step
	pos   int
}

// Steps wraps a fixed frame sequence as a TrajectorySource.
func Steps(steps []Step) TrajectorySource {
	return &sliceTrajectory{steps: steps}
}

func (s *sliceTrajectory) Next(ctx context.Context) (Step, bool, error) {
	if err := ctx.Err(); err != nil {
		return Step{}, false, err
	}
	if s.pos >= len(s.steps) {
		return Step{}, false, nil
	}
	step := s.steps[s.pos]
	s.pos++
	return step, true, nil
}

// PhaseSummary reports one RunPhase call.
type PhaseSummary struct {
	RunID     string
	Phase     model.Phase
	Iteration int
	StartTime float64
	EndTime   float64
	// Completed is true when the phase reached its own exit condition:
	// every restraint converged for training and convergence, the wall-time
	// budget for production. An exhausted trajectory leaves the phase
	// incomplete and the state untouched, so the phase can be resumed.
	Completed bool
	Alphas    map[string]float64
	Targets   map[string]float64
	NextPhase model.Phase
}

type phaseRestraint struct {
	name    string
	r       restraint.Restraint
	stopped bool
	close   func()
	alpha   func() float64
}

// RunPhase drives the current phase of a run against a trajectory: it
// builds one restraint per pair for the phase the run is in, feeds it every
// frame, and on completion advances the run to the next phase and persists
// the result.
func (c *Client) RunPhase(ctx context.Context, runID string, member int, traj TrajectorySource) (PhaseSummary, error) {
	st, err := c.RunState(ctx, runID, member)
	if err != nil {
		return PhaseSummary{}, err
	}
	phase := st.General.Phase
	iteration := st.General.Iteration

	phaseDir, err := c.layout.EnsurePhaseDir(member, iteration, phase)
	if err != nil {
		return PhaseSummary{}, err
	}

	restraints, err := buildPhaseRestraints(st, phaseDir)
	if err != nil {
		return PhaseSummary{}, err
	}
	defer func() {
		for _, pr := range restraints {
			pr.close()
		}
	}()

	startTime, lastTime, sawFrame := 0.0, 0.0, false
	completed := false
	for {
		step, ok, err := traj.Next(ctx)
		if err != nil {
			return PhaseSummary{}, err
		}
		if !ok {
			break
		}
		if !sawFrame {
			startTime = step.Time
			sawFrame = true
		}
		lastTime = step.Time

		for _, pr := range restraints {
			pos, ok := step.Positions[pr.name]
			if !ok {
				return PhaseSummary{}, fmt.Errorf("frame at t=%g carries no positions for pair %s", step.Time, pr.name)
			}
			pr.r.Evaluate(pos[0], pos[1], step.Time)
			res := restraint.Resources{Stop: func() { pr.stopped = true }}
			if err := pr.r.Update(pos[0], pos[1], step.Time, res); err != nil {
				return PhaseSummary{}, fmt.Errorf("update pair %s: %w", pr.name, err)
			}
		}

		if phase == model.PhaseProduction {
			if step.Time >= st.General.EndTime {
				completed = true
				break
			}
			continue
		}
		if allStopped(restraints) {
			completed = true
			break
		}
	}

	record := rundata.NewPhaseRecord(st, startTime, lastTime, completed)
	summary := PhaseSummary{
		RunID:     runID,
		Phase:     phase,
		Iteration: iteration,
		StartTime: startTime,
		EndTime:   lastTime,
		Completed: completed,
		Alphas:    record.Alphas,
		Targets:   record.Targets,
		NextPhase: phase,
	}

	if completed {
		if err := c.advancePhase(ctx, &st, restraints, lastTime); err != nil {
			return PhaseSummary{}, err
		}
		summary.NextPhase = st.General.Phase
		if phase == model.PhaseTraining {
			// Report the trained couplings, not the zeros the phase
			// started with. The record shares the map.
			for name, p := range st.Pairs {
				summary.Alphas[name] = p.Alpha
			}
		}
	}

	if err := c.store.AppendPhaseRecord(ctx, runID, record); err != nil {
		return PhaseSummary{}, err
	}
	if err := c.store.SaveRunState(ctx, st); err != nil {
		return PhaseSummary{}, err
	}
	if err := st.Save(c.layout.StatePath(member)); err != nil {
		return PhaseSummary{}, err
	}
	return summary, nil
}

func buildPhaseRestraints(st rundata.State, phaseDir string) ([]*phaseRestraint, error) {
	g := st.General
	restraints := make([]*phaseRestraint, 0, len(st.Pairs))
	for _, name := range pairNames(st) {
		p := st.Pairs[name]
		logFile := filepath.Join(phaseDir, p.LogFile)
		pr := &phaseRestraint{name: name}
		switch g.Phase {
		case model.PhaseTraining:
			b, err := restraint.NewBRER(restraint.BRERParams{
				Sites:     p.Sites,
				Alpha:     p.Alpha,
				A:         g.A,
				Tau:       g.Tau,
				NSamples:  g.NumSamples,
				Target:    p.Target,
				Tolerance: g.Tolerance,
				LogFile:   logFile,
			})
			if err != nil {
				return nil, fmt.Errorf("pair %s: %w", name, err)
			}
			pr.r, pr.close, pr.alpha = b, b.Close, b.Alpha
		case model.PhaseConvergence:
			l, err := restraint.NewLinearStop(restraint.LinearStopParams{
				Sites:        p.Sites,
				Alpha:        p.Alpha,
				Target:       p.Target,
				Tolerance:    g.Tolerance,
				SamplePeriod: g.SamplePeriod,
				LogFile:      logFile,
			})
			if err != nil {
				return nil, fmt.Errorf("pair %s: %w", name, err)
			}
			pr.r, pr.close = l, l.Close
		case model.PhaseProduction:
			l, err := restraint.NewLinear(restraint.LinearParams{
				Sites:        p.Sites,
				Alpha:        p.Alpha,
				Target:       p.Target,
				SamplePeriod: g.SamplePeriod,
				LogFile:      logFile,
			})
			if err != nil {
				return nil, fmt.Errorf("pair %s: %w", name, err)
			}
			pr.r, pr.close = l, l.Close
		default:
			return nil, fmt.Errorf("unknown phase %q", g.Phase)
		}
		restraints = append(restraints, pr)
	}
	return restraints, nil
}

func (c *Client) advancePhase(ctx context.Context, st *rundata.State, restraints []*phaseRestraint, lastTime float64) error {
	switch st.General.Phase {
	case model.PhaseTraining:
		alphas := make(map[string]float64, len(restraints))
		for _, pr := range restraints {
			alphas[pr.name] = pr.alpha()
		}
		return st.FinishTraining(alphas)
	case model.PhaseConvergence:
		return st.FinishConvergence(lastTime)
	case model.PhaseProduction:
		pairs, ok, err := c.store.GetPairData(ctx, st.RunID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no pair data for run %s", st.RunID)
		}
		rng := rand.New(rand.NewSource(st.General.Seed + int64(st.General.Iteration) + 1))
		targets, err := pairdata.SampleTargets(rng, pairs)
		if err != nil {
			return err
		}
		return st.FinishProduction(targets)
	default:
		return fmt.Errorf("unknown phase %q", st.General.Phase)
	}
}

func allStopped(restraints []*phaseRestraint) bool {
	for _, pr := range restraints {
		if !pr.stopped {
			return false
		}
	}
	return true
}

func pairNames(st rundata.State) []string {
	names := make([]string, 0, len(st.Pairs))
	for name := range st.Pairs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnsembleResult is one replica's view after an ensemble run: the working
// histogram its restraint ended up biasing against.
type EnsembleResult struct {
	Member    int
	Histogram []float64
}

// RunEnsemble drives one ensemble-harmonic restraint per replica trajectory,
// all sharing an in-process reducer, and returns each replica's final
// working histogram. All replicas must supply frames for the pair named by
// params' sites under the given pair name.
func RunEnsemble(ctx context.Context, pairName string, params restraint.EnsembleHarmonicParams, trajectories []TrajectorySource) ([]EnsembleResult, error) {
	if len(trajectories) == 0 {
		return nil, fmt.Errorf("at least one trajectory is required")
	}
	reducer, err := ensemble.NewLocalEnsemble(len(trajectories), 1, params.NBins)
	if err != nil {
		return nil, err
	}

	results := make([]EnsembleResult, len(trajectories))
	var mu sync.Mutex

	grp, ctx := errgroup.WithContext(ctx)
	for i, traj := range trajectories {
		i, traj := i, traj // per-iteration copies; required while go.mod targets go < 1.22
		grp.Go(func() error {
			r, err := restraint.NewEnsembleHarmonic(params)
			if err != nil {
				return err
			}
			res := restraint.Resources{Reduce: reducer.Reduce}
			for {
				step, ok, err := traj.Next(ctx)
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				pos, ok := step.Positions[pairName]
				if !ok {
					return fmt.Errorf("replica %d: frame at t=%g carries no positions for pair %s", i, step.Time, pairName)
				}
				r.Evaluate(pos[0], pos[1], step.Time)
				if err := r.Update(pos[0], pos[1], step.Time, res); err != nil {
					return fmt.Errorf("replica %d: %w", i, err)
				}
			}
			mu.Lock()
			results[i] = EnsembleResult{Member: i, Histogram: r.Histogram()}
			mu.Unlock()
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
