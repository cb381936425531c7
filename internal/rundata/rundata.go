// Package rundata holds the mutable state of a restrained simulation run:
// the general parameters shared by all pairs, the per-pair parameters that
// evolve across phases, and the state file that carries both between
// iterations.
package rundata

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/kassonlab/brer-md/internal/model"
	"github.com/kassonlab/brer-md/internal/pairdata"
)

// SchemaVersion tags persisted run state so older state files are refused
// instead of misread.
const SchemaVersion = 1

// GeneralParams apply to every pair in the run.
type GeneralParams struct {
	A              float64     `json:"A"`
	Tau            float64     `json:"tau"`
	Tolerance      float64     `json:"tolerance"`
	NumSamples     int         `json:"num_samples"`
	SamplePeriod   float64     `json:"sample_period"`
	ProductionTime float64     `json:"production_time"`
	StartTime      float64     `json:"start_time"`
	EndTime        float64     `json:"end_time"`
	EnsembleNum    int         `json:"ensemble_num"`
	Iteration      int         `json:"iteration"`
	Phase          model.Phase `json:"phase"`
	Seed           int64       `json:"seed"`
}

// DefaultGeneral returns the stock parameter set for a new run.
func DefaultGeneral() GeneralParams {
	return GeneralParams{
		A:              50,
		Tau:            50,
		Tolerance:      0.25,
		NumSamples:     50,
		SamplePeriod:   100,
		ProductionTime: 10000,
		EnsembleNum:    1,
		Iteration:      0,
		Phase:          model.PhaseTraining,
	}
}

func (g GeneralParams) Validate() error {
	if g.A <= 0 {
		return fmt.Errorf("A must be positive, got %g", g.A)
	}
	if g.Tau <= 0 {
		return fmt.Errorf("tau must be positive, got %g", g.Tau)
	}
	if g.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %g", g.Tolerance)
	}
	if g.NumSamples <= 0 {
		return fmt.Errorf("num_samples must be positive, got %d", g.NumSamples)
	}
	if g.SamplePeriod <= 0 {
		return fmt.Errorf("sample_period must be positive, got %g", g.SamplePeriod)
	}
	if g.ProductionTime <= 0 {
		return fmt.Errorf("production_time must be positive, got %g", g.ProductionTime)
	}
	if g.EnsembleNum < 1 {
		return fmt.Errorf("ensemble_num must be at least 1, got %d", g.EnsembleNum)
	}
	if g.Iteration < 0 {
		return fmt.Errorf("iteration must not be negative, got %d", g.Iteration)
	}
	if !g.Phase.Valid() {
		return fmt.Errorf("unknown phase %q", g.Phase)
	}
	return nil
}

// PairParams is the evolving state of one restrained pair.
type PairParams struct {
	Name    string  `json:"name"`
	Sites   [2]int  `json:"sites"`
	LogFile string  `json:"logging_filename"`
	Alpha   float64 `json:"alpha"`
	Target  float64 `json:"target"`
}

func (p PairParams) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pair name must not be empty")
	}
	if p.LogFile == "" {
		return fmt.Errorf("pair %s: logging filename must not be empty", p.Name)
	}
	return nil
}

// State is everything a member of the ensemble needs to resume work.
type State struct {
	SchemaVersion int                   `json:"schema_version"`
	RunID         string                `json:"run_id"`
	General       GeneralParams         `json:"general"`
	Pairs         map[string]PairParams `json:"pairs"`
}

// New builds fresh run state from reference pair data and drawn targets. The
// per-pair log file defaults to "<name>.log" and alpha starts at zero.
func New(runID string, general GeneralParams, pairs pairdata.Collection, targets map[string]float64) (State, error) {
	if runID == "" {
		return State{}, fmt.Errorf("run id must not be empty")
	}
	if err := general.Validate(); err != nil {
		return State{}, err
	}
	if len(pairs) == 0 {
		return State{}, fmt.Errorf("no pairs supplied")
	}
	st := State{
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		General:       general,
		Pairs:         make(map[string]PairParams, len(pairs)),
	}
	for name, p := range pairs {
		target, ok := targets[name]
		if !ok {
			return State{}, fmt.Errorf("no target drawn for pair %s", name)
		}
		st.Pairs[name] = PairParams{
			Name:    name,
			Sites:   p.RestraintSites(),
			LogFile: name + ".log",
			Alpha:   0,
			Target:  target,
		}
	}
	return st, nil
}

func (s State) Validate() error {
	if s.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported state schema version %d, want %d", s.SchemaVersion, SchemaVersion)
	}
	if s.RunID == "" {
		return fmt.Errorf("run id must not be empty")
	}
	if err := s.General.Validate(); err != nil {
		return err
	}
	if len(s.Pairs) == 0 {
		return fmt.Errorf("state holds no pairs")
	}
	for name, p := range s.Pairs {
		if p.Name != name {
			return fmt.Errorf("pair keyed %q carries name %q", name, p.Name)
		}
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// FinishTraining records the trained coupling constants and moves the run to
// the convergence phase. Alpha magnitudes carry over; the sign does not,
// since convergence pulls toward the target from either side.
func (s *State) FinishTraining(alphas map[string]float64) error {
	if s.General.Phase != model.PhaseTraining {
		return fmt.Errorf("cannot finish training from phase %q", s.General.Phase)
	}
	for name := range s.Pairs {
		if _, ok := alphas[name]; !ok {
			return fmt.Errorf("no trained alpha for pair %s", name)
		}
	}
	for name, p := range s.Pairs {
		p.Alpha = math.Abs(alphas[name])
		s.Pairs[name] = p
	}
	s.General.Phase = model.PhaseConvergence
	return nil
}

// FinishConvergence records when the run hit its targets and moves it to
// production. Production runs until startTime + production_time.
func (s *State) FinishConvergence(startTime float64) error {
	if s.General.Phase != model.PhaseConvergence {
		return fmt.Errorf("cannot finish convergence from phase %q", s.General.Phase)
	}
	s.General.StartTime = startTime
	s.General.EndTime = startTime + s.General.ProductionTime
	s.General.Phase = model.PhaseProduction
	return nil
}

// FinishProduction closes the iteration: bump the counter, reset the
// couplings, and install freshly drawn targets for the next training phase.
func (s *State) FinishProduction(targets map[string]float64) error {
	if s.General.Phase != model.PhaseProduction {
		return fmt.Errorf("cannot finish production from phase %q", s.General.Phase)
	}
	for name := range s.Pairs {
		if _, ok := targets[name]; !ok {
			return fmt.Errorf("no target drawn for pair %s", name)
		}
	}
	for name, p := range s.Pairs {
		p.Alpha = 0
		p.Target = targets[name]
		s.Pairs[name] = p
	}
	s.General.Iteration++
	s.General.StartTime = 0
	s.General.EndTime = 0
	s.General.Phase = model.PhaseTraining
	return nil
}

// Save writes the state file. The write goes through a temp file so a crash
// never leaves a half-written state.json behind.
func (s State) Save(path string) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads and validates a state file.
func Load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, fmt.Errorf("read run state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("parse run state: %w", err)
	}
	if err := st.Validate(); err != nil {
		return State{}, err
	}
	return st, nil
}
