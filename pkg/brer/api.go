// Package brer is the public interface to the restrained-ensemble workflow:
// it sets up runs, persists their state, and drives the per-phase restraints
// against a host-supplied trajectory.
package brer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/kassonlab/brer-md/internal/pairdata"
	"github.com/kassonlab/brer-md/internal/rundata"
	"github.com/kassonlab/brer-md/internal/storage"
	"github.com/kassonlab/brer-md/internal/workdir"
)

const (
	defaultWorkDir = "brer_runs"
	defaultDBPath  = "brer.db"
)

type Options struct {
	StoreKind string
	DBPath    string
	WorkDir   string
}

type Client struct {
	store  storage.Store
	layout *workdir.Layout
}

type SetupRequest struct {
	// PairsFile points at the reference pair-data JSON. Ignored when Pairs
	// is set directly.
	PairsFile string
	Pairs     pairdata.Collection
	// General overrides the stock parameters field by field; zero fields
	// keep their defaults.
	General rundata.GeneralParams
	Member  int
	Seed    int64
}

type SetupSummary struct {
	RunID     string
	Targets   map[string]float64
	StateFile string
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	workDir := opts.WorkDir
	if workDir == "" {
		workDir = defaultWorkDir
	}

	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}
	layout, err := workdir.New(workDir)
	if err != nil {
		return nil, err
	}

	return &Client{store: store, layout: layout}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// InitRun creates a run: loads the reference pair data, draws the first set
// of targets, and persists both the state and the pair data under a fresh
// run ID.
func (c *Client) InitRun(ctx context.Context, req SetupRequest) (SetupSummary, error) {
	pairs := req.Pairs
	if pairs == nil {
		if req.PairsFile == "" {
			return SetupSummary{}, fmt.Errorf("either pairs or a pairs file is required")
		}
		loaded, err := pairdata.Load(req.PairsFile)
		if err != nil {
			return SetupSummary{}, err
		}
		pairs = loaded
	}
	if err := pairs.Validate(); err != nil {
		return SetupSummary{}, err
	}

	general := applyGeneralDefaults(req.General)
	if req.Seed != 0 {
		general.Seed = req.Seed
	} else if general.Seed == 0 {
		general.Seed = time.Now().UnixNano()
	}

	rng := rand.New(rand.NewSource(general.Seed))
	targets, err := pairdata.SampleTargets(rng, pairs)
	if err != nil {
		return SetupSummary{}, err
	}

	runID := uuid.NewString()
	st, err := rundata.New(runID, general, pairs, targets)
	if err != nil {
		return SetupSummary{}, err
	}

	if err := c.store.SaveRunState(ctx, st); err != nil {
		return SetupSummary{}, err
	}
	if err := c.store.SavePairData(ctx, runID, pairs); err != nil {
		return SetupSummary{}, err
	}
	if _, err := c.layout.EnsurePhaseDir(req.Member, 0, st.General.Phase); err != nil {
		return SetupSummary{}, err
	}
	statePath := c.layout.StatePath(req.Member)
	if err := st.Save(statePath); err != nil {
		return SetupSummary{}, err
	}
	if err := pairs.Save(c.layout.PairDataPath(req.Member)); err != nil {
		return SetupSummary{}, err
	}

	return SetupSummary{RunID: runID, Targets: targets, StateFile: statePath}, nil
}

// Resample draws a fresh set of targets from the run's stored pair data
// without touching the run state.
func (c *Client) Resample(ctx context.Context, runID string, seed int64) (map[string]float64, error) {
	pairs, ok, err := c.store.GetPairData(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no pair data for run %s", runID)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return pairdata.SampleTargets(rand.New(rand.NewSource(seed)), pairs)
}

// RunState returns the persisted state of a run. When the store has no record
// of it, the member's state file is tried instead, so a run set up by an
// earlier process can be picked up with a fresh store. A state file that
// matches seeds the store before returning.
func (c *Client) RunState(ctx context.Context, runID string, member int) (rundata.State, error) {
	st, ok, err := c.store.GetRunState(ctx, runID)
	if err != nil {
		return rundata.State{}, err
	}
	if ok {
		return st, nil
	}

	st, err = rundata.Load(c.layout.StatePath(member))
	if errors.Is(err, os.ErrNotExist) {
		return rundata.State{}, fmt.Errorf("unknown run %s", runID)
	}
	if err != nil {
		return rundata.State{}, err
	}
	if st.RunID != runID {
		return rundata.State{}, fmt.Errorf("unknown run %s", runID)
	}
	if err := c.store.SaveRunState(ctx, st); err != nil {
		return rundata.State{}, err
	}
	if pairs, err := pairdata.Load(c.layout.PairDataPath(member)); err == nil {
		if err := c.store.SavePairData(ctx, runID, pairs); err != nil {
			return rundata.State{}, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return rundata.State{}, err
	}
	return st, nil
}

// History returns the completed-phase records of a run, oldest first.
func (c *Client) History(ctx context.Context, runID string) ([]rundata.PhaseRecord, error) {
	history, ok, err := c.store.GetPhaseHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return history, nil
}

// Runs lists the known run IDs.
func (c *Client) Runs(ctx context.Context) ([]string, error) {
	return c.store.ListRunIDs(ctx)
}

func applyGeneralDefaults(g rundata.GeneralParams) rundata.GeneralParams {
	defaults := rundata.DefaultGeneral()
	if g.A <= 0 {
		g.A = defaults.A
	}
	if g.Tau <= 0 {
		g.Tau = defaults.Tau
	}
	if g.Tolerance <= 0 {
		g.Tolerance = defaults.Tolerance
	}
	if g.NumSamples <= 0 {
		g.NumSamples = defaults.NumSamples
	}
	if g.SamplePeriod <= 0 {
		g.SamplePeriod = defaults.SamplePeriod
	}
	if g.ProductionTime <= 0 {
		g.ProductionTime = defaults.ProductionTime
	}
	if g.EnsembleNum < 1 {
		g.EnsembleNum = defaults.EnsembleNum
	}
	if g.Phase == "" {
		g.Phase = defaults.Phase
	}
	return g
}
