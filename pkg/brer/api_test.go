package brer

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/kassonlab/brer-md/internal/model"
	"github.com/kassonlab/brer-md/internal/pairdata"
	"github.com/kassonlab/brer-md/internal/rundata"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(Options{WorkDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c
}

func singlePair(target float64) pairdata.Collection {
	return pairdata.Collection{
		"p": {
			Name:         "p",
			Bins:         []float64{target},
			Distribution: []float64{1},
			Sites:        []int{1, 4},
		},
	}
}

func TestInitRunDrawsTargetsAndPersists(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	summary, err := c.InitRun(ctx, SetupRequest{Pairs: singlePair(0.5), Seed: 7})
	if err != nil {
		t.Fatalf("init run: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("empty run id")
	}
	if summary.Targets["p"] != 0.5 {
		t.Fatalf("target = %g, want 0.5", summary.Targets["p"])
	}
	if _, err := os.Stat(summary.StateFile); err != nil {
		t.Fatalf("state file not written: %v", err)
	}

	st, err := c.RunState(ctx, summary.RunID, 0)
	if err != nil {
		t.Fatalf("run state: %v", err)
	}
	if st.General.Phase != model.PhaseTraining || st.General.Iteration != 0 {
		t.Fatalf("fresh run in phase %q iteration %d", st.General.Phase, st.General.Iteration)
	}
	if st.Pairs["p"].Target != 0.5 || st.Pairs["p"].Alpha != 0 {
		t.Fatalf("pair state %+v", st.Pairs["p"])
	}
	if st.Pairs["p"].Sites != [2]int{1, 4} {
		t.Fatalf("sites = %v", st.Pairs["p"].Sites)
	}

	onDisk, err := rundata.Load(summary.StateFile)
	if err != nil {
		t.Fatalf("load state file: %v", err)
	}
	if !reflect.DeepEqual(onDisk, st) {
		t.Fatal("state file and store disagree")
	}

	runs, err := c.Runs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0] != summary.RunID {
		t.Fatalf("runs = %v", runs)
	}
}

func TestInitRunAppliesGeneralDefaults(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	summary, err := c.InitRun(ctx, SetupRequest{Pairs: singlePair(0.5), Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	st, err := c.RunState(ctx, summary.RunID, 0)
	if err != nil {
		t.Fatal(err)
	}
	defaults := rundata.DefaultGeneral()
	if st.General.A != defaults.A || st.General.Tau != defaults.Tau || st.General.NumSamples != defaults.NumSamples {
		t.Fatalf("defaults not applied: %+v", st.General)
	}
	if st.General.Seed != 7 {
		t.Fatalf("seed = %d, want 7", st.General.Seed)
	}
}

func TestInitRunRequiresPairs(t *testing.T) {
	c := testClient(t)
	if _, err := c.InitRun(context.Background(), SetupRequest{}); err == nil {
		t.Fatal("setup without pairs accepted")
	}
}

func TestInitRunLoadsPairsFile(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	path := filepath.Join(t.TempDir(), "pair_data.json")
	if err := singlePair(0.5).Save(path); err != nil {
		t.Fatal(err)
	}
	summary, err := c.InitRun(ctx, SetupRequest{PairsFile: path, Seed: 7})
	if err != nil {
		t.Fatalf("init run from file: %v", err)
	}
	pairs, ok, err := c.store.GetPairData(ctx, summary.RunID)
	if err != nil || !ok {
		t.Fatalf("pair data not persisted: ok=%v err=%v", ok, err)
	}
	if pairs["p"].Name != "p" {
		t.Fatalf("pairs = %+v", pairs)
	}
}

func TestResampleIsDeterministicForSeed(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	pairs := pairdata.Collection{
		"p": {
			Name:         "p",
			Bins:         []float64{0.1, 0.2, 0.3},
			Distribution: []float64{1, 1, 1},
			Sites:        []int{1, 4},
		},
	}
	summary, err := c.InitRun(ctx, SetupRequest{Pairs: pairs, Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	first, err := c.Resample(ctx, summary.RunID, 99)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	second, err := c.Resample(ctx, summary.RunID, 99)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same seed produced different targets: %v vs %v", first, second)
	}

	if _, err := c.Resample(ctx, "missing", 99); err == nil {
		t.Fatal("resample for unknown run accepted")
	}
}

func TestRunStateUnknownRun(t *testing.T) {
	c := testClient(t)
	if _, err := c.RunState(context.Background(), "missing", 0); err == nil {
		t.Fatal("unknown run accepted")
	}
}

func TestRunStateFallsBackToStateFile(t *testing.T) {
	ctx := context.Background()
	workDir := t.TempDir()

	first, err := New(Options{WorkDir: workDir})
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	if err := first.Init(ctx); err != nil {
		t.Fatal(err)
	}
	summary, err := first.InitRun(ctx, SetupRequest{Pairs: singlePair(0.5), Seed: 7})
	if err != nil {
		t.Fatalf("init run: %v", err)
	}

	// A second client over the same working tree starts with an empty store
	// and must pick the run up from the member's state file.
	second, err := New(Options{WorkDir: workDir})
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if err := second.Init(ctx); err != nil {
		t.Fatal(err)
	}
	st, err := second.RunState(ctx, summary.RunID, 0)
	if err != nil {
		t.Fatalf("run state after restart: %v", err)
	}
	if st.RunID != summary.RunID || st.Pairs["p"].Target != 0.5 {
		t.Fatalf("recovered state %+v", st)
	}

	// Recovery seeds the store, pair data included.
	if _, ok, err := second.store.GetRunState(ctx, summary.RunID); err != nil || !ok {
		t.Fatalf("store not seeded: ok=%v err=%v", ok, err)
	}
	targets, err := second.Resample(ctx, summary.RunID, 99)
	if err != nil {
		t.Fatalf("resample after restart: %v", err)
	}
	if targets["p"] != 0.5 {
		t.Fatalf("resampled target = %g, want 0.5", targets["p"])
	}

	// A state file for a different run does not satisfy the lookup.
	if _, err := second.RunState(ctx, "some-other-run", 0); err == nil {
		t.Fatal("state file accepted for a mismatched run id")
	}
}
