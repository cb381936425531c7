//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/kassonlab/brer-md/internal/pairdata"
	"github.com/kassonlab/brer-md/internal/rundata"
)

func initSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "brer.db"))
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestSQLiteStoreRunStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := initSQLiteStore(t)
	st := testState(t, "run-1")

	if err := store.SaveRunState(ctx, st); err != nil {
		t.Fatalf("save state: %v", err)
	}
	got, ok, err := store.GetRunState(ctx, "run-1")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted state")
	}
	if !reflect.DeepEqual(got, st) {
		t.Fatalf("state mismatch:\ngot  %+v\nwant %+v", got, st)
	}

	// Upsert keeps one row per run.
	st.General.Iteration = 3
	if err := store.SaveRunState(ctx, st); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, _, err = store.GetRunState(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.General.Iteration != 3 {
		t.Fatalf("iteration = %d after upsert, want 3", got.General.Iteration)
	}
	ids, err := store.ListRunIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "run-1" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestSQLiteStorePairDataRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := initSQLiteStore(t)
	pairs := pairdata.Collection{
		"105_216": {
			Name:         "105_216",
			Bins:         []float64{0.3, 0.4},
			Distribution: []float64{2, 1},
			Sites:        []int{105, 216},
		},
	}
	if err := store.SavePairData(ctx, "run-1", pairs); err != nil {
		t.Fatalf("save pairs: %v", err)
	}
	got, ok, err := store.GetPairData(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get pairs: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, pairs) {
		t.Fatalf("pairs mismatch: %+v", got)
	}
}

func TestSQLiteStorePhaseHistoryOrder(t *testing.T) {
	ctx := context.Background()
	store := initSQLiteStore(t)
	st := testState(t, "run-1")

	for i, end := range []float64{50, 80, 130} {
		rec := rundata.NewPhaseRecord(st, float64(i), end, i == 0)
		if err := store.AppendPhaseRecord(ctx, "run-1", rec); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	history, ok, err := store.GetPhaseHistory(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get history: ok=%v err=%v", ok, err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	for i, end := range []float64{50, 80, 130} {
		if history[i].EndTime != end {
			t.Fatalf("record %d end = %g, want %g", i, history[i].EndTime, end)
		}
	}

	if _, ok, err := store.GetPhaseHistory(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing run: ok=%v err=%v", ok, err)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "brer.db"))
	if _, _, err := store.GetRunState(context.Background(), "run-1"); err == nil {
		t.Fatal("uninitialized store served a read")
	}
}
