package storage

import (
	"context"

	"github.com/kassonlab/brer-md/internal/pairdata"
	"github.com/kassonlab/brer-md/internal/rundata"
)

// Store defines transaction-like persistence operations for run entities.
type Store interface {
	Init(ctx context.Context) error
	SaveRunState(ctx context.Context, state rundata.State) error
	GetRunState(ctx context.Context, runID string) (rundata.State, bool, error)
	ListRunIDs(ctx context.Context) ([]string, error)
	SavePairData(ctx context.Context, runID string, pairs pairdata.Collection) error
	GetPairData(ctx context.Context, runID string) (pairdata.Collection, bool, error)
	AppendPhaseRecord(ctx context.Context, runID string, record rundata.PhaseRecord) error
	GetPhaseHistory(ctx context.Context, runID string) ([]rundata.PhaseRecord, bool, error)
}
