package rundata

import (
	"fmt"

	"github.com/kassonlab/brer-md/internal/model"
)

// PhaseRecord summarizes one completed phase for the run history.
type PhaseRecord struct {
	SchemaVersion int                `json:"schema_version"`
	Iteration     int                `json:"iteration"`
	Phase         model.Phase        `json:"phase"`
	StartTime     float64            `json:"start_time"`
	EndTime       float64            `json:"end_time"`
	Stopped       bool               `json:"stopped"`
	Alphas        map[string]float64 `json:"alphas"`
	Targets       map[string]float64 `json:"targets"`
}

func NewPhaseRecord(st State, startTime, endTime float64, stopped bool) PhaseRecord {
	rec := PhaseRecord{
		SchemaVersion: SchemaVersion,
		Iteration:     st.General.Iteration,
		Phase:         st.General.Phase,
		StartTime:     startTime,
		EndTime:       endTime,
		Stopped:       stopped,
		Alphas:        make(map[string]float64, len(st.Pairs)),
		Targets:       make(map[string]float64, len(st.Pairs)),
	}
	for name, p := range st.Pairs {
		rec.Alphas[name] = p.Alpha
		rec.Targets[name] = p.Target
	}
	return rec
}

func (r PhaseRecord) Validate() error {
	if r.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported phase record schema version %d, want %d", r.SchemaVersion, SchemaVersion)
	}
	if !r.Phase.Valid() {
		return fmt.Errorf("unknown phase %q", r.Phase)
	}
	if r.Iteration < 0 {
		return fmt.Errorf("iteration must not be negative, got %d", r.Iteration)
	}
	return nil
}
