package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kassonlab/brer-md/internal/model"
	"github.com/kassonlab/brer-md/internal/rundata"
	"github.com/kassonlab/brer-md/pkg/brer"
)

// loadGeneralFromConfig reads a general-parameters JSON file. Fields left
// out of the file keep their zero value, which the client replaces with its
// defaults.
func loadGeneralFromConfig(path string) (rundata.GeneralParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rundata.GeneralParams{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return rundata.GeneralParams{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	var g rundata.GeneralParams
	if v, ok := asFloat64(raw["A"]); ok {
		g.A = v
	}
	if v, ok := asFloat64(raw["tau"]); ok {
		g.Tau = v
	}
	if v, ok := asFloat64(raw["tolerance"]); ok {
		g.Tolerance = v
	}
	if v, ok := asInt(raw["num_samples"]); ok {
		g.NumSamples = v
	}
	if v, ok := asFloat64(raw["sample_period"]); ok {
		g.SamplePeriod = v
	}
	if v, ok := asFloat64(raw["production_time"]); ok {
		g.ProductionTime = v
	}
	if v, ok := asInt(raw["ensemble_num"]); ok {
		g.EnsembleNum = v
	}
	if v, ok := asInt(raw["iteration"]); ok {
		g.Iteration = v
	}
	if v, ok := asString(raw["phase"]); ok {
		g.Phase = model.Phase(v)
	}
	if v, ok := asInt64(raw["seed"]); ok {
		g.Seed = v
	}
	return g, nil
}

type trajectoryFrame struct {
	Time      float64                  `json:"time"`
	Positions map[string][2][3]float64 `json:"positions"`
}

// loadTrajectory reads a trajectory frames JSON file: an array of frames,
// each carrying the simulation time and the two site positions per pair.
func loadTrajectory(path string) ([]brer.Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []trajectoryFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse trajectory %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("trajectory %s holds no frames", path)
	}

	steps := make([]brer.Step, len(raw))
	for i, frame := range raw {
		if len(frame.Positions) == 0 {
			return nil, fmt.Errorf("trajectory frame %d carries no positions", i)
		}
		positions := make(map[string][2]model.Vector, len(frame.Positions))
		for name, pair := range frame.Positions {
			positions[name] = [2]model.Vector{
				{X: pair[0][0], Y: pair[0][1], Z: pair[0][2]},
				{X: pair[1][0], Y: pair[1][1], Z: pair[1][2]},
			}
		}
		steps[i] = brer.Step{Time: frame.Time, Positions: positions}
	}
	return steps, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}
